package transport

import (
	"context"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
)

// AwaitLogin waits on messages for the ACK answering a login of the given
// kind. Other messages received before it are discarded. cause reports why
// messages was closed, if it was.
func AwaitLogin(ctx context.Context, messages <-chan protocol.Message, kind protocol.Kind, cause func() error) error {
	for {
		select {
		case <-ctx.Done():
			return apperrors.TransportFailure("login", ctx.Err())
		case msg, ok := <-messages:
			if !ok {
				err := cause()
				if err == nil {
					err = apperrors.TransportFailure("login", apperrors.New(apperrors.ErrCodeInternal, "connection closed"))
				}
				return err
			}
			if msg.Kind == protocol.KindShowError {
				body, _ := protocol.Decode[protocol.ShowError](msg)
				return apperrors.New(apperrors.ParseCode(body.Code), body.Message)
			}
			if msg.Kind != protocol.KindAck {
				continue
			}
			ack, err := protocol.Decode[protocol.Ack](msg)
			if err != nil {
				return err
			}
			if ack.Of != kind {
				continue
			}
			return ack.Err()
		}
	}
}
