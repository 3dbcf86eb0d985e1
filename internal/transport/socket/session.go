package socket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport"
)

const maxFrameSize = 64 << 10

// Session is a transport.Session over one websocket connection.
type Session struct {
	*transport.Base

	conn    *websocket.Conn
	writeMu sync.Mutex
	opts    transport.Options
}

func newSession(conn *websocket.Conn, opts transport.Options) *Session {
	s := &Session{conn: conn, opts: opts}
	s.Base = transport.NewBase(transport.KindSocket, uuid.NewString(), opts.OutboxSize, s.release)
	return s
}

func (s *Session) writeMessage(msg protocol.Message) error {
	data, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// reject answers a refused login and closes the connection without going
// through the outbox.
func (s *Session) reject(reply protocol.Message) {
	if err := s.writeMessage(reply); err != nil {
		s.Fail(apperrors.TransportFailure("write", err))
		return
	}
	s.closeWith(websocket.ClosePolicyViolation, "login refused")
	s.Fail(nil)
}

func (s *Session) closeWith(code int, reason string) {
	if len(reason) > 120 {
		reason = reason[:120]
	}
	deadline := time.Now().Add(s.opts.WriteTimeout)
	s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

// release runs once when the session closes. A clean close gives the writer
// up to WriteTimeout to flush the outbox before the close frame.
func (s *Session) release() {
	code, reason := websocket.CloseNormalClosure, ""
	if err := s.Err(); err != nil {
		code, reason = websocket.CloseGoingAway, apperrors.Message(err)
	}
	go func() {
		if code == websocket.CloseNormalClosure && s.Pending() > 0 {
			select {
			case <-s.Flushed():
			case <-time.After(s.opts.WriteTimeout):
			}
		}
		s.closeWith(code, reason)
		s.conn.Close()
	}()
}
