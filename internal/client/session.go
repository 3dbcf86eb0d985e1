// Package client connects a player to the server over either transport and
// keeps the local replica of the game state up to date.
package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/config"
	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/logging"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/organizer"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport/rpc"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport/socket"
)

const noticeBuffer = 16

// Conn is a client connection over one transport.
type Conn interface {
	Login(ctx context.Context, kind protocol.Kind, username string) error
	Send(msg protocol.Message) error
	Messages() <-chan protocol.Message
	Close() error
}

// Dial connects using the transport selected in cfg.
func Dial(ctx context.Context, cfg *config.Config) (Conn, error) {
	switch cfg.Client.Transport {
	case config.TransportSocket:
		c, err := socket.Dial(ctx, cfg.ServerURL())
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.TransportRPC:
		c, err := rpc.Dial(ctx, cfg.ServerURL(), cfg.Server.ServiceName)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("unknown transport %q", cfg.Client.Transport))
	}
}

// Notice is a message for the player that is not part of the game state.
type Notice struct {
	Error bool
	Code  string
	Text  string
}

type Session struct {
	conn   Conn
	org    *organizer.Organizer
	logger *logrus.Entry

	updates chan struct{}
	notices chan Notice

	closeOnce sync.Once
}

func NewSession(conn Conn, org *organizer.Organizer) *Session {
	return &Session{
		conn:    conn,
		org:     org,
		logger:  logging.NewLogger("client"),
		updates: make(chan struct{}, 1),
		notices: make(chan Notice, noticeBuffer),
	}
}

func (s *Session) Organizer() *organizer.Organizer { return s.org }

// Login performs the handshake. solo requests a single-player game.
func (s *Session) Login(ctx context.Context, username string, solo bool) error {
	kind := protocol.KindLoginMP
	if solo {
		kind = protocol.KindLoginSP
	}
	name := strings.TrimSpace(username)
	if err := s.conn.Login(ctx, kind, name); err != nil {
		return err
	}
	s.org.SetUsername(name)
	s.logger.WithField("player", name).Info("logged in")
	return nil
}

// Run folds server messages into the organizer until the connection ends or
// ctx is cancelled. A lost connection is reported as a transport failure.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-s.conn.Messages():
			if !ok {
				return apperrors.TransportFailure("receive", fmt.Errorf("connection closed"))
			}
			s.handle(msg)
		}
	}
}

func (s *Session) handle(msg protocol.Message) {
	switch msg.Kind {
	case protocol.KindModelUpdate:
		e, err := msg.Event()
		if err != nil {
			s.logger.WithError(err).Warn("dropping undecodable update")
			return
		}
		s.org.Push(e)
		s.signal()
	case protocol.KindPing:
		ack := protocol.MustNew(protocol.KindAck, protocol.Ack{Of: protocol.KindPing, Accepted: true})
		if err := s.conn.Send(ack); err != nil {
			s.logger.WithError(err).Debug("ping reply failed")
		}
	case protocol.KindShow:
		if body, err := protocol.Decode[protocol.Show](msg); err == nil {
			s.notify(Notice{Text: body.View})
		}
	case protocol.KindShowError:
		if body, err := protocol.Decode[protocol.ShowError](msg); err == nil {
			if c := apperrors.ParseCode(body.Code); c != "" && !c.Recoverable() {
				s.logger.WithField("code", c).Error(body.Message)
			}
			s.notify(Notice{Error: true, Code: body.Code, Text: body.Message})
		}
	case protocol.KindAck:
	default:
		s.logger.WithField("kind", msg.Kind).Debug("ignoring message")
	}
}

func (s *Session) signal() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func (s *Session) notify(n Notice) {
	select {
	case s.notices <- n:
	default:
		s.logger.WithField("notice", n.Text).Warn("notice dropped")
	}
}

// Do sends a command to the rule engine.
func (s *Session) Do(action string, args ...string) error {
	return s.conn.Send(protocol.MustNew(protocol.KindViewMessage, protocol.ViewMessage{Action: action, Args: args}))
}

// Updates fires after the organizer changed. Signals coalesce, so a reader
// should redraw from the organizer rather than count them.
func (s *Session) Updates() <-chan struct{} { return s.updates }

func (s *Session) Notices() <-chan Notice { return s.notices }

func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.conn.Close() })
	return err
}
