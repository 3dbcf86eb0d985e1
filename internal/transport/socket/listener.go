// Package socket implements the message-socket transport: a websocket
// endpoint where every text frame carries one JSON protocol.Message.
package socket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/logging"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport"
)

// Listener serves the socket transport on /<service>.
type Listener struct {
	addr     string
	path     string
	opts     transport.Options
	upgrader websocket.Upgrader
	logger   *logrus.Entry

	mu       sync.Mutex
	ln       net.Listener
	srv      *http.Server
	sessions map[*Session]struct{}
	closing  bool
}

func NewListener(addr, service string, opts transport.Options) *Listener {
	return &Listener{
		addr: addr,
		path: "/" + service,
		opts: opts.WithDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:   logging.NewLogger("socket"),
		sessions: make(map[*Session]struct{}),
	}
}

func (l *Listener) Kind() transport.Kind { return transport.KindSocket }

// Path is the HTTP path of the endpoint.
func (l *Listener) Path() string { return l.path }

func (l *Listener) Listen() (net.Addr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return l.ln.Addr(), nil
	}
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return nil, apperrors.TransportFailure("listen", err).WithDetail("addr", l.addr)
	}
	l.ln = ln
	l.closing = false
	return ln.Addr(), nil
}

func (l *Listener) Serve(ctx context.Context, h transport.Handshaker) error {
	l.mu.Lock()
	ln := l.ln
	if ln == nil {
		l.mu.Unlock()
		return apperrors.New(apperrors.ErrCodeInternal, "socket listener not bound")
	}
	mux := http.NewServeMux()
	mux.Handle(l.path, l.Handler(h))
	l.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: l.opts.LoginTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	srv := l.srv
	l.mu.Unlock()

	l.logger.WithField("addr", ln.Addr().String()).Info("socket transport listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return apperrors.TransportFailure("serve", err)
	}
	return nil
}

// Shutdown stops accepting and closes every live connection.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	l.closing = true
	srv, ln := l.srv, l.ln
	l.srv, l.ln = nil, nil
	sessions := make([]*Session, 0, len(l.sessions))
	for s := range l.sessions {
		sessions = append(sessions, s)
	}
	l.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	if ln != nil {
		ln.Close()
	}
	return nil
}

// Handler returns the upgrade handler. It is exposed so the endpoint can be
// mounted on an existing mux or an httptest server.
func (l *Listener) Handler(h transport.Handshaker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := l.upgrader.Upgrade(w, r, nil)
		if err != nil {
			l.logger.WithError(err).WithField("remote", r.RemoteAddr).Debug("upgrade failed")
			return
		}
		conn.SetReadLimit(maxFrameSize)

		s := newSession(conn, l.opts)
		if !l.track(s) {
			s.Close()
			return
		}
		defer l.untrack(s)

		l.handle(s, r.RemoteAddr, h)
	})
}

func (l *Listener) track(s *Session) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closing {
		return false
	}
	l.sessions[s] = struct{}{}
	return true
}

func (l *Listener) untrack(s *Session) {
	l.mu.Lock()
	delete(l.sessions, s)
	l.mu.Unlock()
}

func (l *Listener) handle(s *Session, remote string, h transport.Handshaker) {
	logger := l.logger.WithFields(logrus.Fields{"session": s.ID(), "remote": remote})

	kind, username, err := l.readLogin(s)
	if err != nil {
		logger.WithError(err).Debug("handshake failed")
		if apperrors.Is(err, apperrors.ErrCodeTransportFailure) {
			s.Fail(err)
			return
		}
		s.reject(protocol.LoginReply(kind, username, err))
		return
	}

	if err := h.Login(s, kind, username); err != nil {
		logger.WithError(err).WithField("player", username).Info("login refused")
		s.reject(protocol.LoginReply(kind, username, err))
		return
	}
	logger = logger.WithField("player", s.Username())

	go func() {
		if err := s.Pump(context.Background(), s.writeMessage); err != nil {
			logger.WithError(err).Debug("writer stopped")
		}
	}()

	l.readLoop(s, logger)
}

func (l *Listener) readLogin(s *Session) (protocol.Kind, string, error) {
	s.conn.SetReadDeadline(time.Now().Add(l.opts.LoginTimeout))
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return protocol.KindLoginMP, "", apperrors.TransportFailure("read", err)
	}
	msg, err := protocol.Unmarshal(data)
	if err != nil {
		return protocol.KindLoginMP, "", err
	}
	if !msg.Kind.IsLogin() {
		return protocol.KindLoginMP, "", apperrors.LoginInvalid("first message must be a login, got " + string(msg.Kind))
	}
	body, err := protocol.Decode[protocol.Login](msg)
	if err != nil {
		return msg.Kind, "", apperrors.LoginInvalid(apperrors.Message(err))
	}
	return msg.Kind, body.Username, nil
}

func (l *Listener) readLoop(s *Session, logger *logrus.Entry) {
	conn := s.conn
	extend := func() {
		conn.SetReadDeadline(time.Now().Add(l.opts.IdleTimeout))
	}
	conn.SetPongHandler(func(string) error {
		s.Touch()
		extend()
		return nil
	})
	extend()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.Close()
			} else {
				s.Fail(apperrors.TransportFailure("read", err))
			}
			logger.WithError(err).Debug("reader stopped")
			return
		}
		extend()

		msg, err := protocol.Unmarshal(data)
		if err != nil {
			s.Touch()
			s.Send(protocol.Error(err))
			continue
		}
		if msg.Kind.IsLogin() {
			s.Touch()
			s.Send(protocol.LoginReply(msg.Kind, s.Username(), apperrors.LoginInvalid("already logged in")))
			continue
		}
		s.Deliver(msg)
	}
}
