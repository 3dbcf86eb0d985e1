package rpc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/logging"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport"
)

var (
	errUnknownToken   = errors.New("unknown session token")
	errSubscribed     = errors.New("session already subscribed")
	errAttachTimeout  = errors.New("subscription not opened in time")
	errNotLoginKind   = errors.New("login kind must be LOGIN_MP or LOGIN_SP")
	errListenerClosed = errors.New("listener shutting down")
)

// Session is a transport.Session whose outbound half is a server stream.
type Session struct {
	*transport.Base

	token    string
	attached atomic.Bool
}

// Listener serves the call-style transport.
type Listener struct {
	addr    string
	service string
	opts    transport.Options
	logger  *logrus.Entry

	mu       sync.Mutex
	ln       net.Listener
	srv      *http.Server
	sessions map[string]*Session
	closing  bool
}

func NewListener(addr, service string, opts transport.Options) *Listener {
	return &Listener{
		addr:     addr,
		service:  service,
		opts:     opts.WithDefaults(),
		logger:   logging.NewLogger("rpc"),
		sessions: make(map[string]*Session),
	}
}

func (l *Listener) Kind() transport.Kind { return transport.KindRPC }

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
		return apperrors.New(apperrors.ErrCodeInternal, "rpc listener not bound")
	}
	l.srv = &http.Server{
		Handler:           l.Handler(h),
		ReadHeaderTimeout: l.opts.LoginTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	srv := l.srv
	l.mu.Unlock()

	l.logger.WithField("addr", ln.Addr().String()).Info("rpc transport listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return apperrors.TransportFailure("serve", err)
	}
	return nil
}

// Shutdown closes every session, which ends their streams, then stops the
// HTTP server.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	l.closing = true
	srv, ln := l.srv, l.ln
	l.srv, l.ln = nil, nil
	sessions := make([]*Session, 0, len(l.sessions))
	for _, s := range l.sessions {
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

// Handler returns the mux serving every procedure of the service.
func (l *Listener) Handler(h transport.Handshaker) http.Handler {
	codec := connect.WithCodec(jsonCodec{})
	mux := http.NewServeMux()
	mux.Handle(procedure(l.service, LoginProcedure), connect.NewUnaryHandler(
		procedure(l.service, LoginProcedure),
		func(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
			return l.login(ctx, h, req)
		},
		codec,
	))
	mux.Handle(procedure(l.service, CommandProcedure), connect.NewUnaryHandler(
		procedure(l.service, CommandProcedure), l.command, codec,
	))
	mux.Handle(procedure(l.service, SubscribeProcedure), connect.NewServerStreamHandler(
		procedure(l.service, SubscribeProcedure), l.subscribe, codec,
	))
	mux.Handle(procedure(l.service, LogoutProcedure), connect.NewUnaryHandler(
		procedure(l.service, LogoutProcedure), l.logout, codec,
	))
	return withResponseController(mux)
}

func (l *Listener) login(_ context.Context, h transport.Handshaker, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	kind := req.Msg.Kind
	if !kind.IsLogin() {
		return nil, connect.NewError(connect.CodeInvalidArgument, errNotLoginKind)
	}

	s := &Session{token: uuid.NewString()}
	s.Base = transport.NewBase(transport.KindRPC, s.token, l.opts.OutboxSize, func() { l.release(s) })
	logger := l.logger.WithFields(logrus.Fields{"session": s.ID(), "remote": req.Peer().Addr})
	time.AfterFunc(l.opts.LoginTimeout, func() {
		if !s.attached.Load() {
			logger.Debug("closing session without subscription")
			s.Fail(apperrors.TransportFailure("subscribe", errAttachTimeout))
		}
	})

	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		s.Close()
		return nil, connect.NewError(connect.CodeUnavailable, errListenerClosed)
	}
	l.sessions[s.token] = s
	l.mu.Unlock()

	if err := h.Login(s, kind, req.Msg.Username); err != nil {
		logger.WithError(err).WithField("player", req.Msg.Username).Info("login refused")
		s.Close()
		return nil, toConnect(err)
	}

	return connect.NewResponse(&LoginResponse{Token: s.token, Username: s.Username()}), nil
}

func (l *Listener) release(s *Session) {
	l.mu.Lock()
	if l.sessions[s.token] == s {
		delete(l.sessions, s.token)
	}
	l.mu.Unlock()
}

func (l *Listener) lookup(token string) (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sessions[token]
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, errUnknownToken)
	}
	return s, nil
}

func (l *Listener) command(_ context.Context, req *connect.Request[CommandRequest]) (*connect.Response[CommandResponse], error) {
	s, err := l.lookup(req.Msg.Token)
	if err != nil {
		return nil, err
	}
	msg := req.Msg.Message
	switch {
	case msg.Kind == "":
		s.Touch()
		s.Send(protocol.Error(apperrors.InvalidInput("message has no kind")))
	case msg.Kind.IsLogin():
		s.Touch()
		s.Send(protocol.LoginReply(msg.Kind, s.Username(), apperrors.LoginInvalid("already logged in")))
	default:
		s.Deliver(msg)
	}
	return connect.NewResponse(&CommandResponse{}), nil
}

func (l *Listener) subscribe(ctx context.Context, req *connect.Request[SubscribeRequest], stream *connect.ServerStream[protocol.Message]) error {
	s, err := l.lookup(req.Msg.Token)
	if err != nil {
		return err
	}
	if !s.attached.CompareAndSwap(false, true) {
		return connect.NewError(connect.CodeFailedPrecondition, errSubscribed)
	}
	s.Touch()

	rc := responseController(ctx)
	if rc != nil {
		defer rc.SetWriteDeadline(time.Time{})
	}
	write := func(msg protocol.Message) error {
		if rc != nil {
			rc.SetWriteDeadline(time.Now().Add(l.opts.WriteTimeout))
		}
		return stream.Send(&msg)
	}

	err = s.Pump(ctx, write)
	if ctx.Err() != nil {
		s.Fail(apperrors.TransportFailure("stream", ctx.Err()))
		return nil
	}
	if err != nil && !errors.Is(err, transport.ErrClosed) {
		l.logger.WithError(err).WithField("session", s.ID()).Debug("stream ended")
	}
	return nil
}

func (l *Listener) logout(_ context.Context, req *connect.Request[LogoutRequest]) (*connect.Response[LogoutResponse], error) {
	s, err := l.lookup(req.Msg.Token)
	if err != nil {
		return nil, err
	}
	s.Close()
	return connect.NewResponse(&LogoutResponse{}), nil
}
