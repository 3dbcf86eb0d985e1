// Package registry is the hybrid server: it owns the listeners of every
// transport, admits logins, keeps the set of live sessions and fans events
// out to them. Sessions of both transports are indistinguishable here.
package registry

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/event"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/logging"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/roster"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport"
)

// MaxUsernameLength bounds a username, in bytes.
const MaxUsernameLength = 32

var errIdle = errors.New("no traffic within idle timeout")

type State int32

const (
	Stopped State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "stopped"
}

// Handler receives the traffic of admitted sessions.
type Handler interface {
	// Route is called for every inbound message of player, one at a time
	// per session.
	Route(player string, msg protocol.Message)
	Joined(player string, kind protocol.Kind)
	Left(player string)
}

type Options struct {
	PingInterval time.Duration
	IdleTimeout  time.Duration
	// MaxSessions caps concurrently open sessions, 0 for no cap.
	MaxSessions int
}

type Registry struct {
	opts      Options
	listeners []transport.Listener
	roster    *roster.Roster
	logger    *logrus.Entry
	nonce     atomic.Uint64

	// membership orders admissions and departures, handler calls included.
	// It is taken before mu and before any lock the handler holds.
	membership sync.Mutex

	mu       sync.RWMutex
	sessions []transport.Session
	solo     transport.Session
	handler  Handler
	stopping bool
	watchers sync.WaitGroup

	lifecycle sync.Mutex
	state     atomic.Int32
	cancel    context.CancelFunc
	loops     *errgroup.Group
	addrs     map[transport.Kind]net.Addr
}

func New(opts Options, listeners ...transport.Listener) *Registry {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 5 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 4 * opts.PingInterval
	}
	return &Registry{
		opts:      opts,
		listeners: listeners,
		roster:    roster.New(),
		logger:    logging.NewLogger("registry"),
		addrs:     make(map[transport.Kind]net.Addr),
	}
}

// SetHandler installs the receiver of inbound traffic. It must be called
// before Start.
func (r *Registry) SetHandler(h Handler) {
	r.mu.Lock()
	r.handler = h
	r.mu.Unlock()
}

func (r *Registry) State() State {
	return State(r.state.Load())
}

// Addr is the bound address of the listener of kind, nil when not listening.
func (r *Registry) Addr(kind transport.Kind) net.Addr {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	return r.addrs[kind]
}

// Start binds every listener and runs their accept loops. A bind failure
// undoes the listeners already bound.
func (r *Registry) Start(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.State() == Listening {
		return apperrors.New(apperrors.ErrCodeInternal, "registry already listening")
	}

	bound := make([]transport.Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		addr, err := l.Listen()
		if err != nil {
			for _, b := range bound {
				b.Shutdown(ctx)
			}
			clear(r.addrs)
			return err
		}
		bound = append(bound, l)
		r.addrs[l.Kind()] = addr
		r.logger.WithFields(logrus.Fields{"transport": l.Kind(), "addr": addr.String()}).Debug("listener bound")
	}

	r.mu.Lock()
	r.stopping = false
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range r.listeners {
		g.Go(func() error {
			if err := l.Serve(gctx, r); err != nil {
				r.logger.WithError(err).WithField("transport", l.Kind()).Error("accept loop stopped")
			}
			return nil
		})
	}
	g.Go(func() error {
		r.keepalive(gctx)
		return nil
	})

	r.cancel = cancel
	r.loops = g
	r.state.Store(int32(Listening))
	r.logger.WithField("listeners", len(r.listeners)).Info("server listening")
	return nil
}

// Stop closes every session and listener. Stopping a stopped registry is a
// no-op. ctx bounds the wait for the accept loops to drain.
func (r *Registry) Stop(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.State() == Stopped {
		return nil
	}

	r.mu.Lock()
	r.stopping = true
	sessions := append([]transport.Session(nil), r.sessions...)
	r.mu.Unlock()

	var closers sync.WaitGroup
	for _, s := range sessions {
		closers.Add(1)
		go func() {
			defer closers.Done()
			s.Close()
		}()
	}
	waitCtx(ctx, &closers)

	var errs []error
	for _, l := range r.listeners {
		if err := l.Shutdown(ctx); err != nil {
			errs = append(errs, apperrors.TransportFailure("shutdown", err).WithDetail("transport", string(l.Kind())))
		}
	}

	r.cancel()
	done := make(chan struct{})
	go func() {
		r.loops.Wait()
		r.watchers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, apperrors.Wrap(ctx.Err(), apperrors.ErrCodeInternal, "timed out waiting for accept loops"))
	}

	clear(r.addrs)
	r.state.Store(int32(Stopped))
	r.logger.Info("server stopped")
	return errors.Join(errs...)
}

func waitCtx(ctx context.Context, wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Login admits s as username. It implements transport.Handshaker.
func (r *Registry) Login(s transport.Session, kind protocol.Kind, username string) error {
	name := strings.TrimSpace(username)
	switch {
	case !kind.IsLogin():
		return apperrors.LoginInvalid(string(kind) + " is not a login request")
	case name == "":
		return apperrors.LoginInvalid("username must not be empty")
	case len(name) > MaxUsernameLength:
		return apperrors.LoginInvalid("username is too long")
	}
	solo := kind == protocol.KindLoginSP

	r.membership.Lock()
	defer r.membership.Unlock()

	// A closed session still waiting for its watcher leaves now, so the
	// handler hears the departure before this arrival.
	for _, other := range r.Sessions() {
		if isClosed(other) {
			r.detach(other)
		}
	}

	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		return apperrors.LoginInvalid("server is shutting down")
	}
	open := 0
	for _, other := range r.sessions {
		if isClosed(other) {
			continue
		}
		if other.Username() == name {
			r.mu.Unlock()
			return apperrors.LoginConflict(name)
		}
		open++
	}
	switch {
	case r.solo != nil && !isClosed(r.solo):
		r.mu.Unlock()
		return apperrors.LoginInvalid("a single-player game is in progress")
	case solo && open > 0:
		r.mu.Unlock()
		return apperrors.LoginInvalid("single-player mode needs an empty server")
	case r.opts.MaxSessions > 0 && open >= r.opts.MaxSessions:
		r.mu.Unlock()
		return apperrors.LoginInvalid("server is full")
	}

	s.Bind(name)
	s.OnMessage(func(msg protocol.Message) { r.route(name, msg) })
	r.sessions = append(r.sessions, s)
	if solo {
		r.solo = s
	}
	_, first := r.roster.Connect(name, s.Kind(), solo)

	s.Send(protocol.LoginReply(kind, name, nil))
	for _, p := range r.roster.All() {
		if p.Name != name {
			r.sendEvent(s, event.PlayerConnectionStatus{Player: p.Name, Connected: p.Connected})
		}
	}
	r.broadcastLocked(event.PlayerConnectionStatus{Player: name, Connected: true})
	handler := r.handler
	r.watchers.Add(1)
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"player":    name,
		"session":   s.ID(),
		"transport": s.Kind(),
		"kind":      kind,
		"rejoin":    !first,
	}).Info("player logged in")

	go r.watch(s)
	if handler != nil {
		handler.Joined(name, kind)
	}
	return nil
}

func isClosed(s transport.Session) bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}

func (r *Registry) route(player string, msg protocol.Message) {
	r.mu.RLock()
	handler := r.handler
	r.mu.RUnlock()
	if handler != nil {
		handler.Route(player, msg)
	}
}

// watch detaches s once it closes.
func (r *Registry) watch(s transport.Session) {
	defer r.watchers.Done()
	<-s.Done()
	r.membership.Lock()
	defer r.membership.Unlock()
	r.detach(s)
}

// detach removes s and reports the departure of its player. The caller holds
// membership.
func (r *Registry) detach(s transport.Session) {
	name := s.Username()
	logger := r.logger.WithFields(logrus.Fields{"player": name, "session": s.ID(), "transport": s.Kind()})

	r.mu.Lock()
	idx := -1
	for i, other := range r.sessions {
		if other == s {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return
	}
	r.sessions = append(r.sessions[:idx], r.sessions[idx+1:]...)
	if r.solo == s {
		r.solo = nil
	}

	held := false
	for _, other := range r.sessions {
		if other.Username() == name && !isClosed(other) {
			held = true
			break
		}
	}
	left := false
	if !held && r.roster.Disconnect(name) {
		left = true
		if !r.stopping {
			r.broadcastLocked(event.PlayerConnectionStatus{Player: name, Connected: false})
		}
	}
	if len(r.sessions) == 0 {
		r.roster.Reset()
	}
	stopping := r.stopping
	handler := r.handler
	r.mu.Unlock()

	if err := s.Err(); err != nil {
		logger.WithError(err).Warn("session lost")
	} else {
		logger.Info("session closed")
	}
	if left && !stopping && handler != nil {
		handler.Left(name)
	}
}

// Broadcast sends e to every open session.
func (r *Registry) Broadcast(e event.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.broadcastLocked(e)
}

func (r *Registry) broadcastLocked(e event.Event) {
	msg, ok := r.encode(e)
	if !ok {
		return
	}
	for _, s := range r.sessions {
		r.deliver(s, msg)
	}
}

// Unicast sends e to the sessions of player. An absent player is ignored.
func (r *Registry) Unicast(player string, e event.Event) {
	msg, ok := r.encode(e)
	if !ok {
		return
	}
	r.Send(player, msg)
}

// Send delivers a non-event message to the sessions of player.
func (r *Registry) Send(player string, msg protocol.Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Username() == player {
			r.deliver(s, msg)
		}
	}
}

func (r *Registry) sendEvent(s transport.Session, e event.Event) {
	if msg, ok := r.encode(e); ok {
		r.deliver(s, msg)
	}
}

func (r *Registry) encode(e event.Event) (protocol.Message, bool) {
	msg, err := protocol.Update(e)
	if err != nil {
		r.logger.WithError(err).WithField("event", e.Kind()).Error("cannot encode event")
		return protocol.Message{}, false
	}
	return msg, true
}

// deliver queues msg on s. A refused send has already closed s; its watcher
// takes care of the rest.
func (r *Registry) deliver(s transport.Session, msg protocol.Message) {
	if isClosed(s) {
		return
	}
	if err := s.Send(msg); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"player":  s.Username(),
			"session": s.ID(),
		}).Debug("send failed")
	}
}

func (r *Registry) keepalive(ctx context.Context) {
	ticker := time.NewTicker(r.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep closes idle sessions and pings the others.
func (r *Registry) sweep() {
	now := time.Now()
	ping := protocol.MustNew(protocol.KindPing, protocol.Ping{Nonce: r.nonce.Add(1), SentAt: now})
	for _, s := range r.Sessions() {
		if now.Sub(s.LastSeen()) > r.opts.IdleTimeout {
			r.logger.WithField("player", s.Username()).Info("closing idle session")
			s.Fail(apperrors.TransportFailure("keepalive", errIdle))
			continue
		}
		r.deliver(s, ping)
	}
}

// Sessions returns a snapshot of the admitted sessions in login order.
func (r *Registry) Sessions() []transport.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]transport.Session(nil), r.sessions...)
}

// Players returns the roster in join order, disconnected players included.
func (r *Registry) Players() []roster.Player {
	return r.roster.All()
}

// Count is the number of open sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.sessions {
		if !isClosed(s) {
			n++
		}
	}
	return n
}

// Forget drops disconnected players from the roster. The router calls it
// once a new game is dealt.
func (r *Registry) Forget() {
	r.roster.Reset()
}
