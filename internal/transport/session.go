// Package transport defines the abstraction over one logical connection to
// one client. The registry and router only ever see Session; the socket and
// rpc subpackages provide the concrete transports.
package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
)

// Kind names a transport implementation.
type Kind string

const (
	KindSocket Kind = "socket"
	KindRPC    Kind = "rpc"
)

var (
	// ErrClosed is returned by Send once the session is closed.
	ErrClosed = errors.New("session closed")
	// ErrSlowConsumer closes a session whose outbox is full.
	ErrSlowConsumer = errors.New("outbox full")
	// ErrPumpRunning is returned when a second writer attaches to a session.
	ErrPumpRunning = errors.New("session writer already attached")
)

// Session is one live client connection.
//
// Send preserves per-session order and never blocks: a message that cannot
// be queued closes the session instead of being dropped silently. Inbound
// messages reach the handler one at a time in arrival order.
type Session interface {
	ID() string
	Kind() Kind
	// Username is the identity bound at login, "" before.
	Username() string
	Bind(username string)
	Send(msg protocol.Message) error
	OnMessage(handler func(protocol.Message))
	// Close releases the transport. It is idempotent.
	Close() error
	// Fail closes the session recording cause as the reason.
	Fail(cause error)
	Done() <-chan struct{}
	// Err is the reason the session closed, nil for a deliberate Close.
	Err() error
	LastSeen() time.Time
}

// Handshaker admits or rejects login requests. A nil error admits s bound
// to username; the transport reports a non-nil error to the peer and closes s.
type Handshaker interface {
	Login(s Session, kind protocol.Kind, username string) error
}

// Listener accepts connections of one transport kind.
type Listener interface {
	Kind() Kind
	// Listen binds the endpoint. It must be called before Serve.
	Listen() (net.Addr, error)
	// Serve runs the accept loop until Shutdown.
	Serve(ctx context.Context, h Handshaker) error
	Shutdown(ctx context.Context) error
}

// Options tunes a transport.
type Options struct {
	// WriteTimeout bounds a single write to the peer.
	WriteTimeout time.Duration
	// LoginTimeout bounds the handshake.
	LoginTimeout time.Duration
	// IdleTimeout closes a connection with no inbound traffic.
	IdleTimeout time.Duration
	// OutboxSize is the per-session queue length.
	OutboxSize int
}

// DefaultOptions are the values used for unset fields.
var DefaultOptions = Options{
	WriteTimeout: 5 * time.Second,
	LoginTimeout: 10 * time.Second,
	IdleTimeout:  20 * time.Second,
	OutboxSize:   128,
}

// WithDefaults fills unset fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultOptions.WriteTimeout
	}
	if o.LoginTimeout <= 0 {
		o.LoginTimeout = DefaultOptions.LoginTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultOptions.IdleTimeout
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = DefaultOptions.OutboxSize
	}
	return o
}
