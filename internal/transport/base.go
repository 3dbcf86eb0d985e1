package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
)

// Writer delivers one message to the peer.
type Writer func(protocol.Message) error

// Base implements the transport independent part of Session: the bounded
// outbox, the close-once lifecycle, identity and inbound dispatch. Concrete
// transports embed it and attach a Writer with Pump.
type Base struct {
	id      string
	kind    Kind
	release func()

	mu       sync.Mutex
	username string
	handler  func(protocol.Message)
	closed   bool
	err      error

	queue     chan protocol.Message
	done      chan struct{}
	closeOnce sync.Once
	pumping   atomic.Bool
	flushed   chan struct{}
	flushOnce sync.Once
	lastSeen  atomic.Int64

	// serialises handler calls
	deliverMu sync.Mutex
}

// NewBase creates the shared session state. release is called once, after
// the session is marked closed, to free transport resources.
func NewBase(kind Kind, id string, outboxSize int, release func()) *Base {
	if outboxSize <= 0 {
		outboxSize = DefaultOptions.OutboxSize
	}
	b := &Base{
		id:      id,
		kind:    kind,
		release: release,
		queue:   make(chan protocol.Message, outboxSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
	}
	b.Touch()
	return b
}

func (b *Base) ID() string { return b.id }

func (b *Base) Kind() Kind { return b.kind }

func (b *Base) Username() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.username
}

func (b *Base) Bind(username string) {
	b.mu.Lock()
	b.username = username
	b.mu.Unlock()
}

func (b *Base) OnMessage(handler func(protocol.Message)) {
	b.mu.Lock()
	b.handler = handler
	b.mu.Unlock()
}

// Send queues msg for the writer.
func (b *Base) Send(msg protocol.Message) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	select {
	case b.queue <- msg:
		b.mu.Unlock()
		return nil
	default:
	}
	b.mu.Unlock()

	err := apperrors.TransportFailure("send", ErrSlowConsumer)
	b.Fail(err)
	return err
}

// Pump drains the outbox through write until the session closes, ctx ends,
// or a write fails. A failed write closes the session. After a clean Close
// the messages already queued are still written.
func (b *Base) Pump(ctx context.Context, write Writer) error {
	if !b.pumping.CompareAndSwap(false, true) {
		return ErrPumpRunning
	}
	defer b.pumping.Store(false)
	defer b.flushOnce.Do(func() { close(b.flushed) })

	for {
		select {
		case <-b.done:
			if err := b.Err(); err != nil {
				return err
			}
			return b.drain(write)
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.queue:
			if err := write(msg); err != nil {
				ferr := apperrors.TransportFailure("write", err)
				b.Fail(ferr)
				return ferr
			}
		}
	}
}

func (b *Base) drain(write Writer) error {
	for {
		select {
		case msg := <-b.queue:
			if err := write(msg); err != nil {
				return apperrors.TransportFailure("write", err)
			}
		default:
			return nil
		}
	}
}

// Flushed is closed once Pump has returned.
func (b *Base) Flushed() <-chan struct{} { return b.flushed }

// Deliver hands an inbound message to the registered handler.
func (b *Base) Deliver(msg protocol.Message) {
	b.Touch()

	b.mu.Lock()
	handler := b.handler
	closed := b.closed
	b.mu.Unlock()
	if handler == nil || closed {
		return
	}

	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()
	handler(msg)
}

// Touch records inbound activity.
func (b *Base) Touch() {
	b.lastSeen.Store(time.Now().UnixNano())
}

func (b *Base) LastSeen() time.Time {
	return time.Unix(0, b.lastSeen.Load())
}

func (b *Base) Close() error {
	b.Fail(nil)
	return nil
}

func (b *Base) Fail(cause error) {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.err = cause
		b.mu.Unlock()

		close(b.done)
		if b.release != nil {
			b.release()
		}
	})
}

func (b *Base) Done() <-chan struct{} { return b.done }

func (b *Base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Closed reports whether the session has been closed.
func (b *Base) Closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Pending is the number of queued messages.
func (b *Base) Pending() int {
	return len(b.queue)
}
