package socket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/logging"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport"
)

const (
	writeTimeout = 10 * time.Second
	inboxSize    = 64
)

// Conn is the client side of the socket transport.
type Conn struct {
	conn *websocket.Conn

	writeMu  sync.Mutex // serialises all conn writes
	messages chan protocol.Message
	done     chan struct{}
	once     sync.Once

	mu  sync.Mutex
	err error
}

// Dial connects to a socket endpoint such as ws://host:9000/sagrada.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, apperrors.TransportFailure("dial", err).WithDetail("url", url)
	}
	ws.SetReadLimit(maxFrameSize)
	c := &Conn{
		conn:     ws,
		messages: make(chan protocol.Message, inboxSize),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	logger := logging.NewLogger("socket-client")
	defer close(c.messages)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.setErr(apperrors.TransportFailure("read", err))
			}
			c.Close()
			return
		}
		msg, err := protocol.Unmarshal(data)
		if err != nil {
			logger.WithError(err).Warn("dropping malformed frame")
			continue
		}
		select {
		case c.messages <- msg:
		case <-c.done:
			return
		}
	}
}

// Login sends the login request and waits for the server's verdict. The
// acknowledgement is consumed; later messages stay in Messages.
func (c *Conn) Login(ctx context.Context, kind protocol.Kind, username string) error {
	if !kind.IsLogin() {
		return apperrors.InvalidInput(string(kind) + " is not a login kind")
	}
	if err := c.Send(protocol.MustNew(kind, protocol.Login{Username: username})); err != nil {
		return err
	}
	return transport.AwaitLogin(ctx, c.messages, kind, c.Err)
}

func (c *Conn) Send(msg protocol.Message) error {
	data, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return apperrors.TransportFailure("write", err)
	}
	return nil
}

// Messages yields inbound messages in arrival order. It is closed when the
// connection ends.
func (c *Conn) Messages() <-chan protocol.Message {
	return c.messages
}

func (c *Conn) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
	})
	return nil
}

// Err is the reason the connection ended, nil if it was closed normally.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) setErr(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}
