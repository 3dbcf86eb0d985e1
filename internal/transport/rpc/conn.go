package rpc

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport"
)

const (
	callTimeout = 10 * time.Second
	inboxSize   = 64
)

// Conn is the client side of the call-style transport.
type Conn struct {
	login     *connect.Client[LoginRequest, LoginResponse]
	command   *connect.Client[CommandRequest, CommandResponse]
	subscribe *connect.Client[SubscribeRequest, protocol.Message]
	logout    *connect.Client[LogoutRequest, LogoutResponse]

	messages chan protocol.Message
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
	stream   sync.WaitGroup

	mu      sync.Mutex
	token   string
	started bool
	err     error
}

// Dial prepares a connection to the server at baseURL, e.g.
// http://host:9001. Nothing is sent before Login.
func Dial(ctx context.Context, baseURL, service string) (*Conn, error) {
	return DialWithClient(ctx, http.DefaultClient, baseURL, service)
}

// DialWithClient is Dial with a caller supplied HTTP client.
func DialWithClient(_ context.Context, httpClient connect.HTTPClient, baseURL, service string) (*Conn, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, apperrors.InvalidInput("malformed server address " + baseURL)
	}
	base := strings.TrimRight(baseURL, "/")
	codec := connect.WithCodec(jsonCodec{})

	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		login:     connect.NewClient[LoginRequest, LoginResponse](httpClient, base+procedure(service, LoginProcedure), codec),
		command:   connect.NewClient[CommandRequest, CommandResponse](httpClient, base+procedure(service, CommandProcedure), codec),
		subscribe: connect.NewClient[SubscribeRequest, protocol.Message](httpClient, base+procedure(service, SubscribeProcedure), codec),
		logout:    connect.NewClient[LogoutRequest, LogoutResponse](httpClient, base+procedure(service, LogoutProcedure), codec),
		messages:  make(chan protocol.Message, inboxSize),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Login performs the login call, opens the subscription and waits for the
// acknowledgement delivered through it.
func (c *Conn) Login(ctx context.Context, kind protocol.Kind, username string) error {
	res, err := c.login.CallUnary(ctx, connect.NewRequest(&LoginRequest{Kind: kind, Username: username}))
	if err != nil {
		return fromConnect("login", err)
	}

	c.mu.Lock()
	c.token = res.Msg.Token
	c.mu.Unlock()

	stream, err := c.subscribe.CallServerStream(c.ctx, connect.NewRequest(&SubscribeRequest{Token: res.Msg.Token}))
	if err != nil {
		return fromConnect("subscribe", err)
	}
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	c.stream.Add(1)
	go c.readLoop(stream)

	return transport.AwaitLogin(ctx, c.messages, kind, c.Err)
}

func (c *Conn) readLoop(stream *connect.ServerStreamForClient[protocol.Message]) {
	defer c.stream.Done()
	defer close(c.messages)
	defer stream.Close()

	for stream.Receive() {
		select {
		case c.messages <- *stream.Msg():
		case <-c.ctx.Done():
			return
		}
	}
	if err := stream.Err(); err != nil && c.ctx.Err() == nil {
		c.setErr(fromConnect("stream", err))
	}
}

func (c *Conn) Send(msg protocol.Message) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		return apperrors.TransportFailure("send", transport.ErrClosed)
	}

	ctx, cancel := context.WithTimeout(c.ctx, callTimeout)
	defer cancel()
	if _, err := c.command.CallUnary(ctx, connect.NewRequest(&CommandRequest{Token: token, Message: msg})); err != nil {
		return fromConnect("send", err)
	}
	return nil
}

// Messages yields messages pushed by the server. It is closed when the
// subscription ends.
func (c *Conn) Messages() <-chan protocol.Message {
	return c.messages
}

// Close logs out, best effort, and tears down the subscription.
func (c *Conn) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		token := c.token
		c.token = ""
		c.mu.Unlock()

		if token != "" {
			ctx, cancel := context.WithTimeout(c.ctx, time.Second)
			c.logout.CallUnary(ctx, connect.NewRequest(&LogoutRequest{Token: token}))
			cancel()
		}
		c.cancel()
		c.stream.Wait()

		c.mu.Lock()
		started := c.started
		c.mu.Unlock()
		if !started {
			close(c.messages)
		}
	})
	return nil
}

// Err is the reason the subscription ended, nil if it was closed normally.
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
