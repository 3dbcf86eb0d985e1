package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/event"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/game"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport/rpc"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport/socket"
)

type conn interface {
	Login(ctx context.Context, kind protocol.Kind, username string) error
	Send(msg protocol.Message) error
	Messages() <-chan protocol.Message
	Close() error
}

func startHybrid(t *testing.T) (*Registry, string, string) {
	t.Helper()
	opts := transport.Options{}
	sock := socket.NewListener("127.0.0.1:0", "sagrada", opts)
	call := rpc.NewListener("127.0.0.1:0", "sagrada", opts)
	r := New(Options{PingInterval: time.Second, IdleTimeout: 10 * time.Second}, sock, call)

	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		r.Stop(ctx)
	})

	socketURL := "ws://" + r.Addr(transport.KindSocket).String() + sock.Path()
	rpcURL := "http://" + r.Addr(transport.KindRPC).String()
	return r, socketURL, rpcURL
}

// nextEvent returns the next event carried by c, skipping other messages.
func nextEvent(t *testing.T, c conn) event.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m, ok := <-c.Messages():
			require.True(t, ok, "connection closed")
			if m.Kind != protocol.KindModelUpdate {
				continue
			}
			e, err := m.Event()
			require.NoError(t, err)
			return e
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestHybridSessionsShareOneView(t *testing.T) {
	r, socketURL, rpcURL := startHybrid(t)
	ctx := context.Background()

	sc, err := socket.Dial(ctx, socketURL)
	require.NoError(t, err)
	defer sc.Close()
	rc, err := rpc.Dial(ctx, rpcURL, "sagrada")
	require.NoError(t, err)
	defer rc.Close()

	require.NoError(t, sc.Login(ctx, protocol.KindLoginMP, "Pippo"))
	assert.Equal(t, event.PlayerConnectionStatus{Player: "Pippo", Connected: true}, nextEvent(t, sc))

	require.NoError(t, rc.Login(ctx, protocol.KindLoginMP, "Pluto"))
	assert.Equal(t, event.PlayerConnectionStatus{Player: "Pippo", Connected: true}, nextEvent(t, rc))
	assert.Equal(t, event.PlayerConnectionStatus{Player: "Pluto", Connected: true}, nextEvent(t, rc))
	assert.Equal(t, event.PlayerConnectionStatus{Player: "Pluto", Connected: true}, nextEvent(t, sc))

	pool := event.NewDraftPoolUpdate([]game.Die{{Color: game.Red, Value: 3}})
	r.Broadcast(pool)
	assert.Equal(t, pool, nextEvent(t, sc))
	assert.Equal(t, pool, nextEvent(t, rc))

	// A name is unique across transports.
	dup, err := socket.Dial(ctx, socketURL)
	require.NoError(t, err)
	defer dup.Close()
	err = dup.Login(ctx, protocol.KindLoginMP, "Pluto")
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeLoginConflict), "got %v", err)

	require.NoError(t, rc.Close())
	assert.Equal(t, event.PlayerConnectionStatus{Player: "Pluto", Connected: false}, nextEvent(t, sc))
	require.Eventually(t, func() bool { return r.Count() == 1 }, wait, tick)
}

func TestHybridInboundReachesHandler(t *testing.T) {
	r, socketURL, rpcURL := startHybrid(t)
	h := &recordingHandler{}
	r.SetHandler(h)
	ctx := context.Background()

	sc, err := socket.Dial(ctx, socketURL)
	require.NoError(t, err)
	defer sc.Close()
	rc, err := rpc.Dial(ctx, rpcURL, "sagrada")
	require.NoError(t, err)
	defer rc.Close()
	require.NoError(t, sc.Login(ctx, protocol.KindLoginMP, "Pippo"))
	require.NoError(t, rc.Login(ctx, protocol.KindLoginMP, "Pluto"))

	vm := protocol.MustNew(protocol.KindViewMessage, protocol.ViewMessage{Action: "pass"})
	require.NoError(t, sc.Send(vm))
	require.NoError(t, rc.Send(vm))

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.routed) == 2
	}, wait, tick)
	h.mu.Lock()
	assert.ElementsMatch(t, []string{"Pippo:VIEW_MESSAGE", "Pluto:VIEW_MESSAGE"}, h.routed)
	h.mu.Unlock()
}

func TestHybridStopDisconnectsClients(t *testing.T) {
	r, socketURL, rpcURL := startHybrid(t)
	ctx := context.Background()

	sc, err := socket.Dial(ctx, socketURL)
	require.NoError(t, err)
	defer sc.Close()
	rc, err := rpc.Dial(ctx, rpcURL, "sagrada")
	require.NoError(t, err)
	defer rc.Close()
	require.NoError(t, sc.Login(ctx, protocol.KindLoginMP, "Pippo"))
	require.NoError(t, rc.Login(ctx, protocol.KindLoginMP, "Pluto"))

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, r.Stop(stopCtx))

	for _, c := range []conn{sc, rc} {
		drained := false
		deadline := time.After(2 * time.Second)
		for !drained {
			select {
			case _, ok := <-c.Messages():
				drained = !ok
			case <-deadline:
				t.Fatal("client still connected after Stop")
			}
		}
	}
	assert.Equal(t, 0, r.Count())
}
