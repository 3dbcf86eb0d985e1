package main

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/config"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/event"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport/rpc"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport/socket"
)

func loopbackConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Server.BindAddress = "127.0.0.1"
	cfg.Server.SocketPort = 0
	cfg.Server.RPCPort = 0
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestApplyFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--bind", "127.0.0.1", "--rpc-port", "9100", "--rounds", "3", "--seed", "7"}))

	cfg, err := config.Default()
	require.NoError(t, err)
	applyFlags(cmd, cfg)

	assert.Equal(t, "127.0.0.1", cfg.Server.BindAddress)
	assert.Equal(t, 9100, cfg.Server.RPCPort)
	assert.Equal(t, 9000, cfg.Server.SocketPort, "unchanged flags keep the config value")
	assert.Equal(t, 3, cfg.Game.Rounds)
	assert.Equal(t, int64(7), cfg.Game.Seed)
}

func TestServerAcceptsBothTransports(t *testing.T) {
	cfg := loopbackConfig(t)
	reg := newServer(cfg)
	ctx := context.Background()
	require.NoError(t, reg.Start(ctx))
	defer reg.Stop(ctx)

	ws, err := socket.Dial(ctx, "ws://"+reg.Addr(transport.KindSocket).String()+"/"+cfg.Server.ServiceName)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.Login(ctx, protocol.KindLoginMP, "Pippo"))

	rc, err := rpc.Dial(ctx, "http://"+reg.Addr(transport.KindRPC).String(), cfg.Server.ServiceName)
	require.NoError(t, err)
	defer rc.Close()
	require.NoError(t, rc.Login(ctx, protocol.KindLoginMP, "Pluto"))

	require.Eventually(t, func() bool { return reg.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	// The socket player hears about the rpc player joining.
	deadline := time.After(2 * time.Second)
	for seen := false; !seen; {
		select {
		case msg, ok := <-ws.Messages():
			require.True(t, ok, "connection closed")
			if msg.Kind != protocol.KindModelUpdate {
				continue
			}
			e, err := msg.Event()
			require.NoError(t, err)
			if st, ok := e.(event.PlayerConnectionStatus); ok && st.Player == "Pluto" {
				assert.True(t, st.Connected)
				seen = true
			}
		case <-deadline:
			t.Fatal("no connection update for Pluto")
		}
	}

	var out bytes.Buffer
	writeStatus(&out, reg, time.Now())
	assert.Contains(t, out.String(), "2 open sessions")
	assert.Regexp(t, `Pippo\s+socket\s+online`, out.String())
	assert.Regexp(t, `Pluto\s+rpc\s+online`, out.String())
	assert.Contains(t, out.String(), "goroutines")
}

func TestServeStopsOnQuit(t *testing.T) {
	cfg := loopbackConfig(t)
	in, w := io.Pipe()
	defer w.Close()

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), cfg, in, &out) }()

	_, err := w.Write([]byte("status\nhelp\n  QUIT \n"))
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop on quit")
	}
	assert.Contains(t, out.String(), "0 open sessions")
	assert.Contains(t, out.String(), "commands: status | quit")
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := loopbackConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, eofReader{}, io.Discard) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop on cancel")
	}
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
