package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/cli"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/config"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/engine"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/logging"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/registry"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/router"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport/rpc"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport/socket"
)

const stopTimeout = 5 * time.Second

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		cli.NewErrorHandler(cli.GetOptions(rootCmd).Verbose).Handle(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := cli.NewStandardCommand("sagrada-server", "Host Sagrada games over the socket and rpc transports")
	cmd.Long = `Starts the hybrid server. Clients may connect over the message socket
(ws://<host>:<socket-port>/<service>) or the call-style rpc endpoint
(http://<host>:<rpc-port>). Type "quit" or send SIGINT/SIGTERM to stop.`

	flags := cmd.Flags()
	flags.String("bind", "", "Override server.bind_address")
	flags.Int("socket-port", 0, "Override server.socket_port")
	flags.Int("rpc-port", 0, "Override server.rpc_port")
	flags.Int("min-players", 0, "Override game.min_players")
	flags.Int("max-players", 0, "Override game.max_players")
	flags.Int("rounds", 0, "Override game.rounds")
	flags.Int64("seed", 0, "Override game.seed (0 picks a random seed)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		opts := cli.GetOptions(cmd)
		cfg, err := cli.LoadConfig(opts)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cli.SetupLogging(cfg.Logging, opts); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
	}
	return cmd
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("bind") {
		cfg.Server.BindAddress, _ = flags.GetString("bind")
	}
	if flags.Changed("socket-port") {
		cfg.Server.SocketPort, _ = flags.GetInt("socket-port")
	}
	if flags.Changed("rpc-port") {
		cfg.Server.RPCPort, _ = flags.GetInt("rpc-port")
	}
	if flags.Changed("min-players") {
		cfg.Game.MinPlayers, _ = flags.GetInt("min-players")
	}
	if flags.Changed("max-players") {
		cfg.Game.MaxPlayers, _ = flags.GetInt("max-players")
	}
	if flags.Changed("rounds") {
		cfg.Game.Rounds, _ = flags.GetInt("rounds")
	}
	if flags.Changed("seed") {
		cfg.Game.Seed, _ = flags.GetInt64("seed")
	}
}

// newServer wires both transports, the registry and the reference engine.
func newServer(cfg *config.Config) *registry.Registry {
	s := cfg.Server
	opts := transport.Options{
		WriteTimeout: s.WriteTimeout,
		LoginTimeout: s.LoginTimeout,
		IdleTimeout:  s.IdleTimeout,
		OutboxSize:   s.OutboxSize,
	}
	reg := registry.New(
		registry.Options{PingInterval: s.PingInterval, IdleTimeout: s.IdleTimeout},
		socket.NewListener(s.SocketAddr(), s.ServiceName, opts),
		rpc.NewListener(s.RPCAddr(), s.ServiceName, opts),
	)
	eng := engine.New(engine.Options{
		MinPlayers: cfg.Game.MinPlayers,
		MaxPlayers: cfg.Game.MaxPlayers,
		Rounds:     cfg.Game.Rounds,
		Seed:       cfg.Game.Seed,
	})
	reg.SetHandler(router.New(eng, reg))
	return reg
}

// serve runs the server until ctx ends or a "quit" line is read from in.
// A "status" line prints the roster to out.
func serve(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	logger := logging.NewLogger("server")

	reg := newServer(cfg)
	if err := reg.Start(ctx); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"socket":  reg.Addr(transport.KindSocket).String(),
		"rpc":     reg.Addr(transport.KindRPC).String(),
		"service": cfg.Server.ServiceName,
	}).Info("accepting players")

	quit := make(chan struct{})
	go console(in, out, reg, quit)

	select {
	case <-ctx.Done():
		logger.Info("signal received, shutting down")
	case <-quit:
		logger.Info("quit requested, shutting down")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return reg.Stop(stopCtx)
}

// console reads operator commands until "quit", which closes quit. End of
// input leaves the server running so it can be started detached from a
// terminal.
func console(in io.Reader, out io.Writer, reg *registry.Registry, quit chan<- struct{}) {
	started := time.Now()
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		switch strings.ToLower(strings.TrimSpace(sc.Text())) {
		case "":
		case "quit", "exit":
			close(quit)
			return
		case "status":
			writeStatus(out, reg, started)
		default:
			fmt.Fprintln(out, `commands: status | quit`)
		}
	}
}
