package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/cli"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/client"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/config"
	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/organizer"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/tui"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		cli.NewErrorHandler(cli.GetOptions(rootCmd).Verbose).Handle(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := cli.NewStandardCommand("sagrada-client", "Join a Sagrada game")
	cmd.Long = `Connects to a sagrada-server, logs in and shows the game either as plain
text lines or as a full-screen terminal view. Commands are typed at the
prompt; "help" lists them.`

	flags := cmd.Flags()
	flags.StringP("username", "u", "", "Username to log in with (overrides client.username)")
	flags.StringP("transport", "t", "", "Transport to use: socket or rpc")
	flags.String("host", "", "Server host (overrides client.host)")
	flags.StringP("display", "d", "", "Display to use: text or tui")
	flags.Bool("solo", false, "Start a single-player game")

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
		if cfg.Client.Username == "" {
			return apperrors.ConfigInvalid("a username is required, pass --username")
		}

		logCfg := cfg.Logging
		if cfg.Client.Display == config.DisplayTUI && logCfg.File == "" {
			logCfg.File = filepath.Join(os.TempDir(), "sagrada-client.log")
		}
		if err := cli.SetupLogging(logCfg, opts); err != nil {
			return err
		}

		solo, _ := cmd.Flags().GetBool("solo")
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return play(ctx, cfg, solo)
	}
	return cmd
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("username") {
		cfg.Client.Username, _ = flags.GetString("username")
	}
	if flags.Changed("transport") {
		cfg.Client.Transport, _ = flags.GetString("transport")
	}
	if flags.Changed("host") {
		cfg.Client.Host, _ = flags.GetString("host")
	}
	if flags.Changed("display") {
		cfg.Client.Display, _ = flags.GetString("display")
	}
}

// play logs in and hands the session to the configured display until the
// player quits or the connection is lost.
func play(ctx context.Context, cfg *config.Config, solo bool) error {
	conn, err := client.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	sess := client.NewSession(conn, organizer.New())
	defer sess.Close()

	if err := sess.Login(ctx, cfg.Client.Username, solo); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	if cfg.Client.Display == config.DisplayTUI {
		return tui.Run(ctx, sess, cfg.Client.Transport, done)
	}
	return playText(ctx, sess, os.Stdin, os.Stdout, done)
}

// playText runs the line display and stops it when the session ends. A lost
// connection is returned as the result.
func playText(ctx context.Context, sess tui.Session, in io.Reader, out io.Writer, done <-chan error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lost := make(chan error, 1)
	go func() {
		select {
		case err := <-done:
			lost <- err
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := tui.RunText(ctx, sess, in, out); err != nil {
		return err
	}
	select {
	case err := <-lost:
		return err
	default:
		return nil
	}
}
