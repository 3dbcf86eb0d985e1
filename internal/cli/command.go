// Package cli holds the pieces shared by the sagrada binaries: standard
// flags, configuration loading and error reporting.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/config"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/logging"
)

// DefaultConfigFile is read when --config is not given. It may be absent.
const DefaultConfigFile = "sagrada.yaml"

// CommandOptions holds the options every sagrada command accepts.
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONLog    bool
}

// NewStandardCommand creates a command with the standard sagrada flags.
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().Bool("json-log", false, "Write logs as JSON")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML config file (default "+DefaultConfigFile+")")

	return cmd
}

// GetOptions extracts the standard options from a command.
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonLog, _ := cmd.Flags().GetBool("json-log")

	return CommandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONLog:    jsonLog,
	}
}

// LoadConfig reads the configuration named by --config. Without the flag
// DefaultConfigFile is tried and the built-in defaults used if it is missing;
// an explicit path must exist.
func LoadConfig(opts CommandOptions) (*config.Config, error) {
	if opts.ConfigFile != "" {
		return config.Load(opts.ConfigFile)
	}
	return config.LoadOrDefault(DefaultConfigFile)
}

// SetupLogging applies the logging section of cfg, with --verbose and
// --json-log taking precedence.
func SetupLogging(cfg logging.Config, opts CommandOptions) error {
	if opts.Verbose {
		cfg.Level = "debug"
	}
	if opts.JSONLog {
		cfg.Format = "json"
	}
	return logging.Setup(cfg)
}
