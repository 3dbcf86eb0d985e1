// Package config loads the server and client configuration: defaults, then
// a YAML file, then SAGRADA_* environment variables. Command-line flags are
// applied on top by the binaries before Validate.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/logging"
)

const envPrefix = "SAGRADA_"

type Config struct {
	Server  ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Game    GameConfig     `yaml:"game" envPrefix:"GAME_"`
	Client  ClientConfig   `yaml:"client" envPrefix:"CLIENT_"`
	Logging logging.Config `yaml:"logging"`
}

type ServerConfig struct {
	BindAddress  string        `yaml:"bind_address" env:"BIND_ADDRESS"`
	ServiceName  string        `yaml:"service_name" env:"SERVICE_NAME"`
	SocketPort   int           `yaml:"socket_port" env:"SOCKET_PORT"`
	RPCPort      int           `yaml:"rpc_port" env:"RPC_PORT"`
	PingInterval time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	LoginTimeout time.Duration `yaml:"login_timeout" env:"LOGIN_TIMEOUT"`
	OutboxSize   int           `yaml:"outbox_size" env:"OUTBOX_SIZE"`
}

type GameConfig struct {
	MinPlayers int   `yaml:"min_players" env:"MIN_PLAYERS"`
	MaxPlayers int   `yaml:"max_players" env:"MAX_PLAYERS"`
	Rounds     int   `yaml:"rounds" env:"ROUNDS"`
	Seed       int64 `yaml:"seed" env:"SEED"`
}

type ClientConfig struct {
	Transport string `yaml:"transport" env:"TRANSPORT"`
	Display   string `yaml:"display" env:"DISPLAY"`
	Host      string `yaml:"host" env:"HOST"`
	Username  string `yaml:"username" env:"USERNAME"`
}

const (
	TransportSocket = "socket"
	TransportRPC    = "rpc"

	DisplayText = "text"
	DisplayTUI  = "tui"
)

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:  "0.0.0.0",
			ServiceName:  "sagrada",
			SocketPort:   9000,
			RPCPort:      9001,
			PingInterval: 5 * time.Second,
			IdleTimeout:  20 * time.Second,
			WriteTimeout: 5 * time.Second,
			LoginTimeout: 10 * time.Second,
			OutboxSize:   128,
		},
		Game: GameConfig{
			MinPlayers: 2,
			MaxPlayers: 4,
			Rounds:     10,
		},
		Client: ClientConfig{
			Transport: TransportSocket,
			Display:   DisplayText,
			Host:      "127.0.0.1",
		},
	}
}

// Default returns the built-in configuration with environment overrides.
func Default() (*Config, error) {
	cfg := defaultConfig()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "cannot read configuration").
			WithDetail("path", path)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "malformed configuration").
			WithDetail("path", path)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return Default()
	}
	return cfg, err
}

func applyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "malformed environment override")
	}
	return nil
}

var serviceNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)

// Validate checks the configuration. Errors carry CONFIG_INVALID.
func (c *Config) Validate() error {
	s := c.Server
	if s.BindAddress == "" {
		return apperrors.ConfigInvalid("server.bind_address is empty")
	}
	if !serviceNameRe.MatchString(s.ServiceName) {
		return apperrors.ConfigInvalid(fmt.Sprintf("server.service_name %q is not a valid name", s.ServiceName))
	}
	for name, port := range map[string]int{"server.socket_port": s.SocketPort, "server.rpc_port": s.RPCPort} {
		if port < 0 || port > 65535 {
			return apperrors.ConfigInvalid(fmt.Sprintf("%s %d out of range", name, port)).WithDetail("field", name)
		}
	}
	if s.SocketPort != 0 && s.SocketPort == s.RPCPort {
		return apperrors.ConfigInvalid("server.socket_port and server.rpc_port must differ")
	}
	for name, d := range map[string]time.Duration{
		"server.ping_interval": s.PingInterval,
		"server.idle_timeout":  s.IdleTimeout,
		"server.write_timeout": s.WriteTimeout,
		"server.login_timeout": s.LoginTimeout,
	} {
		if d <= 0 {
			return apperrors.ConfigInvalid(fmt.Sprintf("%s must be positive", name)).WithDetail("field", name)
		}
	}
	if s.IdleTimeout <= s.PingInterval {
		return apperrors.ConfigInvalid("server.idle_timeout must exceed server.ping_interval")
	}
	if s.OutboxSize < 1 {
		return apperrors.ConfigInvalid("server.outbox_size must be at least 1")
	}

	g := c.Game
	if g.MaxPlayers < 1 || g.MaxPlayers > 4 {
		return apperrors.ConfigInvalid(fmt.Sprintf("game.max_players %d not in 1..4", g.MaxPlayers))
	}
	if g.MinPlayers < 1 || g.MinPlayers > g.MaxPlayers {
		return apperrors.ConfigInvalid(fmt.Sprintf("game.min_players %d not in 1..%d", g.MinPlayers, g.MaxPlayers))
	}
	if g.Rounds < 1 {
		return apperrors.ConfigInvalid("game.rounds must be at least 1")
	}

	cl := c.Client
	switch cl.Transport {
	case TransportSocket, TransportRPC:
	default:
		return apperrors.ConfigInvalid(fmt.Sprintf("client.transport %q is not one of socket, rpc", cl.Transport))
	}
	switch cl.Display {
	case DisplayText, DisplayTUI:
	default:
		return apperrors.ConfigInvalid(fmt.Sprintf("client.display %q is not one of text, tui", cl.Display))
	}
	return nil
}

// SocketAddr is the listen address of the socket transport.
func (s ServerConfig) SocketAddr() string {
	return net.JoinHostPort(s.BindAddress, strconv.Itoa(s.SocketPort))
}

// RPCAddr is the listen address of the call-style transport.
func (s ServerConfig) RPCAddr() string {
	return net.JoinHostPort(s.BindAddress, strconv.Itoa(s.RPCPort))
}

// ServerURL is the endpoint the client dials for its configured transport.
func (c *Config) ServerURL() string {
	switch c.Client.Transport {
	case TransportRPC:
		return "http://" + net.JoinHostPort(c.Client.Host, strconv.Itoa(c.Server.RPCPort))
	default:
		return "ws://" + net.JoinHostPort(c.Client.Host, strconv.Itoa(c.Server.SocketPort)) + "/" + c.Server.ServiceName
	}
}
