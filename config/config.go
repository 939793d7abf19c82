// Package config holds command line and environment configuration for the
// server and client binaries.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tkahng/countdown"
)

// EnvPrefix prefixes every environment variable read by the binaries.
const EnvPrefix = "COUNTDOWN"

var (
	ErrUsage          = errors.New("wrong number of arguments")
	ErrInvalidPort    = errors.New("invalid port (must be between 1-65535 inclusive)")
	ErrInvalidPlayers = errors.New("invalid number of players (must be at least 2)")
	ErrInvalidTotal   = errors.New("invalid start total (must be at least 1)")
	ErrInvalidTimeout = errors.New("invalid timeout (must be positive)")
)

// MinPlayers is the smallest game the server will host.
const MinPlayers = 2

// Config configures the server.
type Config struct {
	Port       int
	GameType   string
	NumPlayers int

	Bind           string
	StartTotal     int
	MoveTimeout    time.Duration
	WriteTimeout   time.Duration
	OpsAddr        string
	AllowedOrigins []string
	Verbose        bool
	LogJSON        bool
}

// ParseArgs reads the positional arguments <port> <gameType> <numPlayers>.
func (c *Config) ParseArgs(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: want <port> <gameType> <numPlayers>, got %d", ErrUsage, len(args))
	}
	port, err := parsePort(args[0])
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidPlayers, args[2])
	}
	c.Port = port
	c.GameType = args[1]
	c.NumPlayers = n
	return nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.NumPlayers < MinPlayers {
		return fmt.Errorf("%w: %d", ErrInvalidPlayers, c.NumPlayers)
	}
	if c.StartTotal < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidTotal, c.StartTotal)
	}
	if c.MoveTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: move %s, write %s", ErrInvalidTimeout, c.MoveTimeout, c.WriteTimeout)
	}
	return nil
}

// Addr is the game listener address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// LogLevel is the slog level name implied by the flags.
func (c *Config) LogLevel() string {
	if c.Verbose {
		return "debug"
	}
	return "info"
}

// AddFlags registers the server flags on fs.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: COUNTDOWN_BIND)")
	fs.IntVar(&c.StartTotal, "start-total", countdown.DefaultStartTotal, "countdown total at the start of the game (env: COUNTDOWN_START_TOTAL)")
	fs.DurationVar(&c.MoveTimeout, "move-timeout", countdown.DefaultMoveTimeout, "time a player may stay silent before losing (env: COUNTDOWN_MOVE_TIMEOUT)")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", countdown.DefaultWriteTimeout, "deadline for a single write to a player (env: COUNTDOWN_WRITE_TIMEOUT)")
	fs.StringVar(&c.OpsAddr, "ops-addr", "", "address for the operator HTTP server, disabled when empty (env: COUNTDOWN_OPS_ADDR)")
	fs.StringSliceVar(&c.AllowedOrigins, "allowed-origins", nil, "origins allowed to use the operator endpoints (env: COUNTDOWN_ALLOWED_ORIGINS)")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "display additional output (env: COUNTDOWN_VERBOSE)")
	fs.BoolVar(&c.LogJSON, "log-json", false, "log as JSON (env: COUNTDOWN_LOG_JSON)")
}

// ClientConfig configures the interactive client.
type ClientConfig struct {
	GameType string
	Host     string
	Port     int

	DialTimeout time.Duration
}

// ParseArgs reads the positional arguments <gameType> <serverAddress> <port>.
func (c *ClientConfig) ParseArgs(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: want <gameType> <serverAddress> <port>, got %d", ErrUsage, len(args))
	}
	port, err := parsePort(args[2])
	if err != nil {
		return err
	}
	c.GameType = args[0]
	c.Host = args[1]
	c.Port = port
	return nil
}

func (c *ClientConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ClientConfig) AddFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&c.DialTimeout, "dial-timeout", 10*time.Second, "time allowed to connect to the server (env: COUNTDOWN_DIAL_TIMEOUT)")
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	return port, nil
}

// BindEnv fills every flag not set on the command line from its
// COUNTDOWN_* environment variable. Call it before the flags are parsed.
func BindEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

// LoadDotEnv loads variables from the given files (".env" when none are
// given) without overriding the real environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}
