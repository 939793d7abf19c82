package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    Config
		wantErr error
	}{
		{
			name: "valid",
			args: []string{"8080", "numbers", "3"},
			want: Config{Port: 8080, GameType: "numbers", NumPlayers: 3},
		},
		{name: "too few", args: []string{"8080", "numbers"}, wantErr: ErrUsage},
		{name: "bad port", args: []string{"http", "numbers", "3"}, wantErr: ErrInvalidPort},
		{name: "port out of range", args: []string{"70000", "numbers", "3"}, wantErr: ErrInvalidPort},
		{name: "bad players", args: []string{"8080", "numbers", "two"}, wantErr: ErrInvalidPlayers},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			err := c.ParseArgs(tt.args)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{Port: 9000, NumPlayers: 2, StartTotal: 25, MoveTimeout: time.Second, WriteTimeout: time.Second}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no players", mutate: func(c *Config) { c.NumPlayers = 0 }, wantErr: ErrInvalidPlayers},
		{name: "single player", mutate: func(c *Config) { c.NumPlayers = 1 }, wantErr: ErrInvalidPlayers},
		{name: "zero port", mutate: func(c *Config) { c.Port = 0 }, wantErr: ErrInvalidPort},
		{name: "zero total", mutate: func(c *Config) { c.StartTotal = 0 }, wantErr: ErrInvalidTotal},
		{name: "zero timeout", mutate: func(c *Config) { c.MoveTimeout = 0 }, wantErr: ErrInvalidTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBindEnv(t *testing.T) {
	t.Setenv("COUNTDOWN_MOVE_TIMEOUT", "3s")
	t.Setenv("COUNTDOWN_START_TOTAL", "40")
	t.Setenv("COUNTDOWN_BIND", "127.0.0.1")

	var c Config
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.AddFlags(fs)
	BindEnv(fs)
	require.NoError(t, fs.Parse([]string{"--start-total", "50"}))

	assert.Equal(t, 3*time.Second, c.MoveTimeout)
	assert.Equal(t, 50, c.StartTotal, "flag wins over env")
	assert.Equal(t, "127.0.0.1", c.Bind)
	assert.Equal(t, "127.0.0.1:0", (&Config{Bind: c.Bind}).Addr())
	assert.Equal(t, "info", c.LogLevel())
}

func TestClientConfig_ParseArgs(t *testing.T) {
	var c ClientConfig
	require.NoError(t, c.ParseArgs([]string{"numbers", "localhost", "7000"}))
	assert.Equal(t, "localhost:7000", c.Addr())
	assert.Equal(t, "numbers", c.GameType)

	assert.ErrorIs(t, c.ParseArgs([]string{"numbers", "localhost"}), ErrUsage)
	assert.ErrorIs(t, c.ParseArgs([]string{"numbers", "localhost", "0"}), ErrInvalidPort)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("COUNTDOWN_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("COUNTDOWN_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("COUNTDOWN_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("COUNTDOWN_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
