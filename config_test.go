package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()

	cfg := &Config{}
	newCmd(cfg)
	return cfg
}

func TestConfig_Defaults(t *testing.T) {
	cfg := defaultConfig(t)

	require.NoError(t, cfg.validate())
	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, time.Hour, cfg.idleTimeout)
	assert.Equal(t, 10*time.Second, cfg.sweepInterval)
	assert.Equal(t, 5*time.Second, cfg.pingInterval)
	assert.EqualValues(t, 2<<20, cfg.maxLogoSize)
	assert.EqualValues(t, 5<<20, cfg.maxPayload)
	assert.Equal(t, "http", cfg.scheme())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too low", func(c *Config) { c.port = 0 }},
		{"port too high", func(c *Config) { c.port = 70000 }},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }},
		{"zero idle timeout", func(c *Config) { c.idleTimeout = 0 }},
		{"negative ping interval", func(c *Config) { c.pingInterval = -time.Second }},
		{"zero sweep interval", func(c *Config) { c.sweepInterval = 0 }},
		{"zero payload", func(c *Config) { c.maxPayload = 0 }},
		{"logo larger than payload", func(c *Config) { c.maxLogoSize = c.maxPayload + 1 }},
		{"no games dir", func(c *Config) { c.gamesDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestConfig_TLSScheme(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.tlsCert = "cert.pem"
	cfg.tlsKey = "key.pem"

	require.NoError(t, cfg.validate())
	assert.Equal(t, "https", cfg.scheme())
}

func TestNewCmd_Environment(t *testing.T) {
	t.Setenv("FEUDBOX_PORT", "9090")
	t.Setenv("FEUDBOX_IDLE_TIMEOUT", "30m")
	t.Setenv("FEUDBOX_GAMES_DIR", "/srv/games")
	t.Setenv("FEUDBOX_CORS_ORIGIN", "https://a.example,https://b.example")
	t.Setenv("FEUDBOX_METRICS", "true")

	cfg := defaultConfig(t)

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, 30*time.Minute, cfg.idleTimeout)
	assert.Equal(t, "/srv/games", cfg.gamesDir)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.corsOrigins)
	assert.True(t, cfg.metrics)
}

func TestNewCmd_FlagsWinOverEnvironment(t *testing.T) {
	t.Setenv("FEUDBOX_PORT", "9090")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--port", "7070"}))

	assert.Equal(t, 7070, cfg.port)
}
