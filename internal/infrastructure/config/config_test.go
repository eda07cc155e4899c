package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Proxy config
	assert.Equal(t, 20*time.Second, cfg.Proxy.Timeout)
	assert.Equal(t, 2, cfg.Proxy.MaxRetries)
	assert.Equal(t, 50, cfg.Proxy.UpstreamRPS)
	assert.False(t, cfg.Proxy.AllowPrivate)

	// Session config
	assert.Equal(t, 500, cfg.Session.MaxSteps)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleGrace)
	assert.Equal(t, 64, cfg.Session.ListenerBuffer)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                "9000",
		"HOST":                "127.0.0.1",
		"PROXY_TIMEOUT":       "5s",
		"PROXY_ALLOW_PRIVATE": "true",
		"SESSION_MAX_STEPS":   "50",
		"SESSION_IDLE_GRACE":  "10m",
		"LOG_LEVEL":           "debug",
		"LOG_DEV":             "true",
		"RATE_LIMIT_RPS":      "500",
		"RATE_LIMIT_ENABLED":  "false",
	}
	for key, value := range envVars {
		err := os.Setenv(key, value)
		require.NoError(t, err)
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 5*time.Second, cfg.Proxy.Timeout)
	assert.True(t, cfg.Proxy.AllowPrivate)
	assert.Equal(t, 50, cfg.Session.MaxSteps)
	assert.Equal(t, 10*time.Minute, cfg.Session.IdleGrace)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	err := os.Setenv("PORT", "3000")
	require.NoError(t, err)
	defer os.Unsetenv("PORT")

	err = os.Setenv("LOG_LEVEL", "warn")
	require.NoError(t, err)
	defer os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Defaults still apply for everything untouched.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 500, cfg.Session.MaxSteps)
	assert.Equal(t, 20*time.Second, cfg.Proxy.Timeout)
}

func TestLoadWithYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "otw.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7070"
session:
  max_steps: 25
proxy:
  allow_private: true
`), 0o644))

	err := os.Setenv("OTW_CONFIG_FILE", path)
	require.NoError(t, err)
	defer os.Unsetenv("OTW_CONFIG_FILE")

	err = os.Setenv("PORT", "9999")
	require.NoError(t, err)
	defer os.Unsetenv("PORT")

	cfg, err := Load()
	require.NoError(t, err)

	// File wins over environment; untouched keys keep env/defaults.
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 25, cfg.Session.MaxSteps)
	assert.True(t, cfg.Proxy.AllowPrivate)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 64, cfg.Session.ListenerBuffer)
}

func TestLoadWithBrokenYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	err := os.Setenv("OTW_CONFIG_FILE", path)
	require.NoError(t, err)
	defer os.Unsetenv("OTW_CONFIG_FILE")

	_, err = Load()
	assert.Error(t, err)

	// LoadOrDefault falls back rather than failing startup.
	cfg := LoadOrDefault()
	assert.Equal(t, "8000", cfg.Server.Port)
}
