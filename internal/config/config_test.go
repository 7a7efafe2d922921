package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, "https://api.reelfeed.app", cfg.API.BaseURL)
	assert.Equal(t, 12*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2, cfg.API.RetryAttempts)
	assert.Equal(t, 350*time.Millisecond, cfg.API.RetryBackoff)
	assert.Equal(t, 50, cfg.Cache.MaxSnapshotItems)
	assert.Equal(t, 30, cfg.Cache.PageSize)
	assert.NotEmpty(t, cfg.Database.Path)
	assert.NotEmpty(t, cfg.Search.IndexPath)
	assert.Equal(t, "off", cfg.Log.Level)
}

func TestLoad_FromFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.toml")
	content := `
[api]
base_url = "http://localhost:9999"
timeout = "5s"
retry_attempts = 4

[cache]
page_size = 10

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 4, cfg.API.RetryAttempts)
	assert.Equal(t, 10, cfg.Cache.PageSize)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset keys keep their defaults
	assert.Equal(t, 50, cfg.Cache.MaxSnapshotItems)
	assert.Equal(t, 350*time.Millisecond, cfg.API.RetryBackoff)
}

func TestGenerateDefaultConfig_RoundTrip(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "sub", "config.toml")

	require.NoError(t, GenerateDefaultConfig(configFile))
	require.FileExists(t, configFile)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, "https://api.reelfeed.app", cfg.API.BaseURL)
	assert.Equal(t, 12*time.Second, cfg.API.Timeout)
	assert.Equal(t, 50, cfg.Cache.MaxSnapshotItems)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "db", "feed.db"), expandPath("~/db/feed.db"))
	assert.Equal(t, "/absolute/path.db", expandPath("/absolute/path.db"))
	assert.Equal(t, "", expandPath(""))

	got := expandPath("relative.db")
	assert.True(t, filepath.IsAbs(got), "relative paths become absolute: %s", got)
}

func TestTestConfig(t *testing.T) {
	cfg := TestConfig()
	assert.Equal(t, time.Millisecond, cfg.API.RetryBackoff, "tests must not sleep through real backoff")
	assert.Equal(t, 2, cfg.API.RetryAttempts)
	assert.NotEmpty(t, cfg.API.UserAgent)
}
