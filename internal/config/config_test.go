package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("listen_address: \":9000\"\nmin_interval_seconds: 5\nlog_level: debug\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("PROJECTMONITOR_LOG_LEVEL", "warn")
	t.Setenv("PROJECTMONITOR_AUTOSTART", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddress)
	assert.Equal(t, 5*time.Second, cfg.MinInterval())
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.Autostart)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_address: [unterminated"), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestLoadClampsNonPositiveValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("min_interval_seconds: 0\nrequest_timeout_seconds: -3\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.MinInterval())
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
}
