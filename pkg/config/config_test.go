package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lintang/saferoute/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)
		assert.Equal(t, ":5000", cfg.ListenAddr)
		assert.Equal(t, "saferouteDB", cfg.CacheDir)
		assert.Equal(t, 4, cfg.Workers)
		assert.Equal(t, 25.0, cfg.BufferMeters)
		assert.Equal(t, 2*time.Second, cfg.SourceBackoff)
		assert.Equal(t, "New York", cfg.ServiceArea)
		assert.False(t, cfg.ForceReload)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("SAFEROUTE_WORKERS", "8")
		t.Setenv("SAFEROUTE_MAX_SETTLED_NODES", "100000")
		t.Setenv("SAFEROUTE_SOURCE_BACKOFF", "500ms")
		cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)
		assert.Equal(t, 8, cfg.Workers)
		assert.Equal(t, 100000, cfg.MaxSettledNodes)
		assert.Equal(t, 500*time.Millisecond, cfg.SourceBackoff)
	})

	t.Run("env file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("SAFEROUTE_LISTEN_ADDR=:7000\nSAFEROUTE_BUFFER_METERS=40\n"), 0o644))
		t.Setenv("SAFEROUTE_LISTEN_ADDR", "")
		os.Unsetenv("SAFEROUTE_LISTEN_ADDR")
		t.Setenv("SAFEROUTE_BUFFER_METERS", "")
		os.Unsetenv("SAFEROUTE_BUFFER_METERS")

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, ":7000", cfg.ListenAddr)
		assert.Equal(t, 40.0, cfg.BufferMeters)
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("SAFEROUTE_WORKERS", "0")
		t.Setenv("SAFEROUTE_BUFFER_METERS", "-1")
		t.Setenv("SAFEROUTE_LOG_LEVEL", "loud")
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "workers")
		assert.Contains(t, err.Error(), "buffer")
		assert.Contains(t, err.Error(), "log level")
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{LogLevel: "warn", LogFormat: "json"}
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.False(t, strings.Contains(buf.String(), "hidden"))
	assert.True(t, strings.HasPrefix(buf.String(), "{"))

	buf.Reset()
	cfg.LogFormat = "text"
	cfg.NewLogger(&buf).Warn("shown")
	assert.Contains(t, buf.String(), "level=WARN")
}
