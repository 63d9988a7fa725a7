package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/chatrelay/config"
	"github.com/teilomillet/chatrelay/errors"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chatrelay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		path := writeConfig(t, `
generation:
  base_url: http://inference:8000
server:
  port: 9090
`)
		cfg, err := loadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "http://inference:8000", cfg.Generation.BaseURL)
		assert.Equal(t, 9090, cfg.Server.Port)
	})

	t.Run("environment only", func(t *testing.T) {
		t.Setenv(config.EnvConfigPath, "")
		t.Setenv(config.EnvAPIURL, "http://from-env:8000")
		cfg, err := loadConfig("")
		require.NoError(t, err)
		assert.Equal(t, "http://from-env:8000", cfg.Generation.BaseURL)
	})

	t.Run("missing base url", func(t *testing.T) {
		t.Setenv(config.EnvConfigPath, "")
		t.Setenv(config.EnvAPIURL, "")
		_, err := loadConfig("")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConfiguration))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Setenv(config.EnvAPIURL, "")
	path := writeConfig(t, `
generation:
  base_url: http://inference:8000
server:
  port: 0
  shutdown_timeout: 1s
`)
	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, path, zap.NewNop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_InvalidWatchPath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Generation.BaseURL = "http://inference:8000"
	cfg.Server.Port = 0

	err := run(context.Background(), cfg, filepath.Join(t.TempDir(), "absent.yaml"), zap.NewNop())
	require.Error(t, err)
}
