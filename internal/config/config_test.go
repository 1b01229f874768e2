package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8083", cfg.HTTP.Addr)
	assert.Equal(t, 7*24*time.Hour, cfg.Delivery.RetryQueueTTL)
	assert.Equal(t, 24*time.Hour, cfg.Delivery.RetryCountTTL)
	assert.Equal(t, 4, cfg.Delivery.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Delivery.SweepInterval)
	assert.Equal(t, 90*24*time.Hour, cfg.Delivery.ReadStatusRetention)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
http:
  addr: ":9000"
redis:
  addr: "redis:6379"
auth:
  jwtSecret: "file-secret"
delivery:
  maxRetries: 2
  sweepInterval: 10s
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 2, cfg.Delivery.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Delivery.SweepInterval)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":9000\"\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("HTTP_ADDR", ":7777")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.HTTP.Addr)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}
