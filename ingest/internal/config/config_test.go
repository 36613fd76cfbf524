package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8085", cfg.Server.ListenAddress)
	assert.Equal(t, time.Duration(0), cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 8086, cfg.Admin.Port)

	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 60, cfg.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)

	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "localhost", cfg.Storage.Postgres.Host)
	assert.Equal(t, 5432, cfg.Storage.Postgres.Port)
	assert.Equal(t, int32(10), cfg.Storage.Postgres.MaxConns)
	assert.Equal(t, "vibration-records", cfg.Storage.OpenSearch.Index)
	assert.True(t, cfg.Storage.OpenSearch.TLSSkipVerify)
	assert.False(t, cfg.Storage.Redis.Enabled)
	assert.Equal(t, time.Second, cfg.Storage.Redis.TTL)

	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, -1, cfg.NATS.MaxReconnects)
	assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.yaml")
	content := `
server:
  listen_address: ":9999"
  read_timeout: 30s
storage:
  backend: memory
nats:
  enabled: true
  url: nats://nats:4222
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.ListenAddress)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, 8086, cfg.Admin.Port)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("INGEST_SERVER_LISTEN_ADDRESS", ":7000")
	t.Setenv("INGEST_STORAGE_BACKEND", "opensearch")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.ListenAddress)
	assert.Equal(t, "opensearch", cfg.Storage.Backend)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
