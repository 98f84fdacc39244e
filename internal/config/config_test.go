package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarkflip/pf-verify/internal/engine"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, engine.Float64Bit, cfg.Convention())
	assert.Equal(t, 8, cfg.Engine.BatchWorkers)
	assert.Empty(t, cfg.Store.Path)
	assert.Equal(t, "pfverify.reports", cfg.NATS.SubjectPrefix)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pfverify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: 127.0.0.1:9000
  request_timeout: 5s
engine:
  float_convention: 52bit
  batch_workers: 3
store:
  path: /tmp/runs.db
cache:
  in_memory: true
log:
  level: debug
`), 0o644))

	t.Setenv("PFV_SERVER_ADDR", "0.0.0.0:7000")
	t.Setenv("PFV_NATS_URL", "nats://localhost:4222")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, engine.Float52Bit, cfg.Convention())
	assert.Equal(t, 3, cfg.Engine.BatchWorkers)
	assert.Equal(t, "/tmp/runs.db", cfg.Store.Path)
	assert.True(t, cfg.Cache.InMemory)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsBadConvention(t *testing.T) {
	t.Setenv("PFV_ENGINE_FLOAT_CONVENTION", "80bit")
	_, err := Load("")
	assert.ErrorIs(t, err, engine.ErrConfiguration)
}

func TestLoadRejectsBadEnvValue(t *testing.T) {
	t.Setenv("PFV_ENGINE_BATCH_WORKERS", "many")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Engine.BatchWorkers = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Server.Addr = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Engine.ScanWorkers = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
