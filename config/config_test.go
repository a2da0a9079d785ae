package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.Postgres.Configured())
	assert.False(t, cfg.Redis.Configured())
	assert.Equal(t, 10000, cfg.Memory.MaxSize)
	assert.Equal(t, "nuvex_store", cfg.Postgres.Schema.TableName)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Memory.MaxSize, cfg.Memory.MaxSize)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nuvex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
redis:
  url: "redis://localhost:6379"
  ttl: 30s
memory:
  maxSize: 500
postgres:
  host: "localhost"
  port: 5432
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Redis.Configured())
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
	assert.Equal(t, 500, cfg.Memory.MaxSize)
	assert.True(t, cfg.Postgres.Configured())
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nuvex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
memory:
  maxSize: 500
`), 0o644))

	t.Setenv("NUVEX_MEMORY_MAX_SIZE", "9000")
	t.Setenv("NUVEX_MEMORY_TTL", "2m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Memory.MaxSize)
	assert.Equal(t, 2*time.Minute, cfg.Memory.TTL)
}

func TestEnvInvalidDurationErrors(t *testing.T) {
	t.Setenv("NUVEX_REDIS_TTL", "not-a-duration")
	_, err := Load("")
	assert.Error(t, err)
}

func TestCleanupIntervalDerivesFromTTL(t *testing.T) {
	cfg := Default()
	cfg.Memory.TTL = 24 * time.Hour
	assert.Equal(t, time.Hour, cfg.CleanupInterval())

	cfg.Memory.CleanupInterval = 5 * time.Minute
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval())
}
