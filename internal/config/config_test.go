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
	cfg := Defaults()
	assert.Equal(t, "file", cfg.Database.Type)
	assert.Equal(t, ".kleio", cfg.Database.Name)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
	assert.False(t, cfg.Debug)
}

func TestResolve_ExplicitFileWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kleio_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  type: redis
  address: localhost:6379
heartbeat_interval: 30s
host_env_vars:
  - CUDA_VISIBLE_DEVICES
`), 0o644))

	cfg, err := Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Database.Type)
	assert.Equal(t, "localhost:6379", cfg.Database.Address)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, []string{"CUDA_VISIBLE_DEVICES"}, cfg.HostEnvVars)
	assert.Equal(t, ".kleio", cfg.Database.Name, "unset keys keep their defaults")
}

func TestResolve_ExplicitFileMustExist(t *testing.T) {
	_, err := Resolve(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "not found")
}

func TestResolve_EnvOverridesDefaults(t *testing.T) {
	t.Setenv(EnvDBType, "memory")
	t.Setenv(EnvDBName, "testing")
	t.Setenv(EnvDebug, "1")

	cfg, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Type)
	assert.Equal(t, "testing", cfg.Database.Name)
	assert.True(t, cfg.Debug)
}

func TestResolve_ExplicitFileOverridesEnv(t *testing.T) {
	t.Setenv(EnvDBType, "redis")

	dir := t.TempDir()
	path := filepath.Join(dir, "kleio_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  type: file\n"), 0o644))

	cfg, err := Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Database.Type)
}

func TestMerge_NestedMaps(t *testing.T) {
	a := map[string]any{
		"database": map[string]any{"type": "file", "name": ".kleio"},
		"debug":    false,
	}
	b := map[string]any{
		"database": map[string]any{"type": "redis"},
	}

	merged := Merge(a, b)
	db := merged["database"].(map[string]any)
	assert.Equal(t, "redis", db["type"], "b wins on conflict")
	assert.Equal(t, ".kleio", db["name"], "nested maps merge, not replace")
	assert.Equal(t, false, merged["debug"])
}

func TestResolve_BadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kleio_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [unclosed"), 0o644))

	_, err := Resolve(path)
	assert.Error(t, err)
}
