package dbbridge_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berkeerdo/dbbridge"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
dialect:
  name: postgres
  source: "postgres://localhost/app"
cache:
  prefix: "qb:"
  default_ttl: "5m"
  max_ttl: "1h"
  warn_on_large_result: 1000
  max_cacheable_rows: 10000
transaction:
  isolation: serializable
  read_only: false
  deferrable: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := dbbridge.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Dialect.Name)
	assert.Equal(t, "serializable", cfg.Tx.Isolation)
	assert.True(t, cfg.Tx.Deferrable)

	durations, err := cfg.Cache.Durations()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, durations.DefaultTTL)
	assert.Equal(t, time.Hour, durations.MaxTTL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := dbbridge.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestCacheConfigDurationsRejectsInvalid(t *testing.T) {
	cc := dbbridge.CacheConfig{DefaultTTL: "not-a-duration"}
	_, err := cc.Durations()
	require.Error(t, err)
}
