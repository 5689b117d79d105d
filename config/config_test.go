package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, int32(25), cfg.Database.MaxOpenConns)
	assert.Equal(t, 4*time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "none", cfg.Storage.Compression)
	assert.Equal(t, 500, cfg.Ingest.BatchSize)
	assert.Equal(t, 4, cfg.Walker.Workers)
	assert.Equal(t, 500*time.Millisecond, cfg.Walker.BackoffInitial)
	assert.Equal(t, time.Minute, cfg.Importer.Tick)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  sqlitePath: /var/lib/trustgraph.db
storage:
  compression: xz
walker:
  workers: 2
  backoffInitial: 1s
importer:
  tick: 30s
log:
  level: warn
`), 0o600))
	t.Setenv("TRUSTGRAPH_WALKER_WORKERS", "8")
	t.Setenv("TRUSTGRAPH_INGEST_RETRIES", "5")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("log-level", "info", "")
	require.NoError(t, fs.Parse([]string{"--log-level", "debug"}))

	cfg, err := Load(path, fs, map[string]string{"log-level": "log.level"})
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/var/lib/trustgraph.db", cfg.Database.SQLitePath)
	assert.Equal(t, "xz", cfg.Storage.Compression)
	assert.Equal(t, 8, cfg.Walker.Workers)
	assert.Equal(t, 5, cfg.Ingest.Retries)
	assert.Equal(t, time.Second, cfg.Walker.BackoffInitial)
	assert.Equal(t, 30*time.Second, cfg.Importer.Tick)
	assert.Equal(t, "debug", cfg.Log.Level)

	settings := cfg.WalkerSettings()
	assert.Equal(t, 8, settings.Workers)
	assert.Equal(t, time.Second, settings.Backoff.Initial)
}

func TestLoadRejectsInvalidConfiguration(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("TRUSTGRAPH_DATABASE_DRIVER", "mysql")
		_, err := Load("", nil, nil)
		assert.Error(t, err)
	})
	t.Run("unknown compression", func(t *testing.T) {
		t.Setenv("TRUSTGRAPH_STORAGE_COMPRESSION", "zip")
		_, err := Load("", nil, nil)
		assert.Error(t, err)
	})
	t.Run("missing config file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil, nil)
		assert.Error(t, err)
	})
}
