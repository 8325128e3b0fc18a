package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDirEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EXPRDB_CONFIG_DIR", dir)

	assert.Equal(t, dir, ConfigDir())
	assert.Equal(t, filepath.Join(dir, "settings.yaml"), SettingsPath())
	assert.Equal(t, filepath.Join(dir, "scores.db"), DefaultDatabasePath())
}

func TestEnsureConfigDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cfg")
	t.Setenv("EXPRDB_CONFIG_DIR", dir)

	require.NoError(t, EnsureConfigDir())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoadSettingsMissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("EXPRDB_CONFIG_DIR", t.TempDir())

	cfg, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, DefaultDatabasePath(), cfg.Database)
	assert.False(t, cfg.LoggingEnabled())
	assert.Zero(t, cfg.BusyTimeout)
	assert.Zero(t, cfg.ProbeBatchSize)
}

func TestLoadSettingsFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := "database: /data/scores.db\nlogging: DEBUG\nbusy_timeout: 5000\nprobe_batch_size: 250\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadSettingsFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/scores.db", cfg.Database)
	assert.True(t, cfg.LoggingEnabled())
	assert.Equal(t, "debug", cfg.LogLevel())
	assert.Equal(t, 5000, cfg.BusyTimeout)
	assert.Equal(t, 250, cfg.ProbeBatchSize)
}

func TestLoadSettingsFromPathInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [unclosed"), 0o644))

	_, err := LoadSettingsFromPath(path)
	require.Error(t, err)
}

func TestLoggingEnabled(t *testing.T) {
	assert.False(t, (&Settings{Logging: ""}).LoggingEnabled())
	assert.False(t, (&Settings{Logging: "none"}).LoggingEnabled())
	assert.False(t, (&Settings{Logging: "NONE"}).LoggingEnabled())
	assert.True(t, (&Settings{Logging: "info"}).LoggingEnabled())
	assert.True(t, (&Settings{Logging: "trace"}).LoggingEnabled())
}
