package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LOANLENS_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8002, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "$", cfg.CurrencySymbol)
	assert.False(t, cfg.StrictFormulas)
	assert.True(t, cfg.SnapshotsEnabled)
	assert.Equal(t, "*/15 * * * *", cfg.SnapshotSchedule)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOANLENS_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("CURRENCY_SYMBOL", "KSh ")
	t.Setenv("STRICT_FORMULAS", "true")
	t.Setenv("SNAPSHOTS_ENABLED", "false")
	t.Setenv("SNAPSHOT_SCHEDULE", "0 * * * *")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "KSh ", cfg.CurrencySymbol)
	assert.True(t, cfg.StrictFormulas)
	assert.False(t, cfg.SnapshotsEnabled)
	assert.Equal(t, "0 * * * *", cfg.SnapshotSchedule)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("LOANLENS_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "99999")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("LOANLENS_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8002, cfg.Port)
}

func TestDBPaths(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/loanlens"}
	assert.Equal(t, "/var/lib/loanlens/portfolio.db", cfg.PortfolioDBPath())
	assert.Equal(t, "/var/lib/loanlens/cache.db", cfg.CacheDBPath())
}
