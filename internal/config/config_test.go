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
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "0 0 * * 0", cfg.Scheduler.Cron)

	assert.Equal(t, 100, cfg.Leaderboard.TopPlayersCount)
	assert.Equal(t, 3, cfg.Leaderboard.SurroundingAbove)
	assert.Equal(t, 2, cfg.Leaderboard.SurroundingBelow)
	assert.Equal(t, time.Hour, cfg.Leaderboard.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Leaderboard.LockTTL)
	assert.Equal(t, 0.02, cfg.Leaderboard.PoolFraction)
	assert.Equal(t, 5, cfg.Leaderboard.RateLimitRequests)
	assert.Equal(t, 10*time.Second, cfg.Leaderboard.RateLimitWindow)
}

func TestLoadAppliesDefaultsOverPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
leaderboard:
  top_players_count: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Leaderboard.TopPlayersCount)
	// Untouched sections fall back to defaults
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Leaderboard.RateLimitRequests)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis-main:6379")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
redis:
  addr: ${TEST_REDIS_ADDR}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis-main:6379", cfg.Redis.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestPostgresConnectionString(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db",
		Port:     5432,
		User:     "app",
		Password: "secret",
		Database: "leaderboard",
	}
	assert.Equal(t,
		"postgres://app:secret@db:5432/leaderboard?sslmode=disable",
		cfg.ConnectionString(),
	)
}
