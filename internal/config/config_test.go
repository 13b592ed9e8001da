package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "1h", cfg.Cache.TTL)
	assert.True(t, cfg.Cache.MemoryEnabled)
	assert.False(t, cfg.Cache.RedisEnabled)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, "external_zones", cfg.Database.ZoneTable)
	assert.Equal(t, 1, cfg.Analysis.MinDuration)
	assert.Equal(t, 3, cfg.Analysis.ClusterCount)
	assert.Equal(t, 10, cfg.Analysis.RegressionMinSamples)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ENVIRONMENT", "Production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "30m", cfg.Cache.TTL)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "production", cfg.Environment)
}

func TestLoad_InvalidTTL(t *testing.T) {
	viper.Reset()
	t.Setenv("CACHE_TTL", "not-a-duration")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid cache TTL")
}

func TestLoad_InvalidMinDuration(t *testing.T) {
	viper.Reset()
	t.Setenv("ANALYSIS_MIN_DURATION", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "min_duration")
}

func TestConfig_Addresses(t *testing.T) {
	cfg := &Config{
		Redis: RedisConfig{Host: "cache.local", Port: 6380},
		Database: DatabaseConfig{
			Host: "db.local", Port: 5433, User: "u", Password: "p",
			DBName: "zones", SSLMode: "disable",
		},
	}

	assert.Equal(t, "cache.local:6380", cfg.RedisAddr())
	assert.Equal(t, "postgres://u:p@db.local:5433/zones?sslmode=disable", cfg.DatabaseDSN())
}
