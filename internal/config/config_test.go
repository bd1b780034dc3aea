package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/league")
	t.Setenv("TOKEN_SALT", "pepper")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "9090", cfg.PrometheusPort)
	assert.Equal(t, 5*time.Minute, cfg.TokenRotationInterval)
	assert.Equal(t, 8, cfg.ScoringConcurrency)
	assert.Equal(t, 90, cfg.RetentionDays)
	assert.Equal(t, 64, cfg.RulesetCacheSize)
	assert.True(t, cfg.AnomalySweepEnabled)
	assert.True(t, cfg.SchedulerEnabled)
}

func TestParseRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TOKEN_SALT", "pepper")

	_, err := Parse()
	require.Error(t, err)
}

func TestParseRejectsShortRotation(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/league")
	t.Setenv("TOKEN_SALT", "pepper")
	t.Setenv("TOKEN_ROTATION_INTERVAL", "10ms")

	_, err := Parse()
	require.Error(t, err)
}

func TestParseClampsConcurrency(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/league")
	t.Setenv("TOKEN_SALT", "pepper")
	t.Setenv("SCORING_CONCURRENCY", "0")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.ScoringConcurrency)
}
