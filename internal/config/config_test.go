package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "erosion_platform", cfg.Database.Database)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.AnalysisInterval)
	assert.Equal(t, 2*time.Hour, cfg.Scheduler.AnalysisLookback)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.TrainingInterval)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("SCHED_ANALYSIS_LOOKBACK", "4h")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 4*time.Hour, cfg.Scheduler.AnalysisLookback)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigRejectsMalformedValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsNegativeDuration(t *testing.T) {
	t.Setenv("SCHED_TRAINING_INTERVAL", "-1h")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())
}
