package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.History.Backend)
	assert.Equal(t, 15, cfg.History.MaxTurns)
	assert.Equal(t, "https://api.fitbit.com", cfg.Fitbit.APIBaseURL)
	assert.True(t, cfg.Monitoring.Prometheus.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FITFORGE_SERVER_PORT", "9000")
	t.Setenv("FITFORGE_HISTORY_BACKEND", "redis")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.History.Backend)
}

func TestValidate(t *testing.T) {
	t.Run("rejects bad port", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown history backend", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.History.Backend = "cassandra"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non-positive max turns", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.History.MaxTurns = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("accepts redis backend", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.History.Backend = "redis"
		assert.NoError(t, cfg.Validate())
	})
}
