package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("EDITGUARD_DEFAULT_MODE sets the default mode", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("EDITGUARD_DEFAULT_MODE", "polish")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "polish", cfg.Engine.DefaultMode)
	})

	t.Run("EDITGUARD_DB sets the path and enables the store", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("EDITGUARD_DB", "/tmp/eg.db")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/eg.db", cfg.Store.Path)
		assert.True(t, cfg.Store.Enabled)
	})

	t.Run("EDITGUARD_LOG_LEVEL and EDITGUARD_STRATEGY", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("EDITGUARD_LOG_LEVEL", "debug")
		t.Setenv("EDITGUARD_STRATEGY", StrategyLoadBalanced)

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, StrategyLoadBalanced, cfg.Router.Strategy)
	})

	t.Run("empty variables leave values alone", func(t *testing.T) {
		clearEnv(t)

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "grammar", cfg.Engine.DefaultMode)
		assert.False(t, cfg.Store.Enabled)
	})
}

func TestEnvOverrides_AppliedByLoad(t *testing.T) {
	clearEnv(t)
	t.Setenv("EDITGUARD_STRATEGY", StrategyRoundRobin)

	cfg, err := Load(t.TempDir() + "/none.yaml")
	require.NoError(t, err)
	assert.Equal(t, StrategyRoundRobin, cfg.Router.Strategy)
}
