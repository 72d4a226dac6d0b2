package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnv_OverridesDefaults(t *testing.T) {
	t.Setenv("RUN_ADDRESS", ":9090")
	t.Setenv("CORS_ORIGINS", "https://shop.example,https://admin.example")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("HISTORY_LIMIT", "20")

	cfg := New()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, ":9090", cfg.RunAddress)
	assert.Equal(t, []string{"https://shop.example", "https://admin.example"}, cfg.CORSOrigins)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 20, cfg.HistoryLimit)
}

func TestApplyEnv_KeepsFlagValuesWithoutEnv(t *testing.T) {
	cfg := New()
	cfg.RunAddress = ":7000"
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, ":7000", cfg.RunAddress)
}

func TestValidate(t *testing.T) {
	cfg := New()
	assert.ErrorIs(t, cfg.Validate(), ErrMissingJWTSecret)

	cfg.JWTSecret = "secret"
	assert.NoError(t, cfg.Validate())

	cfg.HistoryLimit = 0
	assert.Error(t, cfg.Validate())
}
