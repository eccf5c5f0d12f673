package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"ENVIRONMENT", "PORT", "DATABASE_URL", "AUTH_MODE", "DEFAULT_BPM",
		"DEFAULT_TIME_SIGNATURE", "SESSION_TTL", "POLL_INTERVAL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "none", cfg.AuthMode)
	assert.Equal(t, 120.0, cfg.DefaultBPM)
	assert.Equal(t, 4, cfg.DefaultTimeSignature)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.False(t, cfg.UsesDatabase())
	assert.False(t, cfg.IsGatewayMode())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("DATABASE_URL", "postgres://localhost/beatgrid")
	t.Setenv("DEFAULT_BPM", "96.5")
	t.Setenv("DEFAULT_TIME_SIGNATURE", "3")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("POLL_INTERVAL", "100ms")

	cfg := Load()

	assert.True(t, cfg.IsJWTMode())
	assert.True(t, cfg.UsesDatabase())
	assert.Equal(t, 96.5, cfg.DefaultBPM)
	assert.Equal(t, 3, cfg.DefaultTimeSignature)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("DEFAULT_BPM", "fast")
	t.Setenv("DEFAULT_TIME_SIGNATURE", "-2")
	t.Setenv("SESSION_TTL", "forever")

	cfg := Load()

	assert.Equal(t, 120.0, cfg.DefaultBPM)
	assert.Equal(t, 4, cfg.DefaultTimeSignature)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
}
