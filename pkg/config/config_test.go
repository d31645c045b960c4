package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite://keel.db", cfg.DatabaseURL)
	assert.Equal(t, "file://rulepack.yaml", cfg.RulePackURL)
	assert.Equal(t, 30*time.Second, cfg.AdvisorTimeout)
	assert.Equal(t, 10, cfg.RateLimitRPS)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://keel@localhost:5432/keel?sslmode=disable")
	t.Setenv("KEEL_ADVISOR_TIMEOUT", "10s")
	t.Setenv("KEEL_RATE_LIMIT_RPS", "50")
	t.Setenv("OTEL_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://keel@localhost:5432/keel?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, 10*time.Second, cfg.AdvisorTimeout)
	assert.Equal(t, 50, cfg.RateLimitRPS)
	assert.True(t, cfg.OTelEnabled)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("KEEL_ADVISOR_TIMEOUT", "soon")
	t.Setenv("KEEL_RATE_LIMIT_RPS", "many")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.AdvisorTimeout)
	assert.Equal(t, 10, cfg.RateLimitRPS)
}
