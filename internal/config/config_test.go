package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "https://graph.facebook.com", cfg.GraphAPIBaseURL)
	assert.Equal(t, "v18.0", cfg.GraphAPIVersion)
	assert.Equal(t, 10*time.Second, cfg.HTTPCallTimeout)
}

func TestGetDuration(t *testing.T) {
	t.Setenv("A_DURATION", "250ms")
	t.Setenv("A_SECONDS", "3")
	t.Setenv("A_BROKEN", "soon")

	assert.Equal(t, 250*time.Millisecond, getDuration("A_DURATION", time.Second))
	assert.Equal(t, 3*time.Second, getDuration("A_SECONDS", time.Second))
	assert.Equal(t, time.Second, getDuration("A_BROKEN", time.Second))
	assert.Equal(t, time.Minute, getDuration("A_MISSING", time.Minute))
}
