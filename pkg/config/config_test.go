package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FOYER_ENV", "")
	cfg := Load()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "/api/v1", cfg.APIPathSegment)
	assert.True(t, cfg.CrossContextSync)
}

func TestCrossContextSyncToggle(t *testing.T) {
	t.Setenv("FOYER_CROSS_CONTEXT_SYNC", "false")
	assert.False(t, Load().CrossContextSync)

	t.Setenv("FOYER_CROSS_CONTEXT_SYNC", "1")
	assert.True(t, Load().CrossContextSync)
}
