package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("APP_ENV", "production")
	t.Setenv("TRANSPORT", "h2c")
	t.Setenv("READ_TIMEOUT", "3s")
	t.Setenv("STRICT_ROUTING", "true")

	var cfg Config
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9001, cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, TransportH2C, cfg.Transport)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.True(t, cfg.StrictRouting)
	assert.True(t, cfg.CaseSensitiveRouting)
	assert.Equal(t, ":9001", cfg.Addr())
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	t.Setenv("TRANSPORT", "carrier-pigeon")

	var cfg Config
	err := Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}
