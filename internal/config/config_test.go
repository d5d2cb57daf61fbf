package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	m, err := NewManager()
	require.NoError(t, err)
	return m
}

func TestNewManager_Defaults(t *testing.T) {
	m := newManager(t)
	cfg := m.GetConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "gemini-2.0-flash", cfg.TextGen.Model)
	assert.Equal(t, 2, cfg.TextGen.RateLimit)
	assert.True(t, cfg.TextGen.StructuredMode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, m.IsDevelopment())
	assert.False(t, m.IsProduction())
}

func TestNewManager_EnvOverrides(t *testing.T) {
	t.Setenv("MEDGUARD_SERVER_PORT", "9090")
	t.Setenv("MEDGUARD_STORE_BACKEND", "redis")
	t.Setenv("MEDGUARD_TEXTGEN_API_KEY", "test-key")

	m := newManager(t)
	cfg := m.GetConfig()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "test-key", cfg.TextGen.APIKey)
}

func TestValidate_RequiresAPIKey(t *testing.T) {
	m := newManager(t)

	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestValidate_PassesWithAPIKey(t *testing.T) {
	t.Setenv("MEDGUARD_TEXTGEN_API_KEY", "test-key")

	m := newManager(t)
	assert.NoError(t, m.Validate())
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("MEDGUARD_TEXTGEN_API_KEY", "test-key")
	t.Setenv("MEDGUARD_STORE_BACKEND", "cassandra")

	m := newManager(t)
	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestValidate_RejectsBadLogLevel(t *testing.T) {
	t.Setenv("MEDGUARD_TEXTGEN_API_KEY", "test-key")
	t.Setenv("MEDGUARD_LOGGING_LEVEL", "verbose")

	m := newManager(t)
	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
