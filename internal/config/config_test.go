package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "justinfan123", cfg.BotNickname)
	assert.Equal(t, int64(1000), cfg.MaxConnections)
	assert.Equal(t, 20, cfg.MaxConnectionsPerIP)
	assert.Equal(t, 5, cfg.MaxKeywords)
	assert.Len(t, cfg.AllowedOrigins, 2)
	assert.True(t, cfg.AnonymousChat())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("MAX_CONNECTIONS", "50")
	t.Setenv("ALLOWED_ORIGINS", "https://dash.example.com, https://alt.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, int64(50), cfg.MaxConnections)
	assert.Equal(t, []string{"https://dash.example.com", "https://alt.example.com"}, cfg.AllowedOrigins)
}

func TestLoad_TokenRequiresClientID(t *testing.T) {
	t.Setenv("TWITCH_ACCESS_TOKEN", "sometoken")
	t.Setenv("TWITCH_CLIENT_ID", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_WithCredentials(t *testing.T) {
	t.Setenv("TWITCH_ACCESS_TOKEN", "sometoken")
	t.Setenv("TWITCH_CLIENT_ID", "someclient")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.AnonymousChat())
}

func TestLoad_InvalidInteger(t *testing.T) {
	t.Setenv("MAX_CONNECTIONS", "lots")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_NonPositiveLimitsRejected(t *testing.T) {
	t.Setenv("MAX_CONNECTIONS", "0")

	_, err := Load()
	assert.Error(t, err)
}
