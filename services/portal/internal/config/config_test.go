package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("BACKEND_URL", "http://backend:5000")
	t.Setenv("PORTAL_SESSION_SECRET", "s3cret")
	t.Setenv("PORTAL_HTTP_PORT", "9090")
	t.Setenv("PORTAL_SESSION_TTL", "2h")
	t.Setenv("MANAGEMENT_REFRESH_INTERVAL", "5")
	t.Setenv("PORTAL_COOKIE_SECURE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddress())
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 5*time.Second, cfg.RefreshInterval())
	assert.True(t, cfg.Session.Secure)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, "https://yourdomain.com/success", cfg.Payment.SuccessURL)
	assert.EqualValues(t, 50<<20, cfg.HTTP.MaxUploadBytes)
}

func TestLoadRequiresSecretAndBackend(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("BACKEND_URL", "http://backend:5000")
	t.Setenv("PORTAL_SESSION_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session secret required")

	t.Setenv("BACKEND_URL", "")
	t.Setenv("PORTAL_SESSION_SECRET", "x")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend url required")
}

func TestHTTPAddress(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, ":8080", cfg.HTTPAddress())
	cfg.HTTP.Port = ":7000"
	assert.Equal(t, ":7000", cfg.HTTPAddress())
}
