package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_REFRESH_TOKEN_SECRET", "refresh-secret")

	_, err := Load()
	require.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadRequiresBothJWTSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_REFRESH_TOKEN_SECRET", "")

	_, err := Load()
	require.ErrorContains(t, err, "JWT_REFRESH_TOKEN_SECRET")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_REFRESH_TOKEN_SECRET", "refresh-secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 10*time.Minute, cfg.Auth.AccessExpiry)
	require.Equal(t, "INR", cfg.Payments.Currency)
	require.Equal(t, "development", cfg.Environment)
	require.False(t, cfg.Email.Enabled)
	require.Equal(t, 10, cfg.RateLimit.LoginPerMinute)
}

func TestLoadEmailEnabledRequiresAPIKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_REFRESH_TOKEN_SECRET", "refresh-secret")
	t.Setenv("EMAIL_ENABLED", "true")
	t.Setenv("RESEND_API_KEY", "")

	_, err := Load()
	require.ErrorContains(t, err, "RESEND_API_KEY")
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_REFRESH_TOKEN_SECRET", "refresh-secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
}
