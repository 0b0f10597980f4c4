package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", strings.Repeat("k", 32))
	t.Setenv("SALT_ROUNDS", "12")
	t.Setenv("SESSION_TTL", "45m")
	t.Setenv("FRONTEND_URL", "https://shop.example.com/")

	cfg := Load()

	assert.Equal(t, 12, cfg.Security.SaltRounds)
	assert.Equal(t, 45*time.Minute, cfg.Auth.SessionTTL)
	assert.Equal(t, 3*time.Hour, cfg.Auth.VerificationTTL)
	assert.Equal(t, 3*time.Hour, cfg.Auth.ResetTTL)
	assert.Equal(t, 10*time.Minute, cfg.Sweeper.UnverifiedEvery)
	assert.Equal(t, 5*time.Minute, cfg.Sweeper.IdleEvery)
	assert.Equal(t, 30*time.Minute, cfg.Sweeper.IdleTimeout)
	assert.Equal(t, "https://shop.example.com", cfg.Email.FrontendURL)
	require.NoError(t, cfg.Validate())
}

func TestValidate_EncryptionKeyLength(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"empty", "", true},
		{"short", strings.Repeat("a", 31), true},
		{"long", strings.Repeat("a", 33), true},
		{"exact", strings.Repeat("a", 32), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENCRYPTION_KEY", tt.key)
			err := Load().Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "ENCRYPTION_KEY")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidate_RejectsUnknownDrivers(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", strings.Repeat("k", 32))
	t.Setenv("PASSWORD_HASHER", "md5")
	t.Setenv("EVENTS_DRIVER", "kafka")
	t.Setenv("SALT_ROUNDS", "2")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PASSWORD_HASHER")
	assert.Contains(t, err.Error(), "EVENTS_DRIVER")
	assert.Contains(t, err.Error(), "SALT_ROUNDS")
}

func TestValidate_ProductionNeedsJWTSecret(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", strings.Repeat("k", 32))
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "dev-only-secret-change-in-prod")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	require.ErrorContains(t, cfg.Validate(), "JWT_SECRET")
}
