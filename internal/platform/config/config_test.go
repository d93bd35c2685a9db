package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvRequiresSigningKey(t *testing.T) {
	t.Setenv("APIM_JWT_SIGNING_KEY", "")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APIM_JWT_SIGNING_KEY")
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APIM_JWT_SIGNING_KEY", "k")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 14*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.RenewThreshold)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APIM_JWT_SIGNING_KEY", "k")
	t.Setenv("APIM_ADDR", ":9999")
	t.Setenv("APIM_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("APIM_RENEW_THRESHOLD", "90s")
	t.Setenv("APIM_BCRYPT_COST", "4")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 90*time.Second, cfg.RenewThreshold)
	assert.Equal(t, 4, cfg.BcryptCost)
}

func TestFromEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("APIM_JWT_SIGNING_KEY", "k")
	t.Setenv("APIM_ACCESS_TOKEN_TTL", "soon")

	_, err := FromEnv()
	require.Error(t, err)
}
