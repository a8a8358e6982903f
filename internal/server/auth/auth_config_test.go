package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate_Valid(t *testing.T) {
	cfg := &Config{
		Enabled:           true,
		TokenIssuer:       "https://uploads.example.com",
		AccessTokenSecret: "access-secret-0123456789",
		AccessTokenExpiry: time.Hour,
	}
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate_MissingFields(t *testing.T) {
	cfg := &Config{Enabled: true}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token_issuer")

	cfg.TokenIssuer = "issuer"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_token_secret")

	cfg.AccessTokenSecret = "short"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 16")

	cfg.AccessTokenSecret = "access-secret-0123456789"
	cfg.AccessTokenExpiry = -time.Second
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_token_expiry")
}

func TestConfigValidate_Disabled(t *testing.T) {
	cfg := &Config{Enabled: false}
	require.NoError(t, cfg.Validate())
}
