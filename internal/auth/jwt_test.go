package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridedeck/ridedeck/internal/auth"
)

func testConfig() auth.JWTConfig {
	return auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "ridedeck",
		Audience:   "ridedeck-app",
	}
}

func TestJWTService_GenerateAndValidateAccessToken(t *testing.T) {
	svc := auth.NewJWTService(testConfig())

	token, expiresAt, err := svc.GenerateAccessToken("rider-42")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "rider-42", claims.UserID)
	assert.Equal(t, "rider-42", claims.Subject)
	assert.Equal(t, "ridedeck", claims.Issuer)

	userID, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "rider-42", userID)
}

func TestJWTService_MissingUserID(t *testing.T) {
	svc := auth.NewJWTService(testConfig())

	_, _, err := svc.GenerateAccessToken("  ")
	assert.ErrorIs(t, err, auth.ErrMissingUserID)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := auth.NewJWTService(testConfig())

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_Expired(t *testing.T) {
	issued := time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)
	cfg := testConfig()
	cfg.Now = func() time.Time { return issued }
	token, _, err := auth.NewJWTService(cfg).GenerateAccessToken("rider-42")
	require.NoError(t, err)

	cfg.Now = func() time.Time { return issued.Add(2 * auth.AccessTokenExpiry) }
	_, err = auth.NewJWTService(cfg).ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}

func TestJWTService_Mismatch(t *testing.T) {
	token, _, err := auth.NewJWTService(testConfig()).GenerateAccessToken("rider-42")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*auth.JWTConfig)
	}{
		{"signing key", func(c *auth.JWTConfig) { c.SigningKey = "other-key" }},
		{"issuer", func(c *auth.JWTConfig) { c.Issuer = "someone-else" }},
		{"audience", func(c *auth.JWTConfig) { c.Audience = "other-app" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := auth.NewJWTService(cfg).ValidateAccessToken(token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}
