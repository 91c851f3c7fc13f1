package auth

import (
	"testing"
	"time"

	"workday/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.JWTConfig {
	return &config.JWTConfig{AccessSecret: "secret", AccessExpiry: time.Hour, Issuer: "test"}
}

func TestGenerateAndParse(t *testing.T) {
	cfg := testConfig()
	token, issued, err := GenerateAccessToken(cfg, 7, 3, "a@b.c", "EMPLOYEE")
	require.NoError(t, err)
	require.NotEmpty(t, issued.SessionID())

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, uint(3), claims.CompanyID)
	assert.Equal(t, issued.SessionID(), claims.SessionID())
}

func TestParse_WrongSecret(t *testing.T) {
	token, _, err := GenerateAccessToken(testConfig(), 7, 3, "a@b.c", "EMPLOYEE")
	require.NoError(t, err)

	other := testConfig()
	other.AccessSecret = "other"
	_, err = ParseAccessToken(other, token)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = ParseSessionToken(other, token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseSessionToken_AcceptsExpired(t *testing.T) {
	cfg := testConfig()
	cfg.AccessExpiry = -time.Minute
	token, _, err := GenerateAccessToken(cfg, 7, 3, "a@b.c", "EMPLOYEE")
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.ErrorIs(t, err, ErrInvalidToken)

	claims, err := ParseSessionToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
}

func TestParse_RejectsMissingTenant(t *testing.T) {
	cfg := testConfig()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: 7})
	signed, err := token.SignedString([]byte(cfg.AccessSecret))
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}
