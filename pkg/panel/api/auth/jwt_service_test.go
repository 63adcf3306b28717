package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/panel/models"
)

const testSecret = "test-secret-that-is-at-least-32-characters-long"

func newTestService(t *testing.T, config JWTConfig) *JWTService {
	t.Helper()
	if config.Secret == "" {
		config.Secret = testSecret
	}
	service, err := NewJWTService(config)
	require.NoError(t, err)
	return service
}

func testUser() *models.User {
	return &models.User{
		ID:       "user-123",
		Username: "alice",
		Role:     string(models.RoleAdmin),
	}
}

func TestNewJWTServiceRejectsShortSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{Secret: "too-short"})
	assert.ErrorIs(t, err, ErrInvalidSecretLength)
}

func TestNewJWTServiceDefaults(t *testing.T) {
	service := newTestService(t, JWTConfig{})
	assert.Equal(t, 15*time.Minute, service.GetAccessTokenDuration())
	assert.Equal(t, 7*24*time.Hour, service.GetRefreshTokenDuration())
}

func TestGenerateTokenPair(t *testing.T) {
	service := newTestService(t, JWTConfig{})

	pair, err := service.GenerateTokenPair(testUser())
	require.NoError(t, err)

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64((15 * time.Minute).Seconds()), pair.ExpiresIn)
}

func TestValidateAccessToken(t *testing.T) {
	service := newTestService(t, JWTConfig{})
	pair, err := service.GenerateTokenPair(testUser())
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)

	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, string(models.RoleAdmin), claims.Role)
	assert.True(t, claims.IsAdmin())
	assert.True(t, claims.IsAccessToken())
	assert.Equal(t, "warden", claims.Issuer)
}

func TestValidateAccessTokenRejectsRefreshToken(t *testing.T) {
	service := newTestService(t, JWTConfig{})
	pair, err := service.GenerateTokenPair(testUser())
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidTokenType)
}

func TestValidateRefreshTokenRejectsAccessToken(t *testing.T) {
	service := newTestService(t, JWTConfig{})
	pair, err := service.GenerateTokenPair(testUser())
	require.NoError(t, err)

	_, err = service.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidTokenType)

	claims, err := service.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, claims.IsRefreshToken())
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	service := newTestService(t, JWTConfig{})

	_, err := service.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsTamperedToken(t *testing.T) {
	service := newTestService(t, JWTConfig{})
	pair, err := service.GenerateTokenPair(testUser())
	require.NoError(t, err)

	// Flip the signature segment.
	parts := strings.Split(pair.AccessToken, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err = service.ValidateToken(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	service := newTestService(t, JWTConfig{})
	other := newTestService(t, JWTConfig{Secret: "another-secret-that-is-also-32-chars!!"})

	pair, err := service.GenerateTokenPair(testUser())
	require.NoError(t, err)

	_, err = other.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	service := newTestService(t, JWTConfig{AccessTokenDuration: -time.Minute})

	pair, err := service.GenerateTokenPair(testUser())
	require.NoError(t, err)

	_, err = service.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
