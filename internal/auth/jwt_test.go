package auth

import (
	"testing"
	"time"

	"github.com/example/game-marketplace/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing-purposes"

func newTestJWTService() *JWTService {
	return NewJWTService(testSecret, 15*time.Minute, 7*24*time.Hour)
}

func testUser(role user.Role) *user.User {
	return &user.User{ID: "user-123", Email: "test@example.com", Role: role}
}

func TestJWTService_AccessTokenRoundTrip(t *testing.T) {
	service := newTestJWTService()

	token, expiresAt, err := service.GenerateAccessToken(testUser(user.RoleSeller))
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, expiresAt.Before(time.Now().Add(16*time.Minute)))

	claims, err := service.ValidateAccessToken(token)

	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, user.RoleSeller, claims.Role)
	assert.Equal(t, Principal{ID: "user-123", Role: user.RoleSeller}, claims.Principal())
}

func TestJWTService_ValidateAccessToken_Expired(t *testing.T) {
	service := NewJWTService(testSecret, -time.Minute, time.Hour)
	token, _, err := service.GenerateAccessToken(testUser(user.RoleBuyer))
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_ValidateAccessToken_WrongSecret(t *testing.T) {
	token, _, err := NewJWTService("another-secret-key-that-is-long-enough", time.Minute, time.Hour).
		GenerateAccessToken(testUser(user.RoleBuyer))
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateAccessToken(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_ValidateAccessToken_RejectsNoneAlg(t *testing.T) {
	claims := Claims{UserID: "user-123", Role: user.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateAccessToken(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RefreshToken(t *testing.T) {
	service := newTestJWTService()

	refresh, _, err := service.GenerateRefreshToken("user-123")
	require.NoError(t, err)

	userID, err := service.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)

	_, err = service.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_AccessTokenIsNotARefreshToken(t *testing.T) {
	service := newTestJWTService()
	access, _, err := service.GenerateAccessToken(testUser(user.RoleBuyer))
	require.NoError(t, err)

	_, err = service.ValidateRefreshToken(access)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_Garbage(t *testing.T) {
	_, err := newTestJWTService().ValidateAccessToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
