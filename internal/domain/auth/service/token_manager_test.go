package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTTokenManager_RoundTrip(t *testing.T) {
	mgr := NewJWTTokenManager("test-secret", time.Hour)

	pair, err := mgr.GenerateTokenPair("user-1", "treasurer@umhc.org.uk", "Sam", "treasurer")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.True(t, pair.RefreshTokenExpiresAt.After(pair.AccessTokenExpiresAt))

	claims, err := mgr.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "treasurer@umhc.org.uk", claims.Email)
	assert.Equal(t, "Sam", claims.DisplayName)
	assert.Equal(t, "treasurer", claims.Role)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestJWTTokenManager_RejectsWrongSecret(t *testing.T) {
	mgr := NewJWTTokenManager("secret-a", time.Hour)
	other := NewJWTTokenManager("secret-b", time.Hour)

	pair, err := mgr.GenerateTokenPair("user-1", "a@b.c", "A", "member")
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTTokenManager_RejectsTamperedToken(t *testing.T) {
	mgr := NewJWTTokenManager("test-secret", time.Hour)

	pair, err := mgr.GenerateTokenPair("user-1", "a@b.c", "A", "member")
	require.NoError(t, err)

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	_, err = mgr.ValidateAccessToken(tampered)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = mgr.ValidateAccessToken("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTTokenManager_RefreshTokensAreUnique(t *testing.T) {
	mgr := NewJWTTokenManager("test-secret", 0)
	assert.Equal(t, defaultSessionTTL, mgr.SessionTTL())

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		pair, err := mgr.GenerateTokenPair("user-1", "a@b.c", "A", "member")
		require.NoError(t, err)
		require.False(t, seen[pair.RefreshToken], "refresh token repeated")
		seen[pair.RefreshToken] = true
	}
}
