package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(expiresAt time.Time) *domain.Session {
	return domain.NewSession("backend-token", domain.SessionUser{
		ID:       "u1",
		Username: "alice",
		Role:     domain.RoleSupport,
	}, time.Now(), expiresAt)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 0)
	session := testSession(time.Now().Add(time.Hour))

	token, err := tm.GenerateToken(session)
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, claims.SessionID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, domain.RoleSupport, claims.Role)
	assert.Equal(t, "u1", claims.Subject)
}

func TestTokenManager_NeverOutlivesSession(t *testing.T) {
	tm := NewTokenManager("test-secret", 24*time.Hour)
	session := testSession(time.Now().Add(30 * time.Minute))

	token, err := tm.GenerateToken(session)
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.WithinDuration(t, session.ExpiresAt, claims.ExpiresAt.Time, 2*time.Second)
}

func TestTokenManager_UsesConfiguredTTL(t *testing.T) {
	ttl := 2 * time.Hour
	tm := NewTokenManager("test-secret", ttl)
	start := time.Now()

	token, err := tm.GenerateToken(testSession(start.Add(24 * time.Hour)))
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, start.Add(ttl), claims.ExpiresAt.Time, 2*time.Second)
}

func TestTokenManager_ExpiresAt(t *testing.T) {
	session := testSession(time.Now().Add(time.Hour))

	assert.Equal(t, session.ExpiresAt, NewTokenManager("s", 0).ExpiresAt(session))
	assert.Equal(t, session.ExpiresAt, NewTokenManager("s", 3*time.Hour).ExpiresAt(session))
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), NewTokenManager("s", 10*time.Minute).ExpiresAt(session), time.Second)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager("test-secret", 0)

	t.Run("expired", func(t *testing.T) {
		token, err := tm.GenerateToken(testSession(time.Now().Add(-time.Minute)))
		require.NoError(t, err)

		_, err = tm.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewTokenManager("other-secret", 0).GenerateToken(testSession(time.Now().Add(time.Hour)))
		require.NoError(t, err)

		_, err = tm.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tm.ValidateToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestParseBackendToken(t *testing.T) {
	exp := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      "u42",
		"username": "bob",
		"role":     "admin",
		"exp":      exp.Unix(),
	}).SignedString([]byte("backend-only-secret"))
	require.NoError(t, err)

	claims, err := ParseBackendToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "u42", claims.Subject)
	assert.Equal(t, "bob", claims.Username)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.True(t, exp.Equal(BackendTokenExpiry(raw)))

	assert.True(t, BackendTokenExpiry("opaque").IsZero())
}
