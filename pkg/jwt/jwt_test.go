package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RoundTrip(t *testing.T) {
	m, err := NewManager("secret", time.Hour, "hybrid")
	require.NoError(t, err)

	token, exp, err := m.GenerateToken("u1", "alice")
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, TokenTypeAccess, claims.Type)
}

func TestManager_ValidateToken_Failures(t *testing.T) {
	m, err := NewManager("secret", time.Hour, "hybrid")
	require.NoError(t, err)

	other, err := NewManager("other-secret", time.Hour, "hybrid")
	require.NoError(t, err)
	foreign, _, err := other.GenerateToken("u1", "alice")
	require.NoError(t, err)

	wrongIssuer, err := NewManager("secret", time.Hour, "someone-else")
	require.NoError(t, err)
	issuerToken, _, err := wrongIssuer.GenerateToken("u1", "alice")
	require.NoError(t, err)

	expired, err := NewManager("secret", time.Hour, "hybrid")
	require.NoError(t, err)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _, err := expired.GenerateToken("u1", "alice")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMalformedToken},
		{"not a jwt", "abc", ErrMalformedToken},
		{"garbage segments", "a.b.c", ErrMalformedToken},
		{"wrong signature", foreign, ErrInvalidToken},
		{"wrong issuer", issuerToken, ErrInvalidToken},
		{"expired", expiredToken, ErrExpiredToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewManager_RequiresSecret(t *testing.T) {
	_, err := NewManager("", time.Hour, "")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
