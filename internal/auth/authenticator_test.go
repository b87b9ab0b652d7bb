package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/pkg/jwt"
)

type stubUsers map[string]*domain.User

func (s stubUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if id == "broken" {
		return nil, errors.New("connection refused")
	}
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func newTestAuthenticator(t *testing.T) (*Authenticator, *jwt.Manager) {
	t.Helper()
	tokens, err := jwt.NewManager("secret", time.Hour, "")
	require.NoError(t, err)
	users := stubUsers{"u1": {ID: "u1", Username: "alice"}}
	return NewAuthenticator(tokens, users), tokens
}

func TestAuthenticate_HeaderAndQuery(t *testing.T) {
	a, tokens := newTestAuthenticator(t)
	token, _, err := tokens.GenerateToken("u1", "alice")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	id, err := a.Authenticate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{UserID: "u1", Username: "alice"}, id)

	req = httptest.NewRequest("GET", "/ws?token="+token, nil)
	id, err = a.Authenticate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
}

func TestAuthenticate_Rejections(t *testing.T) {
	a, tokens := newTestAuthenticator(t)
	ghost, _, err := tokens.GenerateToken("ghost", "nobody")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		want   error
	}{
		{"no credential", "", "", ErrMissingToken},
		{"basic auth", "Basic dXNlcjpwYXNz", "", ErrMissingToken},
		{"malformed", "Bearer abc", "", ErrInvalidToken},
		{"unknown user", "", ghost, ErrUnknownUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/ws"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest("GET", target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			_, err := a.Authenticate(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsUnauthenticated(err))
		})
	}
}

func TestAuthenticate_LookupFailureIsNotUnauthenticated(t *testing.T) {
	a, tokens := newTestAuthenticator(t)
	token, _, err := tokens.GenerateToken("broken", "x")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	_, err = a.Authenticate(context.Background(), req)
	require.Error(t, err)
	assert.False(t, IsUnauthenticated(err))
}
