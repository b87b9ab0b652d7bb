package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/pkg/jwt"
	"github.com/weiawesome/hybrid-relay/pkg/middleware"
)

// TokenQueryParam carries the token for browsers, which cannot set headers
// on a WebSocket handshake.
const TokenQueryParam = "token"

var (
	ErrMissingToken = errors.New("authentication error: token not provided")
	ErrInvalidToken = errors.New("authentication error: invalid token")
	ErrUnknownUser  = errors.New("authentication error: user not found")
)

// UserLookup resolves a token subject to a user record.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Authenticator validates the bearer credential of a connection attempt.
type Authenticator struct {
	tokens *jwt.Manager
	users  UserLookup
}

// NewAuthenticator creates a new handshake authenticator.
func NewAuthenticator(tokens *jwt.Manager, users UserLookup) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate resolves the identity behind the request's credential.
// Errors that fail IsUnauthenticated are lookup failures, not bad credentials.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (domain.Identity, error) {
	token := ExtractToken(r)
	if token == "" {
		return domain.Identity{}, ErrMissingToken
	}

	claims, err := a.tokens.ValidateToken(token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := a.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Identity{}, ErrUnknownUser
		}
		return domain.Identity{}, fmt.Errorf("failed to resolve user: %w", err)
	}

	return user.Identity(), nil
}

// ExtractToken returns the bearer token from the Authorization header, or
// from the token query parameter when no header is present.
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get(middleware.AuthHeaderKey); header != "" {
		if strings.HasPrefix(header, middleware.BearerPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(header, middleware.BearerPrefix))
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get(TokenQueryParam))
}

// IsUnauthenticated reports whether err means the credential was rejected.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrUnknownUser)
}
