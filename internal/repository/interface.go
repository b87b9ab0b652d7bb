package repository

import (
	"context"

	"github.com/weiawesome/hybrid-relay/internal/domain"
)

// StreamRepository persists streams and their viewers.
type StreamRepository interface {
	Create(ctx context.Context, stream *domain.Stream) error
	GetByID(ctx context.Context, id string) (*domain.Stream, error)
	// Start marks the stream live.
	Start(ctx context.Context, id string) error
	// End marks the stream ended.
	End(ctx context.Context, id string) error
	// AddViewer records a viewer and returns the viewer count.
	AddViewer(ctx context.Context, streamID, userID string) (int, error)
	// RemoveViewer forgets a viewer and returns the viewer count.
	RemoveViewer(ctx context.Context, streamID, userID string) (int, error)
}

// CodeSessionRepository persists code sessions and their version history.
type CodeSessionRepository interface {
	Create(ctx context.Context, session *domain.CodeSession) error
	GetByID(ctx context.Context, id string) (*domain.CodeSession, error)
	// UpdateCode stores code as the next minor version and archives the
	// previous content.
	UpdateCode(ctx context.Context, id, code, userID string) (*domain.CodeSession, error)
	ListVersions(ctx context.Context, id string) ([]domain.CodeVersion, error)
}

// UserRepository resolves users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
