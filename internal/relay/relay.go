package relay

import (
	"context"

	"github.com/weiawesome/hybrid-relay/internal/hub"
)

// Relay delivers encoded frames. Delivery is best effort and at most once;
// callers never learn whether a frame arrived.
type Relay interface {
	// ToRoom delivers data to every member of room except exclude.
	ToRoom(ctx context.Context, room string, data []byte, exclude string) error
	// ToConnection delivers data to one connection. An absent target is not an error.
	ToConnection(ctx context.Context, connID string, data []byte) error
	// Start begins receiving frames from other instances, if any.
	Start(ctx context.Context) error
	Close() error
}

// LocalRelay delivers to connections held by this instance only.
type LocalRelay struct {
	hub *hub.Hub
}

// NewLocalRelay creates a relay over the local hub.
func NewLocalRelay(h *hub.Hub) *LocalRelay {
	return &LocalRelay{hub: h}
}

func (r *LocalRelay) ToRoom(ctx context.Context, room string, data []byte, exclude string) error {
	r.hub.BroadcastToRoom(room, data, exclude)
	return nil
}

func (r *LocalRelay) ToConnection(ctx context.Context, connID string, data []byte) error {
	r.hub.SendToClient(connID, data)
	return nil
}

func (r *LocalRelay) Start(ctx context.Context) error { return nil }

func (r *LocalRelay) Close() error { return nil }

var _ Relay = (*LocalRelay)(nil)
