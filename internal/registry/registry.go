package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weiawesome/hybrid-relay/internal/config"
)

// ErrAlreadyRegistered is returned under the reject policy when another
// connection already broadcasts the stream.
var ErrAlreadyRegistered = errors.New("stream already has an active broadcaster")

// Policy decides what Register does when a stream already has a broadcaster.
type Policy string

const (
	// PolicyOverwrite replaces the entry; the last start wins.
	PolicyOverwrite Policy = config.ConflictOverwrite
	// PolicyReject keeps the entry unless the same connection registers again.
	PolicyReject Policy = config.ConflictReject
)

// Entry is the active broadcaster of a stream.
type Entry struct {
	StreamID                string    `json:"streamId"`
	BroadcasterUserID       string    `json:"broadcasterUserId"`
	BroadcasterConnectionID string    `json:"broadcasterConnectionId"`
	InstanceID              string    `json:"instanceId,omitempty"`
	StartedAt               time.Time `json:"startedAt"`
}

// Registry maps stream ids to their active broadcaster. There is at most one
// entry per stream.
type Registry interface {
	// Register stores entry and returns the entry it replaced, if any.
	Register(ctx context.Context, entry Entry) (*Entry, error)
	// Lookup returns nil when the stream has no broadcaster.
	Lookup(ctx context.Context, streamID string) (*Entry, error)
	Remove(ctx context.Context, streamID string) error
	// RemoveIfOwned removes the entry only while connID still owns it.
	RemoveIfOwned(ctx context.Context, streamID, connID string) (bool, error)
	ListByConnection(ctx context.Context, connID string) ([]Entry, error)
	Close() error
}

// New creates the registry selected by cfg.Driver.
func New(cfg config.RegistryConfig) (Registry, error) {
	policy := Policy(cfg.ConflictPolicy)
	if policy == "" {
		policy = PolicyOverwrite
	}

	switch cfg.Driver {
	case "memory", "":
		return NewMemoryRegistry(policy), nil
	case "redis":
		r, err := NewRedisRegistry(cfg.Redis, policy)
		if err != nil {
			return nil, err
		}
		r.StartHeartbeat(context.Background())
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported registry driver: %s", cfg.Driver)
	}
}
