package registry

import (
	"context"
	"sync"
)

// MemoryRegistry is an in-memory implementation of Registry.
// Suitable for single-instance deployments.
type MemoryRegistry struct {
	entries map[string]Entry               // streamID -> entry
	byConn  map[string]map[string]struct{} // connID -> streamIDs
	policy  Policy
	mu      sync.RWMutex
}

// NewMemoryRegistry creates a new in-memory registry.
func NewMemoryRegistry(policy Policy) *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]Entry),
		byConn:  make(map[string]map[string]struct{}),
		policy:  policy,
	}
}

// Register stores entry according to the conflict policy.
func (r *MemoryRegistry) Register(ctx context.Context, entry Entry) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.entries[entry.StreamID]
	if exists && r.policy == PolicyReject && prev.BroadcasterConnectionID != entry.BroadcasterConnectionID {
		return nil, ErrAlreadyRegistered
	}

	if exists {
		r.unindexLocked(prev)
	}
	r.entries[entry.StreamID] = entry
	if _, ok := r.byConn[entry.BroadcasterConnectionID]; !ok {
		r.byConn[entry.BroadcasterConnectionID] = make(map[string]struct{})
	}
	r.byConn[entry.BroadcasterConnectionID][entry.StreamID] = struct{}{}

	if !exists {
		return nil, nil
	}
	return &prev, nil
}

// Lookup returns the broadcaster of a stream, or nil.
func (r *MemoryRegistry) Lookup(ctx context.Context, streamID string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[streamID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Remove deletes the entry of a stream unconditionally.
func (r *MemoryRegistry) Remove(ctx context.Context, streamID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[streamID]; ok {
		r.unindexLocked(entry)
		delete(r.entries, streamID)
	}
	return nil
}

// RemoveIfOwned deletes the entry only if connID still owns it.
func (r *MemoryRegistry) RemoveIfOwned(ctx context.Context, streamID, connID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[streamID]
	if !ok || entry.BroadcasterConnectionID != connID {
		return false, nil
	}
	r.unindexLocked(entry)
	delete(r.entries, streamID)
	return true, nil
}

// ListByConnection returns every entry owned by connID.
func (r *MemoryRegistry) ListByConnection(ctx context.Context, connID string) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Entry, 0, len(r.byConn[connID]))
	for streamID := range r.byConn[connID] {
		result = append(result, r.entries[streamID])
	}
	return result, nil
}

// Close clears all entries.
func (r *MemoryRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]Entry)
	r.byConn = make(map[string]map[string]struct{})
	return nil
}

func (r *MemoryRegistry) unindexLocked(entry Entry) {
	streams, ok := r.byConn[entry.BroadcasterConnectionID]
	if !ok {
		return
	}
	delete(streams, entry.StreamID)
	if len(streams) == 0 {
		delete(r.byConn, entry.BroadcasterConnectionID)
	}
}

// Ensure MemoryRegistry implements Registry interface
var _ Registry = (*MemoryRegistry)(nil)
