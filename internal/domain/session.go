package domain

import (
	"sync"
	"time"
)

// Identity is the authenticated user attached to a connection.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Session represents a client's WebSocket session.
type Session struct {
	ID           string
	Identity     Identity
	ConnectedAt  time.Time
	lastActiveAt time.Time
	mu           sync.RWMutex
}

// NewSession creates a session for an authenticated connection.
func NewSession(id string, identity Identity) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Identity:     identity,
		ConnectedAt:  now,
		lastActiveAt: now,
	}
}

// UserID returns the user ID.
func (s *Session) UserID() string {
	return s.Identity.UserID
}

// Username returns the display name.
func (s *Session) Username() string {
	return s.Identity.Username
}

// Touch updates the last active timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}

// LastActiveAt returns the time of the last inbound event.
func (s *Session) LastActiveAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActiveAt
}
