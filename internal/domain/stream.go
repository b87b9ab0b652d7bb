package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StreamStatus represents stream status.
type StreamStatus string

const (
	StreamStatusScheduled StreamStatus = "scheduled"
	StreamStatusLive      StreamStatus = "live"
	StreamStatusEnded     StreamStatus = "ended"
)

// Stream represents a live stream record.
type Stream struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"ownerId"`
	Title       string       `json:"title"`
	Status      StreamStatus `json:"status"`
	ViewerCount int          `json:"viewerCount"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	EndedAt     *time.Time   `json:"endedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// IsLive reports whether viewers may join the broadcast.
func (s *Stream) IsLive() bool {
	return s.Status == StreamStatusLive
}

// IsOwnedBy reports whether userID owns the stream.
func (s *Stream) IsOwnedBy(userID string) bool {
	return s.OwnerID == userID
}

// InitialCodeVersion is the version of a fresh code session.
const InitialCodeVersion = "1.0"

// CodeSession is a collaborative editor document.
type CodeSession struct {
	ID            string    `json:"id"`
	StreamID      string    `json:"streamId,omitempty"`
	Title         string    `json:"title"`
	Language      string    `json:"language"`
	Code          string    `json:"code"`
	OwnerID       string    `json:"ownerId"`
	Collaborators []string  `json:"collaborators"`
	IsPublic      bool      `json:"isPublic"`
	Version       string    `json:"version"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CanEdit reports whether userID is the owner or a collaborator.
func (c *CodeSession) CanEdit(userID string) bool {
	if c.OwnerID == userID {
		return true
	}
	for _, id := range c.Collaborators {
		if id == userID {
			return true
		}
	}
	return false
}

// CanView reports whether userID may follow the session.
func (c *CodeSession) CanView(userID string) bool {
	return c.IsPublic || c.CanEdit(userID)
}

// CodeVersion is a saved snapshot of a code session.
type CodeVersion struct {
	SessionID string    `json:"sessionId"`
	Version   string    `json:"version"`
	Code      string    `json:"code"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// NextMinorVersion bumps the minor part of a "major.minor" version.
func NextMinorVersion(version string) (string, error) {
	major, minor, ok := strings.Cut(version, ".")
	if !ok {
		return "", fmt.Errorf("invalid version %q", version)
	}
	n, err := strconv.Atoi(minor)
	if err != nil {
		return "", fmt.Errorf("invalid version %q: %w", version, err)
	}
	return fmt.Sprintf("%s.%d", major, n+1), nil
}

// User is the identity record a token resolves to.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Identity returns the connection identity of the user.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Username: u.Username}
}
