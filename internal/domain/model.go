package domain

import (
	"time"

	"github.com/weiawesome/hybrid-relay/pkg/database"
)

// StreamModel is the GORM model for streams table.
type StreamModel struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	OwnerID   string `gorm:"type:varchar(36);index;not null"`
	Title     string `gorm:"type:varchar(100);not null"`
	Status    string `gorm:"type:varchar(20);index;not null;default:'scheduled'"`
	StartedAt *time.Time
	EndedAt   *time.Time
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for StreamModel.
func (StreamModel) TableName() string {
	return "streams"
}

// ToDomain converts StreamModel to domain Stream. The viewer count is
// filled in by the repository.
func (m *StreamModel) ToDomain() *Stream {
	return &Stream{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Title:     m.Title,
		Status:    StreamStatus(m.Status),
		StartedAt: m.StartedAt,
		EndedAt:   m.EndedAt,
		CreatedAt: m.CreatedAt,
	}
}

// StreamToModel converts domain Stream to StreamModel.
func StreamToModel(s *Stream) *StreamModel {
	return &StreamModel{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		Title:     s.Title,
		Status:    string(s.Status),
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
		CreatedAt: s.CreatedAt,
	}
}

// StreamViewerModel records that a user watched a stream. The composite key
// makes adding a viewer idempotent.
type StreamViewerModel struct {
	StreamID  string    `gorm:"type:varchar(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(36);primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for StreamViewerModel.
func (StreamViewerModel) TableName() string {
	return "stream_viewers"
}

// CodeSessionModel is the GORM model for code_sessions table.
type CodeSessionModel struct {
	ID            string               `gorm:"type:varchar(36);primaryKey"`
	StreamID      string               `gorm:"type:varchar(36);index"`
	Title         string               `gorm:"type:varchar(100);not null"`
	Language      string               `gorm:"type:varchar(50);not null"`
	Code          string               `gorm:"type:text"`
	OwnerID       string               `gorm:"type:varchar(36);index;not null"`
	Collaborators database.StringArray `gorm:"type:text"`
	IsPublic      bool
	Version       string    `gorm:"type:varchar(20);not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for CodeSessionModel.
func (CodeSessionModel) TableName() string {
	return "code_sessions"
}

// ToDomain converts CodeSessionModel to domain CodeSession.
func (m *CodeSessionModel) ToDomain() *CodeSession {
	return &CodeSession{
		ID:            m.ID,
		StreamID:      m.StreamID,
		Title:         m.Title,
		Language:      m.Language,
		Code:          m.Code,
		OwnerID:       m.OwnerID,
		Collaborators: []string(m.Collaborators),
		IsPublic:      m.IsPublic,
		Version:       m.Version,
		UpdatedAt:     m.UpdatedAt,
	}
}

// CodeSessionToModel converts domain CodeSession to CodeSessionModel.
func CodeSessionToModel(c *CodeSession) *CodeSessionModel {
	return &CodeSessionModel{
		ID:            c.ID,
		StreamID:      c.StreamID,
		Title:         c.Title,
		Language:      c.Language,
		Code:          c.Code,
		OwnerID:       c.OwnerID,
		Collaborators: database.StringArray(c.Collaborators).Unique(),
		IsPublic:      c.IsPublic,
		Version:       c.Version,
	}
}

// CodeVersionModel is the GORM model for code_session_versions table.
type CodeVersionModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"type:varchar(36);index;not null"`
	Version   string    `gorm:"type:varchar(20);not null"`
	Code      string    `gorm:"type:text"`
	UserID    string    `gorm:"type:varchar(36);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for CodeVersionModel.
func (CodeVersionModel) TableName() string {
	return "code_session_versions"
}

// ToDomain converts CodeVersionModel to domain CodeVersion.
func (m *CodeVersionModel) ToDomain() CodeVersion {
	return CodeVersion{
		SessionID: m.SessionID,
		Version:   m.Version,
		Code:      m.Code,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
	}
}

// UserModel is the GORM model for users table.
type UserModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Username  string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	Email     string    `gorm:"type:varchar(255)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts UserModel to domain User.
func (m *UserModel) ToDomain() *User {
	return &User{
		ID:        m.ID,
		Username:  m.Username,
		Email:     m.Email,
		CreatedAt: m.CreatedAt,
	}
}

// Models lists every table the relay migrates.
func Models() []interface{} {
	return []interface{}{
		&StreamModel{},
		&StreamViewerModel{},
		&CodeSessionModel{},
		&CodeVersionModel{},
		&UserModel{},
	}
}
