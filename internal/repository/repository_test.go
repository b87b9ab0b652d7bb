package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/pkg/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.New(&database.Config{Driver: "sqlite", FilePath: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.Models()...))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestStreamRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewGormStreamRepository(newTestDB(t))

	stream := &domain.Stream{OwnerID: "owner", Title: "Live coding"}
	require.NoError(t, repo.Create(ctx, stream))
	require.NotEmpty(t, stream.ID)

	got, err := repo.GetByID(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamStatusScheduled, got.Status)
	assert.False(t, got.IsLive())

	require.NoError(t, repo.Start(ctx, stream.ID))
	got, err = repo.GetByID(ctx, stream.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLive())
	assert.NotNil(t, got.StartedAt)

	require.NoError(t, repo.End(ctx, stream.ID))
	got, err = repo.GetByID(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StreamStatusEnded, got.Status)
	assert.NotNil(t, got.EndedAt)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
	assert.ErrorIs(t, repo.End(ctx, "missing"), domain.ErrStreamNotFound)
}

func TestStreamRepository_Viewers(t *testing.T) {
	ctx := context.Background()
	repo := NewGormStreamRepository(newTestDB(t))

	stream := &domain.Stream{OwnerID: "owner", Title: "s"}
	require.NoError(t, repo.Create(ctx, stream))

	count, err := repo.AddViewer(ctx, stream.ID, "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.AddViewer(ctx, stream.ID, "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "adding a viewer twice is idempotent")

	count, err = repo.AddViewer(ctx, stream.ID, "v2")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.RemoveViewer(ctx, stream.ID, "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := repo.GetByID(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ViewerCount)

	_, err = repo.AddViewer(ctx, "missing", "v1")
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}

func TestCodeSessionRepository_UpdateCodeBumpsVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewGormCodeSessionRepository(newTestDB(t))

	session := &domain.CodeSession{
		Title:         "kata",
		Language:      "go",
		Code:          "package main",
		OwnerID:       "owner",
		Collaborators: []string{"c1", "c1", ""},
	}
	require.NoError(t, repo.Create(ctx, session))
	assert.Equal(t, domain.InitialCodeVersion, session.Version)

	got, err := repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, got.Collaborators)
	assert.False(t, got.IsPublic)

	updated, err := repo.UpdateCode(ctx, session.ID, "package main\n\nfunc main() {}", "c1")
	require.NoError(t, err)
	assert.Equal(t, "1.1", updated.Version)
	assert.Equal(t, "package main\n\nfunc main() {}", updated.Code)

	updated, err = repo.UpdateCode(ctx, session.ID, "v3", "owner")
	require.NoError(t, err)
	assert.Equal(t, "1.2", updated.Version)

	versions, err := repo.ListVersions(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "1.0", versions[0].Version)
	assert.Equal(t, "package main", versions[0].Code)
	assert.Equal(t, "c1", versions[0].UserID)
	assert.Equal(t, "1.1", versions[1].Version)

	_, err = repo.UpdateCode(ctx, "missing", "x", "owner")
	assert.ErrorIs(t, err, domain.ErrCodeSessionNotFound)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormUserRepository(newTestDB(t))

	user := &domain.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, repo.Create(ctx, user))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, domain.Identity{UserID: user.ID, Username: "alice"}, got.Identity())

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
