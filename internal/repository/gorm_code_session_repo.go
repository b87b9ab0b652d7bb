package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/pkg/log"
)

// maxUpdateAttempts bounds retries when concurrent saves race on a version.
const maxUpdateAttempts = 3

// ErrVersionConflict is returned when a save keeps losing the version race.
var ErrVersionConflict = errors.New("code session was modified concurrently")

// GormCodeSessionRepository implements CodeSessionRepository using GORM.
type GormCodeSessionRepository struct {
	db *gorm.DB
}

// NewGormCodeSessionRepository creates a new GORM-based code session repository.
func NewGormCodeSessionRepository(db *gorm.DB) *GormCodeSessionRepository {
	return &GormCodeSessionRepository{db: db}
}

// Create creates a new code session at the initial version.
func (r *GormCodeSessionRepository) Create(ctx context.Context, session *domain.CodeSession) error {
	l := log.Ctx(ctx)

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.Version == "" {
		session.Version = domain.InitialCodeVersion
	}

	model := domain.CodeSessionToModel(session)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Msg("failed to create code session in db")
		return err
	}

	session.UpdatedAt = model.UpdatedAt
	l.Debug().Str(log.FieldSessionID, session.ID).Msg("code session created in db")
	return nil
}

// GetByID retrieves a code session by ID.
func (r *GormCodeSessionRepository) GetByID(ctx context.Context, id string) (*domain.CodeSession, error) {
	l := log.Ctx(ctx)

	var model domain.CodeSessionModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCodeSessionNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldSessionID, id).Msg("failed to get code session by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// UpdateCode archives the current content and stores code as the next minor
// version. The update is conditioned on the version it read, so two
// concurrent saves never produce the same version.
func (r *GormCodeSessionRepository) UpdateCode(ctx context.Context, id, code, userID string) (*domain.CodeSession, error) {
	l := log.Ctx(ctx)

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var updated *domain.CodeSession
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var model domain.CodeSessionModel
			if err := tx.First(&model, "id = ?", id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrCodeSessionNotFound
				}
				return err
			}

			next, err := domain.NextMinorVersion(model.Version)
			if err != nil {
				return err
			}

			history := &domain.CodeVersionModel{
				SessionID: model.ID,
				Version:   model.Version,
				Code:      model.Code,
				UserID:    userID,
			}
			if err := tx.Create(history).Error; err != nil {
				return err
			}

			result := tx.Model(&domain.CodeSessionModel{}).
				Where("id = ? AND version = ?", model.ID, model.Version).
				Updates(map[string]interface{}{
					"code":    code,
					"version": next,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrVersionConflict
			}

			model.Code = code
			model.Version = next
			updated = model.ToDomain()
			return nil
		})

		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			if !errors.Is(err, domain.ErrCodeSessionNotFound) {
				l.Error().Err(err).Str(log.FieldSessionID, id).Msg("failed to update code")
			}
			return nil, err
		}

		l.Debug().Str(log.FieldSessionID, id).Str("version", updated.Version).Msg("code session saved")
		return updated, nil
	}

	return nil, fmt.Errorf("update code session %s: %w", id, ErrVersionConflict)
}

// ListVersions returns the archived versions of a session, oldest first.
func (r *GormCodeSessionRepository) ListVersions(ctx context.Context, id string) ([]domain.CodeVersion, error) {
	l := log.Ctx(ctx)

	var models []domain.CodeVersionModel
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", id).
		Order("id ASC").
		Find(&models).Error; err != nil {
		l.Error().Err(err).Str(log.FieldSessionID, id).Msg("failed to list code versions")
		return nil, err
	}

	versions := make([]domain.CodeVersion, len(models))
	for i, model := range models {
		versions[i] = model.ToDomain()
	}
	return versions, nil
}

var _ CodeSessionRepository = (*GormCodeSessionRepository)(nil)
