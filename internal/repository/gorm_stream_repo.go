package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/pkg/log"
)

// GormStreamRepository implements StreamRepository using GORM.
type GormStreamRepository struct {
	db *gorm.DB
}

// NewGormStreamRepository creates a new GORM-based stream repository.
func NewGormStreamRepository(db *gorm.DB) *GormStreamRepository {
	return &GormStreamRepository{db: db}
}

// Create creates a new stream.
func (r *GormStreamRepository) Create(ctx context.Context, stream *domain.Stream) error {
	l := log.Ctx(ctx)

	if stream.ID == "" {
		stream.ID = uuid.New().String()
	}
	if stream.Status == "" {
		stream.Status = domain.StreamStatusScheduled
	}

	model := domain.StreamToModel(stream)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Msg("failed to create stream in db")
		return err
	}

	stream.CreatedAt = model.CreatedAt
	l.Debug().Str(log.FieldStreamID, stream.ID).Msg("stream created in db")
	return nil
}

// GetByID retrieves a stream by ID together with its viewer count.
func (r *GormStreamRepository) GetByID(ctx context.Context, id string) (*domain.Stream, error) {
	l := log.Ctx(ctx)

	var model domain.StreamModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrStreamNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldStreamID, id).Msg("failed to get stream by id")
		return nil, result.Error
	}

	count, err := r.countViewers(r.db.WithContext(ctx), id)
	if err != nil {
		l.Error().Err(err).Str(log.FieldStreamID, id).Msg("failed to count viewers")
		return nil, err
	}

	stream := model.ToDomain()
	stream.ViewerCount = count
	return stream, nil
}

// Start marks a stream live.
func (r *GormStreamRepository) Start(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.StreamStatusLive, "started_at")
}

// End marks a stream ended.
func (r *GormStreamRepository) End(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.StreamStatusEnded, "ended_at")
}

func (r *GormStreamRepository) setStatus(ctx context.Context, id string, status domain.StreamStatus, stampColumn string) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.StreamModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":    string(status),
			stampColumn: time.Now(),
		})
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldStreamID, id).Str("status", string(status)).Msg("failed to update stream status")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrStreamNotFound
	}
	l.Debug().Str(log.FieldStreamID, id).Str("status", string(status)).Msg("stream status updated in db")
	return nil
}

// AddViewer records userID as a viewer. Adding the same viewer twice is a no-op.
func (r *GormStreamRepository) AddViewer(ctx context.Context, streamID, userID string) (int, error) {
	l := log.Ctx(ctx)

	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensureExists(tx, streamID); err != nil {
			return err
		}
		viewer := &domain.StreamViewerModel{StreamID: streamID, UserID: userID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(viewer).Error; err != nil {
			return err
		}
		var err error
		count, err = r.countViewers(tx, streamID)
		return err
	})
	if err != nil {
		if !errors.Is(err, domain.ErrStreamNotFound) {
			l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to add viewer")
		}
		return 0, err
	}
	return count, nil
}

// RemoveViewer forgets userID as a viewer.
func (r *GormStreamRepository) RemoveViewer(ctx context.Context, streamID, userID string) (int, error) {
	l := log.Ctx(ctx)

	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensureExists(tx, streamID); err != nil {
			return err
		}
		if err := tx.Where("stream_id = ? AND user_id = ?", streamID, userID).
			Delete(&domain.StreamViewerModel{}).Error; err != nil {
			return err
		}
		var err error
		count, err = r.countViewers(tx, streamID)
		return err
	})
	if err != nil {
		if !errors.Is(err, domain.ErrStreamNotFound) {
			l.Error().Err(err).Str(log.FieldStreamID, streamID).Msg("failed to remove viewer")
		}
		return 0, err
	}
	return count, nil
}

func (r *GormStreamRepository) ensureExists(tx *gorm.DB, streamID string) error {
	var n int64
	if err := tx.Model(&domain.StreamModel{}).Where("id = ?", streamID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrStreamNotFound
	}
	return nil
}

func (r *GormStreamRepository) countViewers(tx *gorm.DB, streamID string) (int, error) {
	var n int64
	err := tx.Model(&domain.StreamViewerModel{}).Where("stream_id = ?", streamID).Count(&n).Error
	return int(n), err
}

var _ StreamRepository = (*GormStreamRepository)(nil)
