package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/eogh234/srt-reservation/internal/models"
)

// SessionRepository persists the journal of booking runs. Storage is
// optional at runtime; callers hold a nil interface when no database is
// configured.
type SessionRepository interface {
	Create(ctx context.Context, rec *models.SessionRecord) error
	Update(ctx context.Context, rec *models.SessionRecord) error
	FindByID(ctx context.Context, id string) (*models.SessionRecord, error)
	FindRecent(ctx context.Context, limit int) ([]models.SessionRecord, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, rec *models.SessionRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *sessionRepository) Update(ctx context.Context, rec *models.SessionRecord) error {
	return r.db.WithContext(ctx).
		Model(&models.SessionRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]any{
			"state":         rec.State,
			"refresh_count": rec.RefreshCount,
			"last_error":    rec.LastError,
			"finished_at":   rec.FinishedAt,
		}).Error
}

func (r *sessionRepository) FindByID(ctx context.Context, id string) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *sessionRepository) FindRecent(ctx context.Context, limit int) ([]models.SessionRecord, error) {
	var recs []models.SessionRecord
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}
