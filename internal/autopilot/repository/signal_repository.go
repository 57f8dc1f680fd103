package repository

import (
	"context"

	"stock-autopilot/internal/entity"

	"gorm.io/gorm"
)

type SignalRepository interface {
	Create(ctx context.Context, signal *entity.Signal) error
	GetRecent(ctx context.Context, limit int) ([]entity.Signal, error)
	PruneKeepLatest(ctx context.Context, keep int) (int64, error)
}

type signalRepository struct {
	db *gorm.DB
}

func NewSignalRepository(db *gorm.DB) SignalRepository {
	return &signalRepository{db: db}
}

func (r *signalRepository) Create(ctx context.Context, signal *entity.Signal) error {
	return r.db.WithContext(ctx).Create(signal).Error
}

func (r *signalRepository) GetRecent(ctx context.Context, limit int) ([]entity.Signal, error) {
	var signals []entity.Signal
	if err := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&signals).Error; err != nil {
		return nil, err
	}
	return signals, nil
}

// PruneKeepLatest deletes all but the newest rows.
func (r *signalRepository) PruneKeepLatest(ctx context.Context, keep int) (int64, error) {
	result := r.db.WithContext(ctx).Exec(
		"DELETE FROM signals WHERE id NOT IN (SELECT id FROM signals ORDER BY created_at DESC LIMIT ?)",
		keep,
	)
	return result.RowsAffected, result.Error
}
