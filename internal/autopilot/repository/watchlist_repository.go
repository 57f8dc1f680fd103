package repository

import (
	"context"

	"stock-autopilot/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WatchlistRepository interface {
	GetAll(ctx context.Context) ([]entity.WatchlistItem, error)
	GetBySymbol(ctx context.Context, symbol string) (*entity.WatchlistItem, error)
	AddIgnoreConflict(ctx context.Context, item *entity.WatchlistItem) error
	Remove(ctx context.Context, symbol string) (int64, error)
}

type watchlistRepository struct {
	db *gorm.DB
}

func NewWatchlistRepository(db *gorm.DB) WatchlistRepository {
	return &watchlistRepository{db: db}
}

func (r *watchlistRepository) GetAll(ctx context.Context) ([]entity.WatchlistItem, error) {
	var items []entity.WatchlistItem
	if err := r.db.WithContext(ctx).Order("symbol asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *watchlistRepository) GetBySymbol(ctx context.Context, symbol string) (*entity.WatchlistItem, error) {
	var item entity.WatchlistItem
	result := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&item)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &item, nil
}

func (r *watchlistRepository) AddIgnoreConflict(ctx context.Context, item *entity.WatchlistItem) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoNothing: true,
	}).Create(item).Error
}

func (r *watchlistRepository) Remove(ctx context.Context, symbol string) (int64, error) {
	result := r.db.WithContext(ctx).Where("symbol = ?", symbol).Delete(&entity.WatchlistItem{})
	return result.RowsAffected, result.Error
}
