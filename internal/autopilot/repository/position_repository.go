package repository

import (
	"context"

	"stock-autopilot/internal/entity"

	"gorm.io/gorm"
)

type PositionRepository interface {
	GetAll(ctx context.Context) ([]entity.Position, error)
	GetBySymbol(ctx context.Context, symbol string) (*entity.Position, error)
	UpdateCurrentPrice(ctx context.Context, symbol string, price float64) error
}

type positionRepository struct {
	db *gorm.DB
}

func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &positionRepository{db: db}
}

func (r *positionRepository) GetAll(ctx context.Context) ([]entity.Position, error) {
	var positions []entity.Position
	if err := r.db.WithContext(ctx).Order("symbol asc").Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *positionRepository) GetBySymbol(ctx context.Context, symbol string) (*entity.Position, error) {
	var position entity.Position
	result := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&position)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &position, nil
}

func (r *positionRepository) UpdateCurrentPrice(ctx context.Context, symbol string, price float64) error {
	return r.db.WithContext(ctx).Model(&entity.Position{}).
		Where("symbol = ?", symbol).
		Update("current_price", price).Error
}
