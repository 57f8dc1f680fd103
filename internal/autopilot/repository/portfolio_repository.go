package repository

import (
	"context"

	"stock-autopilot/internal/entity"

	"gorm.io/gorm"
)

// PortfolioRepository reads and writes the single cash balance row.
type PortfolioRepository interface {
	Get(ctx context.Context) (*entity.Portfolio, error)
	Update(ctx context.Context, portfolio *entity.Portfolio) error
}

type portfolioRepository struct {
	db *gorm.DB
}

func NewPortfolioRepository(db *gorm.DB) PortfolioRepository {
	return &portfolioRepository{db: db}
}

func (r *portfolioRepository) Get(ctx context.Context) (*entity.Portfolio, error) {
	portfolio := &entity.Portfolio{ID: 1, Currency: "EUR"}
	err := r.db.WithContext(ctx).Where(entity.Portfolio{ID: 1}).FirstOrCreate(portfolio).Error
	if err != nil {
		return nil, err
	}
	return portfolio, nil
}

func (r *portfolioRepository) Update(ctx context.Context, portfolio *entity.Portfolio) error {
	portfolio.ID = 1
	return r.db.WithContext(ctx).Save(portfolio).Error
}
