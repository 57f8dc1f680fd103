package repository

import (
	"context"

	"stock-autopilot/internal/entity"

	"gorm.io/gorm"
)

// StateRepository reads and writes the single scheduler state row.
type StateRepository interface {
	Get(ctx context.Context) (*entity.AutopilotState, error)
	Update(ctx context.Context, state *entity.AutopilotState) error
}

type stateRepository struct {
	db *gorm.DB
}

func NewStateRepository(db *gorm.DB) StateRepository {
	return &stateRepository{db: db}
}

func (r *stateRepository) Get(ctx context.Context) (*entity.AutopilotState, error) {
	state := &entity.AutopilotState{ID: 1}
	err := r.db.WithContext(ctx).Where(entity.AutopilotState{ID: 1}).FirstOrCreate(state).Error
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (r *stateRepository) Update(ctx context.Context, state *entity.AutopilotState) error {
	state.ID = 1
	return r.db.WithContext(ctx).Save(state).Error
}
