package repository

import (
	"context"
	"strings"
	"time"

	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/internal/entity"

	"gorm.io/gorm"
)

// AutopilotLogRepository persists the audit trail.
type AutopilotLogRepository interface {
	Create(ctx context.Context, log *entity.AutopilotLog) error
	Get(ctx context.Context, param dto.GetLogsParam) ([]entity.AutopilotLog, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type autopilotLogRepository struct {
	db *gorm.DB
}

func NewAutopilotLogRepository(db *gorm.DB) AutopilotLogRepository {
	return &autopilotLogRepository{db: db}
}

func (r *autopilotLogRepository) Create(ctx context.Context, log *entity.AutopilotLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *autopilotLogRepository) Get(ctx context.Context, param dto.GetLogsParam) ([]entity.AutopilotLog, error) {
	var logs []entity.AutopilotLog

	qFilter := []string{}
	qFilterParam := []interface{}{}

	if param.Category != "" {
		qFilter = append(qFilter, "category = ?")
		qFilterParam = append(qFilterParam, param.Category)
	}

	if param.Symbol != "" {
		qFilter = append(qFilter, "symbol = ?")
		qFilterParam = append(qFilterParam, param.Symbol)
	}

	if param.Since != nil {
		qFilter = append(qFilter, "created_at >= ?")
		qFilterParam = append(qFilterParam, *param.Since)
	}

	limit := param.Limit
	if limit <= 0 {
		limit = 100
	}

	query := r.db.WithContext(ctx).Order("created_at desc").Limit(limit)
	if len(qFilter) > 0 {
		query = query.Where(strings.Join(qFilter, " AND "), qFilterParam...)
	}

	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}

	return logs, nil
}

func (r *autopilotLogRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&entity.AutopilotLog{})
	return result.RowsAffected, result.Error
}
