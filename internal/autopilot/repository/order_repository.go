package repository

import (
	"context"
	"strings"
	"time"

	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/internal/entity"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	Update(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id uint) (*entity.Order, error)
	Get(ctx context.Context, param dto.GetOrdersParam) ([]entity.Order, error)
	GetOpenOrders(ctx context.Context) ([]entity.Order, error)
	MarkExpiredBefore(ctx context.Context, now time.Time) (int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *entity.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) Update(ctx context.Context, order *entity.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id uint) (*entity.Order, error) {
	var order entity.Order
	result := r.db.WithContext(ctx).First(&order, id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &order, nil
}

func (r *orderRepository) Get(ctx context.Context, param dto.GetOrdersParam) ([]entity.Order, error) {
	var orders []entity.Order

	qFilter := []string{}
	qFilterParam := []interface{}{}

	if len(param.IDs) > 0 {
		qFilter = append(qFilter, "id IN (?)")
		qFilterParam = append(qFilterParam, param.IDs)
	}

	if len(param.Symbols) > 0 {
		qFilter = append(qFilter, "symbol IN (?)")
		qFilterParam = append(qFilterParam, param.Symbols)
	}

	if len(param.Statuses) > 0 {
		qFilter = append(qFilter, "status IN (?)")
		qFilterParam = append(qFilterParam, param.Statuses)
	}

	if param.Source != nil {
		qFilter = append(qFilter, "source = ?")
		qFilterParam = append(qFilterParam, *param.Source)
	}

	if param.AutoGenerated != nil {
		qFilter = append(qFilter, "auto_generated = ?")
		qFilterParam = append(qFilterParam, *param.AutoGenerated)
	}

	if param.ExpiresBefore != nil {
		qFilter = append(qFilter, "expires_at IS NOT NULL AND expires_at < ?")
		qFilterParam = append(qFilterParam, *param.ExpiresBefore)
	}

	query := r.db.WithContext(ctx).Order("created_at desc")
	if len(qFilter) > 0 {
		query = query.Where(strings.Join(qFilter, " AND "), qFilterParam...)
	}
	if param.Limit > 0 {
		query = query.Limit(param.Limit)
	}

	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepository) GetOpenOrders(ctx context.Context) ([]entity.Order, error) {
	var orders []entity.Order
	err := r.db.WithContext(ctx).
		Where("status IN (?)", []entity.OrderStatus{entity.OrderStatusPending, entity.OrderStatusActive}).
		Order("created_at asc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// MarkExpiredBefore closes every open order whose expiry has passed and
// returns how many rows changed.
func (r *orderRepository) MarkExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entity.Order{}).
		Where("status IN (?)", []entity.OrderStatus{entity.OrderStatusPending, entity.OrderStatusActive}).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Update("status", entity.OrderStatusExpired)
	return result.RowsAffected, result.Error
}
