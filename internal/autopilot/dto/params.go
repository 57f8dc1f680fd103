package dto

import (
	"time"

	"stock-autopilot/internal/entity"
)

// GetOrdersParam filters order listings. Empty fields are skipped.
type GetOrdersParam struct {
	IDs           []uint
	Symbols       []string
	Statuses      []entity.OrderStatus
	Source        *entity.OrderSource
	AutoGenerated *bool
	ExpiresBefore *time.Time
	Limit         int
}

// GetLogsParam filters the audit trail listing.
type GetLogsParam struct {
	Category string
	Symbol   string
	Since    *time.Time
	Limit    int
}
