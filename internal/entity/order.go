package entity

import "time"

type OrderType string

const (
	OrderTypeLimitBuy  OrderType = "limit_buy"
	OrderTypeLimitSell OrderType = "limit_sell"
	OrderTypeStopBuy   OrderType = "stop_buy"
	OrderTypeStopLoss  OrderType = "stop_loss"
)

// IsBuy reports whether the order type adds to a position.
func (t OrderType) IsBuy() bool {
	return t == OrderTypeLimitBuy || t == OrderTypeStopBuy
}

// IsSell reports whether the order type reduces a position.
func (t OrderType) IsSell() bool {
	return t == OrderTypeLimitSell || t == OrderTypeStopLoss
}

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeLimitBuy, OrderTypeLimitSell, OrderTypeStopBuy, OrderTypeStopLoss:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusActive    OrderStatus = "active"
	OrderStatusExecuted  OrderStatus = "executed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
)

// IsOpen reports whether the order can still execute or be cancelled.
func (s OrderStatus) IsOpen() bool {
	return s == OrderStatusPending || s == OrderStatusActive
}

type OrderSource string

const (
	OrderSourceManual    OrderSource = "manual"
	OrderSourceAutopilot OrderSource = "autopilot"
)

type Order struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	Symbol         string      `gorm:"not null;index" json:"symbol"`
	Name           string      `json:"name"`
	OrderType      OrderType   `gorm:"not null" json:"order_type"`
	Quantity       int         `gorm:"not null" json:"quantity"`
	TriggerPrice   float64     `gorm:"not null" json:"trigger_price"`
	LastKnownPrice float64     `json:"last_known_price"`
	Status         OrderStatus `gorm:"not null;index" json:"status"`
	Source         OrderSource `gorm:"not null" json:"source"`
	AutoGenerated  bool        `json:"auto_generated"`
	Note           string      `json:"note"`
	Fee            float64     `json:"fee"`
	ExecutedPrice  *float64    `json:"executed_price,omitempty"`
	ExecutedAt     *time.Time  `json:"executed_at,omitempty"`
	ExpiresAt      *time.Time  `json:"expires_at,omitempty"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}
