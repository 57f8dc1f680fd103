package dto

import (
	"time"

	"stock-autopilot/internal/entity"
)

// ErrorResponse represents a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is a plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// CreateOrderRequest is the DTO for placing a manual order.
type CreateOrderRequest struct {
	Symbol       string     `json:"symbol"`
	Name         string     `json:"name"`
	OrderType    string     `json:"order_type"`
	Quantity     int        `json:"quantity"`
	TriggerPrice float64    `json:"trigger_price"`
	Note         string     `json:"note"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" swaggertype:"string" format:"date-time"`
}

// UpdateSettingsRequest mirrors the editable subset of autopilot settings.
// Pointer fields distinguish "leave unchanged" from explicit zero values.
type UpdateSettingsRequest struct {
	Enabled            *bool    `json:"enabled,omitempty"`
	Mode               *string  `json:"mode,omitempty"`
	IntervalMinutes    *int     `json:"interval_minutes,omitempty"`
	ActiveHoursOnly    *bool    `json:"active_hours_only,omitempty"`
	MaxTradesPerCycle  *int     `json:"max_trades_per_cycle,omitempty"`
	MaxPositionPercent *float64 `json:"max_position_percent,omitempty"`
	MinCashReservePct  *float64 `json:"min_cash_reserve_percent,omitempty"`
	MinConfidence      *float64 `json:"min_confidence,omitempty"`
	AllowBuy           *bool    `json:"allow_buy,omitempty"`
	AllowSell          *bool    `json:"allow_sell,omitempty"`
	AllowNewPositions  *bool    `json:"allow_new_positions,omitempty"`
	WatchlistOnly      *bool    `json:"watchlist_only,omitempty"`
	ExecutionEnabled   *bool    `json:"execution_enabled,omitempty"`
	Strategy           *string  `json:"strategy,omitempty"`
	RiskTolerance      *string  `json:"risk_tolerance,omitempty"`
	CustomInstructions *string  `json:"custom_instructions,omitempty"`
	OrderExpiryDays    *int     `json:"order_expiry_days,omitempty"`
}

// AddWatchlistRequest is the DTO for adding a watchlist entry.
type AddWatchlistRequest struct {
	Symbol string   `json:"symbol"`
	Name   string   `json:"name"`
	Tags   []string `json:"tags,omitempty"`
}

// PortfolioResponse combines the cash row with the aggregated position value.
type PortfolioResponse struct {
	CashBalance   float64           `json:"cash_balance"`
	Currency      string            `json:"currency"`
	PositionValue float64           `json:"position_value"`
	TotalValue    float64           `json:"total_value"`
	Positions     []entity.Position `json:"positions"`
}
