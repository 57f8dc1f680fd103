package entity

import "time"

type AutopilotMode string

const (
	AutopilotModeFullAuto    AutopilotMode = "full_auto"
	AutopilotModeSuggestOnly AutopilotMode = "suggest_only"
	AutopilotModeConfirmEach AutopilotMode = "confirm_each"
)

func (m AutopilotMode) Valid() bool {
	switch m {
	case AutopilotModeFullAuto, AutopilotModeSuggestOnly, AutopilotModeConfirmEach:
		return true
	}
	return false
}

// AutopilotSettings is a single-row table (id=1) holding the operator's
// risk and behaviour knobs. The cycle reloads it on every run so edits via
// the API take effect without a restart.
type AutopilotSettings struct {
	ID                 uint          `gorm:"primaryKey" json:"id"`
	Enabled            bool          `json:"enabled"`
	Mode               AutopilotMode `gorm:"not null" json:"mode"`
	IntervalMinutes    int           `gorm:"not null" json:"interval_minutes"`
	ActiveHoursOnly    bool          `json:"active_hours_only"`
	MaxTradesPerCycle  int           `json:"max_trades_per_cycle"`
	MaxPositionPercent float64       `json:"max_position_percent"`
	MinCashReservePct  float64       `gorm:"column:min_cash_reserve_percent" json:"min_cash_reserve_percent"`
	MinConfidence      float64       `json:"min_confidence"`
	AllowBuy           bool          `json:"allow_buy"`
	AllowSell          bool          `json:"allow_sell"`
	AllowNewPositions  bool          `json:"allow_new_positions"`
	WatchlistOnly      bool          `json:"watchlist_only"`
	ExecutionEnabled   bool          `json:"execution_enabled"`
	Strategy           string        `json:"strategy"`
	RiskTolerance      string        `json:"risk_tolerance"`
	CustomInstructions string        `json:"custom_instructions"`
	OrderExpiryDays    int           `json:"order_expiry_days"`
	UpdatedAt          time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AutopilotSettings) TableName() string {
	return "autopilot_settings"
}
