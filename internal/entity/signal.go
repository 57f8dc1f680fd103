package entity

import (
	"time"

	"gorm.io/datatypes"
)

type SignalDirection string

const (
	SignalDirectionBuy  SignalDirection = "BUY"
	SignalDirectionSell SignalDirection = "SELL"
	SignalDirectionHold SignalDirection = "HOLD"
)

// Signal is one advisory recommendation. Rows are immutable; the most recent
// ones form the advisory memory that rides along on the next request.
type Signal struct {
	ID              int64           `gorm:"primaryKey" json:"id"`
	Symbol          string          `gorm:"not null;index" json:"symbol"`
	Direction       SignalDirection `gorm:"not null" json:"direction"`
	Confidence      float64         `gorm:"not null" json:"confidence"`
	Reasoning       string          `json:"reasoning"`
	IdealEntryPrice *float64        `json:"ideal_entry_price,omitempty"`
	TargetPrice     *float64        `json:"target_price,omitempty"`
	StopLoss        *float64        `json:"stop_loss,omitempty"`
	RiskLevel       string          `json:"risk_level"`
	Data            datatypes.JSON  `gorm:"type:jsonb" json:"data,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Signal) TableName() string {
	return "signals"
}
