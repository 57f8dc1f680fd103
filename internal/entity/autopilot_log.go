package entity

import (
	"time"

	"gorm.io/datatypes"
)

// AutopilotLog is the persistent audit trail. Every decision the autopilot
// takes (or declines to take) lands here with a category the API can filter.
type AutopilotLog struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	Category  string         `gorm:"not null;index" json:"category"`
	Message   string         `gorm:"not null" json:"message"`
	Symbol    string         `gorm:"index" json:"symbol,omitempty"`
	OrderID   *uint          `json:"order_id,omitempty"`
	Details   datatypes.JSON `gorm:"type:jsonb" json:"details,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (AutopilotLog) TableName() string {
	return "autopilot_logs"
}
