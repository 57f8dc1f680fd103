package entity

import "time"

// Portfolio is a single-row table (id=1) holding the settled cash balance.
type Portfolio struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CashBalance float64   `gorm:"not null" json:"cash_balance"`
	Currency    string    `gorm:"not null" json:"currency"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Portfolio) TableName() string {
	return "portfolio"
}
