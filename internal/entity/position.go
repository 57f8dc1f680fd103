package entity

import "time"

type Position struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Symbol       string    `gorm:"not null;uniqueIndex" json:"symbol"`
	Name         string    `json:"name"`
	Quantity     int       `gorm:"not null" json:"quantity"`
	AvgBuyPrice  float64   `gorm:"not null" json:"avg_buy_price"`
	CurrentPrice float64   `json:"current_price"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MarketValue values the position at the last seen price, falling back to
// cost basis while no quote has been recorded yet.
func (p *Position) MarketValue() float64 {
	price := p.CurrentPrice
	if price <= 0 {
		price = p.AvgBuyPrice
	}
	return float64(p.Quantity) * price
}

func (Position) TableName() string {
	return "positions"
}
