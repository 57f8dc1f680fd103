package entity

import "time"

// AutopilotState is a single-row table (id=1) tracking the scheduler's
// runtime bookkeeping across restarts.
type AutopilotState struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	IsRunning          bool       `json:"is_running"`
	LastRunAt          *time.Time `json:"last_run_at,omitempty"`
	NextRunAt          *time.Time `json:"next_run_at,omitempty"`
	CycleCount         int64      `json:"cycle_count"`
	TotalOrdersCreated int64      `json:"total_orders_created"`
	LastError          string     `json:"last_error,omitempty"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AutopilotState) TableName() string {
	return "autopilot_state"
}
