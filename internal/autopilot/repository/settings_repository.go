package repository

import (
	"context"

	"stock-autopilot/internal/entity"

	"gorm.io/gorm"
)

// SettingsRepository reads and writes the single operator settings row.
type SettingsRepository interface {
	Get(ctx context.Context) (*entity.AutopilotSettings, error)
	Update(ctx context.Context, settings *entity.AutopilotSettings) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// Get returns the settings row, creating the conservative defaults when the
// table is still empty.
func (r *settingsRepository) Get(ctx context.Context) (*entity.AutopilotSettings, error) {
	settings := defaultSettings()
	err := r.db.WithContext(ctx).Where(entity.AutopilotSettings{ID: 1}).FirstOrCreate(settings).Error
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *settingsRepository) Update(ctx context.Context, settings *entity.AutopilotSettings) error {
	settings.ID = 1
	return r.db.WithContext(ctx).Save(settings).Error
}

func defaultSettings() *entity.AutopilotSettings {
	return &entity.AutopilotSettings{
		ID:                 1,
		Enabled:            false,
		Mode:               entity.AutopilotModeSuggestOnly,
		IntervalMinutes:    60,
		ActiveHoursOnly:    true,
		MaxTradesPerCycle:  3,
		MaxPositionPercent: 20,
		MinCashReservePct:  10,
		MinConfidence:      60,
		AllowBuy:           true,
		AllowSell:          true,
		AllowNewPositions:  true,
		WatchlistOnly:      true,
		ExecutionEnabled:   false,
		Strategy:           "balanced growth, prefer liquid large caps",
		RiskTolerance:      "moderate",
		OrderExpiryDays:    5,
	}
}
