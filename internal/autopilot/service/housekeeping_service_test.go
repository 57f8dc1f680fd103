package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-autopilot/internal/autopilot/repository"
	"stock-autopilot/internal/entity"
	"stock-autopilot/pkg/logger"
	"stock-autopilot/pkg/telegram"
)

func TestNewHousekeepingServiceRejectsBadCron(t *testing.T) {
	cfg := safetyConfig()
	cfg.Housekeeping.PruneCron = "every day at three"

	_, err := NewHousekeepingService(cfg, logger.NewNop(), nil, nil, nil, nil, nil, nil, nil, telegram.NewNoop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid prune cron")
}

func TestRunPruneTrimsHistoryAndSweepsOrders(t *testing.T) {
	orderSvc, db := newOrderTestService(t)
	require.NoError(t, db.AutoMigrate(&entity.Signal{}))

	cfg := safetyConfig()
	cfg.Housekeeping.LogRetentionDays = 30
	cfg.Housekeeping.SignalKeep = 2

	svc, err := NewHousekeepingService(
		cfg,
		logger.NewNop(),
		nil,
		orderSvc,
		repository.NewOrderRepository(db),
		repository.NewPositionRepository(db),
		repository.NewPortfolioRepository(db),
		repository.NewSignalRepository(db),
		repository.NewAutopilotLogRepository(db),
		telegram.NewNoop(),
	)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, db.Create(&entity.AutopilotLog{Category: "cycle", Message: "ancient", CreatedAt: now.AddDate(0, 0, -60)}).Error)
	require.NoError(t, db.Create(&entity.AutopilotLog{Category: "cycle", Message: "recent", CreatedAt: now.Add(-time.Hour)}).Error)

	for i := 0; i < 4; i++ {
		require.NoError(t, db.Create(&entity.Signal{
			Symbol:     "SAP.DE",
			Direction:  entity.SignalDirectionBuy,
			Confidence: 70,
			CreatedAt:  now.Add(time.Duration(i-4) * time.Hour),
		}).Error)
	}

	yesterday := now.AddDate(0, 0, -1)
	stale := seedOrder(t, db, &entity.Order{
		Symbol:       "SAP.DE",
		Name:         "SAP SE",
		OrderType:    entity.OrderTypeLimitBuy,
		Quantity:     1,
		TriggerPrice: 100,
		Status:       entity.OrderStatusActive,
		Source:       entity.OrderSourceAutopilot,
		ExpiresAt:    &yesterday,
	})

	svc.RunPrune(context.Background())

	// The ancient row is gone; the recent one and the expiry audit remain.
	var messages []string
	require.NoError(t, db.Model(&entity.AutopilotLog{}).Pluck("message", &messages).Error)
	assert.NotContains(t, messages, "ancient")
	assert.Contains(t, messages, "recent")

	var signalCount int64
	require.NoError(t, db.Model(&entity.Signal{}).Count(&signalCount).Error)
	assert.EqualValues(t, 2, signalCount)

	var reloaded entity.Order
	require.NoError(t, db.First(&reloaded, stale.ID).Error)
	assert.Equal(t, entity.OrderStatusExpired, reloaded.Status)
}

func TestTradesOnSkipsWeekends(t *testing.T) {
	calendars, err := NewMarketCalendars(nil)
	require.NoError(t, err)

	// 2025-06-06 is a Friday, 2025-06-07 a Saturday.
	friday := time.Date(2025, 6, 6, 20, 0, 0, 0, time.UTC)
	saturday := time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC)

	assert.True(t, AnyMarketTradesOn(calendars, friday))
	assert.False(t, AnyMarketTradesOn(calendars, saturday))
}
