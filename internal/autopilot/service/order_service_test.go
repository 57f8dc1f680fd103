package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stock-autopilot/internal/autopilot/config"
	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/internal/autopilot/repository"
	"stock-autopilot/internal/entity"
	"stock-autopilot/pkg/common"
	"stock-autopilot/pkg/logger"
	"stock-autopilot/pkg/telegram"
)

func newOrderTestService(t *testing.T) (OrderService, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "autopilot.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&entity.Order{},
		&entity.Position{},
		&entity.Portfolio{},
		&entity.AutopilotLog{},
	))

	cfg := &config.Config{Fees: config.Fees{Minimum: 1.00, Percent: 0.25}}
	svc := NewOrderService(
		cfg,
		logger.NewNop(),
		db,
		repository.NewOrderRepository(db),
		repository.NewPositionRepository(db),
		repository.NewPortfolioRepository(db),
		repository.NewAutopilotLogRepository(db),
		telegram.NewNoop(),
	)
	return svc, db
}

func seedCash(t *testing.T, db *gorm.DB, amount float64) {
	t.Helper()
	require.NoError(t, db.Create(&entity.Portfolio{ID: 1, CashBalance: amount, Currency: "EUR"}).Error)
}

func seedPosition(t *testing.T, db *gorm.DB, symbol string, qty int, avgPrice float64) {
	t.Helper()
	require.NoError(t, db.Create(&entity.Position{Symbol: symbol, Quantity: qty, AvgBuyPrice: avgPrice, Currency: "EUR"}).Error)
}

func seedOrder(t *testing.T, db *gorm.DB, order *entity.Order) *entity.Order {
	t.Helper()
	require.NoError(t, db.Create(order).Error)
	return order
}

func cashBalance(t *testing.T, db *gorm.DB) float64 {
	t.Helper()
	var portfolio entity.Portfolio
	require.NoError(t, db.First(&portfolio, 1).Error)
	return portfolio.CashBalance
}

func TestExecuteOrderBuyOpensPosition(t *testing.T) {
	svc, db := newOrderTestService(t)
	seedCash(t, db, 10000)
	order := seedOrder(t, db, &entity.Order{
		Symbol:       "SAP.DE",
		Name:         "SAP SE",
		OrderType:    entity.OrderTypeLimitBuy,
		Quantity:     5,
		TriggerPrice: 150,
		Status:       entity.OrderStatusActive,
		Source:       entity.OrderSourceAutopilot,
	})

	executed, err := svc.ExecuteOrder(context.Background(), order.ID, 148)
	require.NoError(t, err)

	assert.Equal(t, entity.OrderStatusExecuted, executed.Status)
	require.NotNil(t, executed.ExecutedPrice)
	assert.Equal(t, 148.0, *executed.ExecutedPrice)
	assert.NotNil(t, executed.ExecutedAt)
	// 5 x 148 = 740 notional, 0.25% fee beats the 1 EUR minimum.
	assert.InDelta(t, 1.85, executed.Fee, 1e-9)

	assert.InDelta(t, 10000-740-1.85, cashBalance(t, db), 1e-9)

	var position entity.Position
	require.NoError(t, db.Where("symbol = ?", "SAP.DE").First(&position).Error)
	assert.Equal(t, 5, position.Quantity)
	assert.Equal(t, 148.0, position.AvgBuyPrice)
	assert.Equal(t, 148.0, position.CurrentPrice)
	assert.Equal(t, "SAP SE", position.Name)
	assert.Equal(t, "EUR", position.Currency)

	var auditRows int64
	require.NoError(t, db.Model(&entity.AutopilotLog{}).Where("category = ?", common.LogCategoryExecution).Count(&auditRows).Error)
	assert.Equal(t, int64(1), auditRows)
}

func TestExecuteOrderBuyAveragesCostBasis(t *testing.T) {
	svc, db := newOrderTestService(t)
	seedCash(t, db, 10000)
	seedPosition(t, db, "SAP.DE", 5, 100)
	order := seedOrder(t, db, &entity.Order{
		Symbol:       "SAP.DE",
		OrderType:    entity.OrderTypeLimitBuy,
		Quantity:     5,
		TriggerPrice: 121,
		Status:       entity.OrderStatusActive,
		Source:       entity.OrderSourceManual,
	})

	_, err := svc.ExecuteOrder(context.Background(), order.ID, 120)
	require.NoError(t, err)

	var position entity.Position
	require.NoError(t, db.Where("symbol = ?", "SAP.DE").First(&position).Error)
	assert.Equal(t, 10, position.Quantity)
	// (5*100 + 5*120) / 10, the fee never enters the cost basis.
	assert.InDelta(t, 110.0, position.AvgBuyPrice, 1e-9)
}

func TestExecuteOrderSellReducesThenClosesPosition(t *testing.T) {
	svc, db := newOrderTestService(t)
	seedCash(t, db, 1000)
	seedPosition(t, db, "TSLA", 10, 100)

	first := seedOrder(t, db, &entity.Order{
		Symbol:       "TSLA",
		OrderType:    entity.OrderTypeStopLoss,
		Quantity:     4,
		TriggerPrice: 95,
		Status:       entity.OrderStatusActive,
		Source:       entity.OrderSourceAutopilot,
	})

	executed, err := svc.ExecuteOrder(context.Background(), first.ID, 94)
	require.NoError(t, err)
	// 4 x 94 = 376 notional, the percent fee would be 0.94 so the minimum applies.
	assert.InDelta(t, 1.00, executed.Fee, 1e-9)
	assert.InDelta(t, 1000+376-1.00, cashBalance(t, db), 1e-9)

	var position entity.Position
	require.NoError(t, db.Where("symbol = ?", "TSLA").First(&position).Error)
	assert.Equal(t, 6, position.Quantity)
	assert.Equal(t, 94.0, position.CurrentPrice)

	second := seedOrder(t, db, &entity.Order{
		Symbol:       "TSLA",
		OrderType:    entity.OrderTypeLimitSell,
		Quantity:     6,
		TriggerPrice: 94,
		Status:       entity.OrderStatusActive,
		Source:       entity.OrderSourceManual,
	})

	_, err = svc.ExecuteOrder(context.Background(), second.ID, 94)
	require.NoError(t, err)

	err = db.Where("symbol = ?", "TSLA").First(&entity.Position{}).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestExecuteOrderRejectsNonExecutableOrders(t *testing.T) {
	svc, db := newOrderTestService(t)
	seedCash(t, db, 10000)

	pending := seedOrder(t, db, &entity.Order{
		Symbol:       "SAP.DE",
		OrderType:    entity.OrderTypeLimitBuy,
		Quantity:     1,
		TriggerPrice: 100,
		Status:       entity.OrderStatusPending,
		Source:       entity.OrderSourceAutopilot,
	})

	_, err := svc.ExecuteOrder(context.Background(), pending.ID, 99)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.ExecuteOrder(context.Background(), 9999, 99)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.ExecuteOrder(context.Background(), pending.ID, 0)
	assert.Error(t, err)

	active := seedOrder(t, db, &entity.Order{
		Symbol:       "SAP.DE",
		OrderType:    entity.OrderTypeLimitBuy,
		Quantity:     1,
		TriggerPrice: 100,
		Status:       entity.OrderStatusActive,
		Source:       entity.OrderSourceAutopilot,
	})
	_, err = svc.ExecuteOrder(context.Background(), active.ID, 99)
	require.NoError(t, err)

	// A fill is terminal, the same order cannot execute twice.
	_, err = svc.ExecuteOrder(context.Background(), active.ID, 99)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestExecuteOrderRollsBackUncoveredSell(t *testing.T) {
	svc, db := newOrderTestService(t)
	seedCash(t, db, 500)
	seedPosition(t, db, "TSLA", 3, 100)

	// Created directly so the oversell check on creation is bypassed.
	order := seedOrder(t, db, &entity.Order{
		Symbol:       "TSLA",
		OrderType:    entity.OrderTypeLimitSell,
		Quantity:     5,
		TriggerPrice: 110,
		Status:       entity.OrderStatusActive,
		Source:       entity.OrderSourceManual,
	})

	_, err := svc.ExecuteOrder(context.Background(), order.ID, 112)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer covers")

	assert.InDelta(t, 500.0, cashBalance(t, db), 1e-9)

	var reloaded entity.Order
	require.NoError(t, db.First(&reloaded, order.ID).Error)
	assert.Equal(t, entity.OrderStatusActive, reloaded.Status)

	var position entity.Position
	require.NoError(t, db.Where("symbol = ?", "TSLA").First(&position).Error)
	assert.Equal(t, 3, position.Quantity)
}

func TestCreateFromSuggestionSupersedesOpenOrder(t *testing.T) {
	svc, db := newOrderTestService(t)
	stale := seedOrder(t, db, &entity.Order{
		Symbol:       "SAP.DE",
		OrderType:    entity.OrderTypeLimitBuy,
		Quantity:     3,
		TriggerPrice: 140,
		Status:       entity.OrderStatusActive,
		Source:       entity.OrderSourceAutopilot,
	})

	order, skip, err := svc.CreateFromSuggestion(context.Background(), dto.SuggestedOrder{
		Symbol:       "SAP.DE",
		OrderType:    "limit_buy",
		Quantity:     5,
		TriggerPrice: 150,
		Reasoning:    "breakout above resistance",
	}, permissiveSettings())
	require.NoError(t, err)
	require.Nil(t, skip)
	require.NotNil(t, order)

	assert.Equal(t, entity.OrderStatusActive, order.Status)
	assert.Equal(t, entity.OrderSourceAutopilot, order.Source)
	require.NotNil(t, order.ExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 5), *order.ExpiresAt, time.Minute)

	var reloaded entity.Order
	require.NoError(t, db.First(&reloaded, stale.ID).Error)
	assert.Equal(t, entity.OrderStatusCancelled, reloaded.Status)
}

func TestCreateFromSuggestionKeepsManualOrders(t *testing.T) {
	svc, db := newOrderTestService(t)
	manual := seedOrder(t, db, &entity.Order{
		Symbol:       "SAP.DE",
		OrderType:    entity.OrderTypeLimitBuy,
		Quantity:     3,
		TriggerPrice: 140,
		Status:       entity.OrderStatusActive,
		Source:       entity.OrderSourceManual,
	})

	order, skip, err := svc.CreateFromSuggestion(context.Background(), dto.SuggestedOrder{
		Symbol:       "SAP.DE",
		OrderType:    "limit_buy",
		Quantity:     5,
		TriggerPrice: 150,
	}, permissiveSettings())
	require.NoError(t, err)
	require.Nil(t, skip)
	require.NotNil(t, order)

	var reloaded entity.Order
	require.NoError(t, db.First(&reloaded, manual.ID).Error)
	assert.Equal(t, entity.OrderStatusActive, reloaded.Status)
}

func TestCreateFromSuggestionRejectsDuplicateSellTrigger(t *testing.T) {
	svc, db := newOrderTestService(t)
	seedPosition(t, db, "SAP.DE", 10, 90)
	seedOrder(t, db, &entity.Order{
		Symbol:       "SAP.DE",
		OrderType:    entity.OrderTypeStopLoss,
		Quantity:     2,
		TriggerPrice: 100,
		Status:       entity.OrderStatusActive,
		Source:       entity.OrderSourceManual,
	})

	// 103 is within 5% of the standing 100 trigger.
	order, skip, err := svc.CreateFromSuggestion(context.Background(), dto.SuggestedOrder{
		Symbol:       "SAP.DE",
		OrderType:    "stop_loss",
		Quantity:     3,
		TriggerPrice: 103,
	}, permissiveSettings())
	require.NoError(t, err)
	assert.Nil(t, order)
	require.NotNil(t, skip)
	assert.Equal(t, "duplicate", skip.Rule)
}

func TestCreateFromSuggestionRejectsOversell(t *testing.T) {
	svc, db := newOrderTestService(t)
	seedPosition(t, db, "SAP.DE", 10, 90)
	seedOrder(t, db, &entity.Order{
		Symbol:       "SAP.DE",
		OrderType:    entity.OrderTypeStopLoss,
		Quantity:     6,
		TriggerPrice: 100,
		Status:       entity.OrderStatusActive,
		Source:       entity.OrderSourceManual,
	})

	// Trigger far from the standing stop so only the quantity check bites.
	order, skip, err := svc.CreateFromSuggestion(context.Background(), dto.SuggestedOrder{
		Symbol:       "SAP.DE",
		OrderType:    "limit_sell",
		Quantity:     5,
		TriggerPrice: 150,
	}, permissiveSettings())
	require.NoError(t, err)
	assert.Nil(t, order)
	require.NotNil(t, skip)
	assert.Equal(t, "oversell", skip.Rule)
	assert.Contains(t, skip.Reason, "exceed held 10")
}

func TestCreateFromSuggestionValidation(t *testing.T) {
	svc, _ := newOrderTestService(t)

	tests := []struct {
		name       string
		suggestion dto.SuggestedOrder
		reason     string
	}{
		{
			name:       "unknown order type",
			suggestion: dto.SuggestedOrder{Symbol: "SAP.DE", OrderType: "short", Quantity: 5, TriggerPrice: 100},
			reason:     "unknown order type",
		},
		{
			name:       "zero quantity",
			suggestion: dto.SuggestedOrder{Symbol: "SAP.DE", OrderType: "limit_buy", Quantity: 0, TriggerPrice: 100},
			reason:     "quantity resolved to zero",
		},
		{
			name:       "missing trigger",
			suggestion: dto.SuggestedOrder{Symbol: "SAP.DE", OrderType: "limit_buy", Quantity: 5},
			reason:     "trigger price missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, skip, err := svc.CreateFromSuggestion(context.Background(), tt.suggestion, permissiveSettings())
			require.NoError(t, err)
			assert.Nil(t, order)
			require.NotNil(t, skip)
			assert.Equal(t, "validation", skip.Rule)
			assert.Contains(t, skip.Reason, tt.reason)
		})
	}
}

func TestCreateFromSuggestionConfirmEachStartsPending(t *testing.T) {
	svc, _ := newOrderTestService(t)

	settings := permissiveSettings()
	settings.Mode = entity.AutopilotModeConfirmEach

	order, skip, err := svc.CreateFromSuggestion(context.Background(), dto.SuggestedOrder{
		Symbol:       "SAP.DE",
		OrderType:    "limit_buy",
		Quantity:     5,
		TriggerPrice: 150,
	}, settings)
	require.NoError(t, err)
	require.Nil(t, skip)
	require.NotNil(t, order)
	assert.Equal(t, entity.OrderStatusPending, order.Status)

	confirmed, err := svc.ConfirmOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusActive, confirmed.Status)

	_, err = svc.ConfirmOrder(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelOrder(t *testing.T) {
	svc, db := newOrderTestService(t)
	order := seedOrder(t, db, &entity.Order{
		Symbol:       "SAP.DE",
		OrderType:    entity.OrderTypeLimitBuy,
		Quantity:     1,
		TriggerPrice: 100,
		Status:       entity.OrderStatusActive,
		Source:       entity.OrderSourceManual,
	})

	cancelled, err := svc.CancelOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusCancelled, cancelled.Status)

	_, err = svc.CancelOrder(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.CancelOrder(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestExpireDueOrders(t *testing.T) {
	svc, db := newOrderTestService(t)
	yesterday := time.Now().AddDate(0, 0, -1)
	tomorrow := time.Now().AddDate(0, 0, 1)

	due := seedOrder(t, db, &entity.Order{
		Symbol: "SAP.DE", OrderType: entity.OrderTypeLimitBuy, Quantity: 1, TriggerPrice: 100,
		Status: entity.OrderStatusActive, Source: entity.OrderSourceAutopilot, ExpiresAt: &yesterday,
	})
	duePending := seedOrder(t, db, &entity.Order{
		Symbol: "TSLA", OrderType: entity.OrderTypeLimitSell, Quantity: 1, TriggerPrice: 300,
		Status: entity.OrderStatusPending, Source: entity.OrderSourceAutopilot, ExpiresAt: &yesterday,
	})
	fresh := seedOrder(t, db, &entity.Order{
		Symbol: "AAPL", OrderType: entity.OrderTypeLimitBuy, Quantity: 1, TriggerPrice: 200,
		Status: entity.OrderStatusActive, Source: entity.OrderSourceAutopilot, ExpiresAt: &tomorrow,
	})

	expired, err := svc.ExpireDueOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), expired)

	for id, want := range map[uint]entity.OrderStatus{
		due.ID:        entity.OrderStatusExpired,
		duePending.ID: entity.OrderStatusExpired,
		fresh.ID:      entity.OrderStatusActive,
	} {
		var reloaded entity.Order
		require.NoError(t, db.First(&reloaded, id).Error)
		assert.Equal(t, want, reloaded.Status)
	}
}

func TestCreateManualOrder(t *testing.T) {
	svc, _ := newOrderTestService(t)

	order, err := svc.CreateManualOrder(context.Background(), dto.CreateOrderRequest{
		Symbol:       "SAP.DE",
		Name:         "SAP SE",
		OrderType:    "stop_loss",
		Quantity:     4,
		TriggerPrice: 95.5,
		Note:         "protect gains",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusActive, order.Status)
	assert.Equal(t, entity.OrderSourceManual, order.Source)
	assert.Equal(t, entity.OrderTypeStopLoss, order.OrderType)
	assert.NotZero(t, order.ID)

	_, err = svc.CreateManualOrder(context.Background(), dto.CreateOrderRequest{
		Symbol: "SAP.DE", OrderType: "buy_the_dip", Quantity: 1, TriggerPrice: 10,
	})
	assert.Error(t, err)

	_, err = svc.CreateManualOrder(context.Background(), dto.CreateOrderRequest{
		Symbol: "SAP.DE", OrderType: "limit_buy", Quantity: 0, TriggerPrice: 10,
	})
	assert.Error(t, err)

	_, err = svc.CreateManualOrder(context.Background(), dto.CreateOrderRequest{
		Symbol: "", OrderType: "limit_buy", Quantity: 1, TriggerPrice: 10,
	})
	assert.Error(t, err)
}
