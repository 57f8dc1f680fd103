package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/internal/entity"
	"stock-autopilot/pkg/logger"
)

func TestNextFireDelay(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	grace := 15 * time.Second
	interval := time.Hour

	// Never ran: settle for the grace delay.
	assert.Equal(t, grace, nextFireDelay(now, nil, interval, grace))

	// Overdue after a restart: also the grace delay, not an immediate run.
	overdue := now.Add(-2 * time.Hour)
	assert.Equal(t, grace, nextFireDelay(now, &overdue, interval, grace))

	due := now.Add(-interval)
	assert.Equal(t, grace, nextFireDelay(now, &due, interval, grace))

	// Mid-interval: wait out the remainder.
	half := now.Add(-30 * time.Minute)
	assert.Equal(t, 30*time.Minute, nextFireDelay(now, &half, interval, grace))
}

func TestApplyConfidenceGate(t *testing.T) {
	signals := []dto.AdvisorySignal{
		{Symbol: "SAP.DE", Direction: "BUY", Confidence: 80},
		{Symbol: "SAP.DE", Direction: "BUY", Confidence: 40},
		{Symbol: "TSLA", Direction: "SELL", Confidence: 30},
	}
	candidates := []dto.SuggestedOrder{
		{Symbol: "SAP.DE", OrderType: "limit_buy", Quantity: 5, TriggerPrice: 150},
		{Symbol: "TSLA", OrderType: "stop_loss", Quantity: 3, TriggerPrice: 180},
		{Symbol: "AAPL", OrderType: "limit_buy", Quantity: 1, TriggerPrice: 200},
	}

	kept, skips := applyConfidenceGate(candidates, signals, 60)

	// SAP's best signal (80) clears the floor, TSLA's best (30) does not,
	// and AAPL has no signal at all so it passes untouched.
	require.Len(t, kept, 2)
	assert.Equal(t, "SAP.DE", kept[0].Symbol)
	assert.Equal(t, "AAPL", kept[1].Symbol)
	require.Len(t, skips, 1)
	assert.Equal(t, "confidence", skips[0].Rule)
	assert.Equal(t, "TSLA", skips[0].Symbol)

	// A zero floor disables the gate.
	kept, skips = applyConfidenceGate(candidates, signals, 0)
	assert.Len(t, kept, 3)
	assert.Empty(t, skips)
}

func TestSizeOrdersBuysFromCashBudget(t *testing.T) {
	svc := &cycleService{cfg: safetyConfig(), log: logger.NewNop()}
	portfolio := &entity.Portfolio{CashBalance: 1000, Currency: "EUR"}

	sized := svc.sizeOrders([]dto.SuggestedOrder{
		{Symbol: "SAP.DE", OrderType: "limit_buy", TriggerPrice: 150, AutoGenerated: true},
	}, permissiveSettings(), portfolio, nil, nil)

	require.Len(t, sized, 1)
	// 6 x 150 = 900 plus the 2.25 fee still fits into 1000, 7 would not.
	assert.Equal(t, 6, sized[0].Quantity)
}

func TestSizeOrdersHonorsPositionWeightCap(t *testing.T) {
	svc := &cycleService{cfg: safetyConfig(), log: logger.NewNop()}
	settings := permissiveSettings()
	settings.MaxPositionPercent = 20
	portfolio := &entity.Portfolio{CashBalance: 1000, Currency: "EUR"}

	sized := svc.sizeOrders([]dto.SuggestedOrder{
		{Symbol: "SAP.DE", OrderType: "limit_buy", TriggerPrice: 150, AutoGenerated: true},
	}, settings, portfolio, nil, nil)

	require.Len(t, sized, 1)
	// Portfolio value 1000 with a 20% cap leaves a 200 budget: one share.
	assert.Equal(t, 1, sized[0].Quantity)
}

func TestSizeOrdersSellsHeldNetOfOpenOrders(t *testing.T) {
	svc := &cycleService{cfg: safetyConfig(), log: logger.NewNop()}
	positions := []entity.Position{{Symbol: "TSLA", Quantity: 10, AvgBuyPrice: 200}}
	openOrders := []entity.Order{{
		Symbol:       "TSLA",
		OrderType:    entity.OrderTypeStopLoss,
		Quantity:     4,
		TriggerPrice: 180,
		Status:       entity.OrderStatusActive,
	}}
	portfolio := &entity.Portfolio{CashBalance: 0, Currency: "EUR"}

	sized := svc.sizeOrders([]dto.SuggestedOrder{
		{Symbol: "TSLA", OrderType: "limit_sell", TriggerPrice: 250, AutoGenerated: true},
		{Symbol: "MSFT", OrderType: "limit_sell", TriggerPrice: 400, AutoGenerated: true},
	}, permissiveSettings(), portfolio, positions, openOrders)

	require.Len(t, sized, 2)
	assert.Equal(t, 6, sized[0].Quantity)
	// Nothing held: stays zero and is rejected downstream.
	assert.Equal(t, 0, sized[1].Quantity)
}

func TestSizeOrdersKeepsExplicitQuantities(t *testing.T) {
	svc := &cycleService{cfg: safetyConfig(), log: logger.NewNop()}
	portfolio := &entity.Portfolio{CashBalance: 10, Currency: "EUR"}

	sized := svc.sizeOrders([]dto.SuggestedOrder{
		{Symbol: "SAP.DE", OrderType: "limit_buy", Quantity: 500, TriggerPrice: 150},
	}, permissiveSettings(), portfolio, nil, nil)

	require.Len(t, sized, 1)
	assert.Equal(t, 500, sized[0].Quantity)
}

func TestTriggerManualCycleSingleFlight(t *testing.T) {
	svc := &cycleService{
		cfg:    safetyConfig(),
		log:    logger.NewNop(),
		wakeCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}

	require.NoError(t, svc.acquire())
	defer svc.release()

	err := svc.TriggerManualCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInFlight)
}

func TestBuildAdvisoryRequest(t *testing.T) {
	settings := permissiveSettings()
	settings.Strategy = "dividend growth"
	settings.RiskTolerance = "low"
	portfolio := &entity.Portfolio{CashBalance: 5000, Currency: "EUR"}
	positions := []entity.Position{{Symbol: "SAP.DE", Quantity: 10, AvgBuyPrice: 100, CurrentPrice: 110}}
	stocks := []dto.StockContext{{Symbol: "SAP.DE", Price: 110}}
	openOrders := []entity.Order{{
		Symbol:       "SAP.DE",
		OrderType:    entity.OrderTypeStopLoss,
		Quantity:     5,
		TriggerPrice: 95,
		Status:       entity.OrderStatusActive,
	}}
	signals := []entity.Signal{{Symbol: "SAP.DE", Direction: entity.SignalDirectionBuy, Confidence: 72}}

	req := buildAdvisoryRequest(settings, portfolio, stocks, positions, openOrders, signals, nil)

	assert.Equal(t, "dividend growth", req.Strategy)
	assert.Equal(t, "low", req.RiskTolerance)
	assert.Equal(t, 5000.0, req.Cash)
	assert.Equal(t, "EUR", req.Currency)
	// 5000 cash plus 10 shares at the 110 market price.
	assert.Equal(t, 6100.0, req.PortfolioValue)
	require.Len(t, req.Positions, 1)
	assert.InDelta(t, 10.0, req.Positions[0].ProfitPct, 1e-9)
	require.Len(t, req.OpenOrders, 1)
	assert.Equal(t, "stop_loss", req.OpenOrders[0].OrderType)
	require.Len(t, req.RecentSignals, 1)
	assert.Equal(t, "BUY", req.RecentSignals[0].Direction)
}
