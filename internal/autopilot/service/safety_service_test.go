package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-autopilot/internal/autopilot/config"
	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/internal/entity"
	"stock-autopilot/pkg/logger"
)

func safetyConfig() *config.Config {
	return &config.Config{
		Fees: config.Fees{Minimum: 1.00, Percent: 0.25},
	}
}

func permissiveSettings() *entity.AutopilotSettings {
	return &entity.AutopilotSettings{
		MaxTradesPerCycle:  10,
		MaxPositionPercent: 100,
		MinCashReservePct:  0,
		AllowBuy:           true,
		AllowSell:          true,
		AllowNewPositions:  true,
		WatchlistOnly:      false,
	}
}

func buyOrder(symbol string, qty int, trigger float64) dto.SuggestedOrder {
	return dto.SuggestedOrder{Symbol: symbol, OrderType: "limit_buy", Quantity: qty, TriggerPrice: trigger}
}

func sellOrder(symbol string, qty int, trigger float64) dto.SuggestedOrder {
	return dto.SuggestedOrder{Symbol: symbol, OrderType: "stop_loss", Quantity: qty, TriggerPrice: trigger}
}

func TestTransactionFee(t *testing.T) {
	fees := config.Fees{Minimum: 1.00, Percent: 0.25}

	// Small notional hits the flat minimum.
	assert.Equal(t, 1.00, TransactionFee(fees, 100))
	// 5 x 150 = 750 notional: 0.25% beats the minimum.
	assert.InDelta(t, 1.875, TransactionFee(fees, 750), 1e-9)
}

func TestFilterCashReserveScenario(t *testing.T) {
	svc := NewSafetyService(safetyConfig(), logger.NewNop())

	settings := permissiveSettings()
	settings.MinCashReservePct = 10
	sctx := SafetyContext{Settings: settings, CashBalance: 1000}

	// 5 x 150 EUR costs 751.88 including fee, leaving a 24.8% reserve.
	approved, skipped := svc.Filter([]dto.SuggestedOrder{buyOrder("AAPL", 5, 150)}, sctx)
	require.Len(t, approved, 1)
	assert.Empty(t, skipped)

	settings.MinCashReservePct = 30
	approved, skipped = svc.Filter([]dto.SuggestedOrder{buyOrder("AAPL", 5, 150)}, sctx)
	assert.Empty(t, approved)
	require.Len(t, skipped, 1)
	assert.Equal(t, "cash_reserve", skipped[0].Rule)
	assert.Contains(t, skipped[0].Reason, "24.8%")
}

func TestFilterSameCycleDoubleSellRejected(t *testing.T) {
	svc := NewSafetyService(safetyConfig(), logger.NewNop())

	sctx := SafetyContext{
		Settings:    permissiveSettings(),
		CashBalance: 0,
		Positions:   []entity.Position{{Symbol: "TSLA", Quantity: 10, AvgBuyPrice: 200}},
	}

	approved, skipped := svc.Filter([]dto.SuggestedOrder{
		sellOrder("TSLA", 6, 180),
		sellOrder("TSLA", 6, 175),
	}, sctx)

	require.Len(t, approved, 1)
	assert.Equal(t, 6, approved[0].Quantity)
	require.Len(t, skipped, 1)
	assert.Equal(t, "shares", skipped[0].Rule)
	assert.Contains(t, skipped[0].Reason, "only 4 are available")
}

func TestFilterOpenOrdersReserveCash(t *testing.T) {
	svc := NewSafetyService(safetyConfig(), logger.NewNop())

	// An open buy of 4 x 200 reserves 802 including fee, leaving 198.
	sctx := SafetyContext{
		Settings:    permissiveSettings(),
		CashBalance: 1000,
		OpenOrders: []entity.Order{
			{Symbol: "SAP.DE", OrderType: entity.OrderTypeLimitBuy, Quantity: 4, TriggerPrice: 200, Status: entity.OrderStatusActive},
		},
	}

	approved, skipped := svc.Filter([]dto.SuggestedOrder{buyOrder("ASML.AS", 2, 150)}, sctx)
	assert.Empty(t, approved)
	require.Len(t, skipped, 1)
	assert.Equal(t, "cash", skipped[0].Rule)

	approved, skipped = svc.Filter([]dto.SuggestedOrder{buyOrder("ASML.AS", 1, 150)}, sctx)
	assert.Len(t, approved, 1)
	assert.Empty(t, skipped)
}

func TestFilterOpenSellOrdersReserveShares(t *testing.T) {
	svc := NewSafetyService(safetyConfig(), logger.NewNop())

	sctx := SafetyContext{
		Settings:    permissiveSettings(),
		CashBalance: 0,
		Positions:   []entity.Position{{Symbol: "TSLA", Quantity: 10, AvgBuyPrice: 200}},
		OpenOrders: []entity.Order{
			{Symbol: "TSLA", OrderType: entity.OrderTypeStopLoss, Quantity: 7, TriggerPrice: 180, Status: entity.OrderStatusActive},
		},
	}

	approved, skipped := svc.Filter([]dto.SuggestedOrder{sellOrder("TSLA", 4, 170)}, sctx)
	assert.Empty(t, approved)
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0].Reason, "only 3 are available")
}

func TestFilterTradeCapRejectsRemainder(t *testing.T) {
	svc := NewSafetyService(safetyConfig(), logger.NewNop())

	settings := permissiveSettings()
	settings.MaxTradesPerCycle = 1
	sctx := SafetyContext{Settings: settings, CashBalance: 100000}

	approved, skipped := svc.Filter([]dto.SuggestedOrder{
		buyOrder("AAPL", 1, 100),
		buyOrder("MSFT", 1, 100),
		buyOrder("NVDA", 1, 100),
	}, sctx)

	assert.Len(t, approved, 1)
	require.Len(t, skipped, 2)
	for _, s := range skipped {
		assert.Equal(t, "trade_cap", s.Rule)
	}
}

func TestFilterDirectionRules(t *testing.T) {
	svc := NewSafetyService(safetyConfig(), logger.NewNop())

	settings := permissiveSettings()
	settings.AllowBuy = false
	settings.AllowSell = false
	sctx := SafetyContext{
		Settings:    settings,
		CashBalance: 10000,
		Positions:   []entity.Position{{Symbol: "TSLA", Quantity: 10, AvgBuyPrice: 200}},
	}

	approved, skipped := svc.Filter([]dto.SuggestedOrder{
		buyOrder("AAPL", 1, 100),
		sellOrder("TSLA", 1, 180),
	}, sctx)

	assert.Empty(t, approved)
	require.Len(t, skipped, 2)
	assert.Equal(t, "direction", skipped[0].Rule)
	assert.Equal(t, "direction", skipped[1].Rule)
}

func TestFilterNewPositionAndWatchlistRules(t *testing.T) {
	svc := NewSafetyService(safetyConfig(), logger.NewNop())

	settings := permissiveSettings()
	settings.AllowNewPositions = false
	sctx := SafetyContext{
		Settings:    settings,
		CashBalance: 10000,
		Positions:   []entity.Position{{Symbol: "SAP.DE", Quantity: 5, AvgBuyPrice: 100}},
	}

	approved, skipped := svc.Filter([]dto.SuggestedOrder{
		buyOrder("AAPL", 1, 100),
		buyOrder("SAP.DE", 1, 100),
	}, sctx)
	require.Len(t, approved, 1)
	assert.Equal(t, "SAP.DE", approved[0].Symbol)
	require.Len(t, skipped, 1)
	assert.Equal(t, "new_position", skipped[0].Rule)

	settings = permissiveSettings()
	settings.WatchlistOnly = true
	sctx = SafetyContext{
		Settings:    settings,
		CashBalance: 10000,
		Positions:   []entity.Position{{Symbol: "SAP.DE", Quantity: 5, AvgBuyPrice: 100}},
		Watchlist:   []entity.WatchlistItem{{Symbol: "AAPL"}},
	}

	approved, skipped = svc.Filter([]dto.SuggestedOrder{
		buyOrder("AAPL", 1, 100),
		buyOrder("SAP.DE", 1, 100),
		buyOrder("NVDA", 1, 100),
	}, sctx)
	assert.Len(t, approved, 2)
	require.Len(t, skipped, 1)
	assert.Equal(t, "watchlist", skipped[0].Rule)
	assert.Equal(t, "NVDA", skipped[0].Symbol)
}

func TestFilterPositionWeightLimit(t *testing.T) {
	svc := NewSafetyService(safetyConfig(), logger.NewNop())

	settings := permissiveSettings()
	settings.MaxPositionPercent = 20
	sctx := SafetyContext{
		Settings:    settings,
		CashBalance: 5000,
		Positions:   []entity.Position{{Symbol: "SAP.DE", Quantity: 10, AvgBuyPrice: 100, CurrentPrice: 100}},
	}

	// Portfolio value 6000; existing 1000 + 300 = 21.7% > 20%.
	approved, skipped := svc.Filter([]dto.SuggestedOrder{buyOrder("SAP.DE", 3, 100)}, sctx)
	assert.Empty(t, approved)
	require.Len(t, skipped, 1)
	assert.Equal(t, "position_weight", skipped[0].Rule)

	// 1100 / 6000 = 18.3% stays under the limit.
	approved, skipped = svc.Filter([]dto.SuggestedOrder{buyOrder("SAP.DE", 1, 100)}, sctx)
	assert.Len(t, approved, 1)
	assert.Empty(t, skipped)
}

func TestFilterApprovalsShrinkAvailableCash(t *testing.T) {
	svc := NewSafetyService(safetyConfig(), logger.NewNop())

	sctx := SafetyContext{Settings: permissiveSettings(), CashBalance: 1000}

	// First buy reserves 501.25, the second identical one no longer fits.
	approved, skipped := svc.Filter([]dto.SuggestedOrder{
		buyOrder("AAPL", 5, 100),
		buyOrder("MSFT", 5, 100),
	}, sctx)

	require.Len(t, approved, 1)
	assert.Equal(t, "AAPL", approved[0].Symbol)
	require.Len(t, skipped, 1)
	assert.Equal(t, "cash", skipped[0].Rule)
	assert.Equal(t, "MSFT", skipped[0].Symbol)
}
