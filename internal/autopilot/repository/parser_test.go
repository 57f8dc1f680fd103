package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-autopilot/internal/autopilot/dto"
)

func TestParseAdvisoryTextWellFormed(t *testing.T) {
	raw := "Here is my assessment:\n```json\n" +
		`{"signals": [{"symbol": "aapl", "direction": "buy", "confidence": 82, "reasoning": "momentum", "riskLevel": "Medium"}],` +
		`"suggestedOrders": [{"symbol": "AAPL", "orderType": "limit_buy", "quantity": 5, "triggerPrice": 150}],` +
		`"marketSummary": "constructive"}` + "\n```\nLet me know."

	result, warnings := ParseAdvisoryText(raw)
	require.NotNil(t, result)
	assert.Empty(t, warnings)

	require.Len(t, result.Signals, 1)
	assert.Equal(t, "AAPL", result.Signals[0].Symbol)
	assert.Equal(t, "BUY", result.Signals[0].Direction)
	assert.Equal(t, "medium", result.Signals[0].RiskLevel)
	assert.Equal(t, 82.0, result.Signals[0].Confidence)

	require.Len(t, result.SuggestedOrders, 1)
	assert.Equal(t, "AAPL", result.SuggestedOrders[0].Symbol)
	assert.Equal(t, "limit_buy", result.SuggestedOrders[0].OrderType)
	assert.Equal(t, 5, result.SuggestedOrders[0].Quantity)
	assert.Equal(t, 150.0, result.SuggestedOrders[0].TriggerPrice)

	assert.Equal(t, "constructive", result.MarketSummary)
}

func TestParseAdvisoryTextRepairsMissingBrace(t *testing.T) {
	raw := `{"signals": [{"symbol": "SAP", "direction": "SELL", "confidence": 70}]`

	result, warnings := ParseAdvisoryText(raw)
	require.NotNil(t, result)
	require.Len(t, result.Signals, 1)
	assert.Equal(t, "SAP", result.Signals[0].Symbol)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "repaired")
}

func TestParseAdvisoryTextRepairsDanglingKey(t *testing.T) {
	raw := `{"signals": [{"symbol": "SAP", "direction": "HOLD", "confidence": 55}], "marketSummary":`

	result, warnings := ParseAdvisoryText(raw)
	require.NotNil(t, result)
	require.Len(t, result.Signals, 1)
	assert.Equal(t, "HOLD", result.Signals[0].Direction)
	assert.NotEmpty(t, warnings)
}

func TestParseAdvisoryTextRepairsUnclosedPayload(t *testing.T) {
	// No closing brace anywhere: the dangling key must be stripped before
	// the missing brace is appended.
	raw := `{"signals": [], "marketSummary": "cautious", "recommendations":`

	result, warnings := ParseAdvisoryText(raw)
	require.NotNil(t, result)
	assert.Equal(t, "cautious", result.MarketSummary)
	assert.NotEmpty(t, warnings)
}

func TestParseAdvisoryTextRepairsTrailingComma(t *testing.T) {
	raw := `{"signals": [{"symbol": "ASML", "direction": "BUY", "confidence": 91},`

	result, warnings := ParseAdvisoryText(raw)
	require.NotNil(t, result)
	require.Len(t, result.Signals, 1)
	assert.Equal(t, "ASML", result.Signals[0].Symbol)
	assert.NotEmpty(t, warnings)
}

func TestParseAdvisoryTextUnbalancedQuotesDegradesToEmpty(t *testing.T) {
	raw := `{"signals": [{"symbol": "AAPL", "reasoning": "strong momentum`

	result, warnings := ParseAdvisoryText(raw)
	require.NotNil(t, result)
	assert.Empty(t, result.Signals)
	assert.Empty(t, result.SuggestedOrders)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "could not be parsed")
}

func TestParseAdvisoryTextNoJSONObject(t *testing.T) {
	result, warnings := ParseAdvisoryText("I am unable to provide an assessment right now.")
	require.NotNil(t, result)
	assert.Empty(t, result.Signals)
	assert.NotEmpty(t, warnings)
}

func TestParseAdvisoryTextAliasFields(t *testing.T) {
	raw := `{"suggestedOrders": [{"ticker": "sie", "type": "LIMIT-BUY", "qty": "3", "limitPrice": "188.40", "reason": "breakout"}]}`

	result, warnings := ParseAdvisoryText(raw)
	require.NotNil(t, result)
	assert.Empty(t, warnings)

	require.Len(t, result.SuggestedOrders, 1)
	ord := result.SuggestedOrders[0]
	assert.Equal(t, "SIE", ord.Symbol)
	assert.Equal(t, "limit_buy", ord.OrderType)
	assert.Equal(t, 3, ord.Quantity)
	assert.InDelta(t, 188.40, ord.TriggerPrice, 1e-9)
	assert.Equal(t, "breakout", ord.Reasoning)
}

func TestRepairJSONPayloadBalancedInputIsNotRepairable(t *testing.T) {
	// Balanced but invalid JSON is beyond bracket repair.
	_, ok := repairJSONPayload(`{"a": 1,}`)
	assert.False(t, ok)
}

func TestSynthesizeOrders(t *testing.T) {
	prices := map[string]float64{"AAPL": 150, "TSLA": 200}
	lastPrice := func(symbol string) float64 { return prices[symbol] }

	t.Run("keeps explicit orders untouched", func(t *testing.T) {
		result := &dto.AdvisoryResult{
			Signals:         []dto.AdvisorySignal{{Symbol: "AAPL", Direction: "BUY"}},
			SuggestedOrders: []dto.SuggestedOrder{{Symbol: "AAPL", OrderType: "limit_buy", Quantity: 2, TriggerPrice: 140}},
		}
		orders := SynthesizeOrders(result, lastPrice)
		require.Len(t, orders, 1)
		assert.Equal(t, 2, orders[0].Quantity)
		assert.False(t, orders[0].AutoGenerated)
	})

	t.Run("buy uses ideal entry price", func(t *testing.T) {
		entry := 145.0
		result := &dto.AdvisoryResult{
			Signals: []dto.AdvisorySignal{{Symbol: "AAPL", Direction: "BUY", IdealEntryPrice: &entry, Reasoning: "dip"}},
		}
		orders := SynthesizeOrders(result, lastPrice)
		require.Len(t, orders, 1)
		assert.Equal(t, "limit_buy", orders[0].OrderType)
		assert.Equal(t, 145.0, orders[0].TriggerPrice)
		assert.Equal(t, 0, orders[0].Quantity)
		assert.True(t, orders[0].AutoGenerated)
	})

	t.Run("buy falls back to last price", func(t *testing.T) {
		result := &dto.AdvisoryResult{
			Signals: []dto.AdvisorySignal{{Symbol: "AAPL", Direction: "BUY"}},
		}
		orders := SynthesizeOrders(result, lastPrice)
		require.Len(t, orders, 1)
		assert.Equal(t, 150.0, orders[0].TriggerPrice)
	})

	t.Run("sell uses stop loss then discounted last price", func(t *testing.T) {
		stop := 190.0
		result := &dto.AdvisoryResult{
			Signals: []dto.AdvisorySignal{
				{Symbol: "TSLA", Direction: "SELL", StopLoss: &stop},
				{Symbol: "AAPL", Direction: "SELL"},
			},
		}
		orders := SynthesizeOrders(result, lastPrice)
		require.Len(t, orders, 2)
		assert.Equal(t, "stop_loss", orders[0].OrderType)
		assert.Equal(t, 190.0, orders[0].TriggerPrice)
		assert.InDelta(t, 142.5, orders[1].TriggerPrice, 1e-9)
	})

	t.Run("hold signals and unknown prices synthesize nothing", func(t *testing.T) {
		result := &dto.AdvisoryResult{
			Signals: []dto.AdvisorySignal{
				{Symbol: "AAPL", Direction: "HOLD"},
				{Symbol: "NOPE", Direction: "BUY"},
			},
		}
		orders := SynthesizeOrders(result, lastPrice)
		assert.Empty(t, orders)
	})
}
