package dto

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// AdvisoryRequest is everything the advisory model sees for one cycle.
type AdvisoryRequest struct {
	Strategy           string            `json:"strategy"`
	RiskTolerance      string            `json:"risk_tolerance"`
	CustomInstructions string            `json:"custom_instructions,omitempty"`
	Cash               float64           `json:"cash"`
	Currency           string            `json:"currency"`
	PortfolioValue     float64           `json:"portfolio_value"`
	Stocks             []StockContext    `json:"stocks"`
	Positions          []PositionContext `json:"positions"`
	OpenOrders         []OrderContext    `json:"open_orders"`
	RecentSignals      []SignalContext   `json:"recent_signals"`
	NewsDigest         []SymbolNews      `json:"news_digest,omitempty"`
}

// StockContext is one enriched instrument in the advisory request.
type StockContext struct {
	Symbol        string               `json:"symbol"`
	Name          string               `json:"name"`
	Price         float64              `json:"price"`
	ChangePercent float64              `json:"change_percent"`
	Currency      string               `json:"currency"`
	OnWatchlist   bool                 `json:"on_watchlist"`
	Indicators    *TechnicalIndicators `json:"indicators,omitempty"`
}

type PositionContext struct {
	Symbol       string  `json:"symbol"`
	Quantity     int     `json:"quantity"`
	AvgBuyPrice  float64 `json:"avg_buy_price"`
	CurrentPrice float64 `json:"current_price"`
	ProfitPct    float64 `json:"profit_pct"`
}

type OrderContext struct {
	Symbol       string  `json:"symbol"`
	OrderType    string  `json:"order_type"`
	Quantity     int     `json:"quantity"`
	TriggerPrice float64 `json:"trigger_price"`
	Status       string  `json:"status"`
}

type SignalContext struct {
	Symbol     string    `json:"symbol"`
	Direction  string    `json:"direction"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// AdvisoryResult is the parsed advisory response.
type AdvisoryResult struct {
	Signals         []AdvisorySignal `json:"signals"`
	SuggestedOrders []SuggestedOrder `json:"suggestedOrders"`
	MarketSummary   string           `json:"marketSummary"`
	Recommendations []string         `json:"recommendations"`
	Warnings        []string         `json:"warnings"`
}

// AdvisorySignal is one recommendation as emitted by the model.
type AdvisorySignal struct {
	Symbol          string   `json:"symbol"`
	Direction       string   `json:"direction"`
	Confidence      float64  `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	IdealEntryPrice *float64 `json:"idealEntryPrice,omitempty"`
	TargetPrice     *float64 `json:"targetPrice,omitempty"`
	StopLoss        *float64 `json:"stopLoss,omitempty"`
	RiskLevel       string   `json:"riskLevel"`
}

// SuggestedOrder is an untrusted order proposal. Models drift on field
// names, so UnmarshalJSON accepts the common aliases and both quoted and
// bare numbers.
type SuggestedOrder struct {
	Symbol        string  `json:"symbol"`
	OrderType     string  `json:"orderType"`
	Quantity      int     `json:"quantity"`
	TriggerPrice  float64 `json:"triggerPrice"`
	Reasoning     string  `json:"reasoning"`
	AutoGenerated bool    `json:"autoGenerated,omitempty"`
}

func (o *SuggestedOrder) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	o.Symbol = strings.ToUpper(firstString(raw, "symbol", "ticker"))
	o.OrderType = normalizeOrderType(firstString(raw, "orderType", "order_type", "type"))
	o.Quantity = int(firstNumber(raw, "quantity", "qty", "amount"))
	o.TriggerPrice = firstNumber(raw, "triggerPrice", "trigger_price", "price", "limitPrice", "limit_price")
	o.Reasoning = firstString(raw, "reasoning", "reason")
	return nil
}

func firstString(raw map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		msg, ok := raw[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(msg, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(raw map[string]json.RawMessage, keys ...string) float64 {
	for _, key := range keys {
		msg, ok := raw[key]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(msg, &f); err == nil {
			return f
		}
		var s string
		if err := json.Unmarshal(msg, &s); err == nil {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// normalizeOrderType maps the spelling variants (LIMIT-BUY, limit buy,
// limitBuy) onto the canonical snake_case values.
func normalizeOrderType(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	switch s {
	case "limitbuy":
		return "limit_buy"
	case "limitsell":
		return "limit_sell"
	case "stopbuy":
		return "stop_buy"
	case "stoploss", "stop_sell", "stopsell":
		return "stop_loss"
	}
	return s
}
