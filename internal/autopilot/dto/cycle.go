package dto

import "time"

// SkipDecision records why a candidate order was rejected, and by which rule.
type SkipDecision struct {
	Symbol    string `json:"symbol"`
	OrderType string `json:"order_type"`
	Rule      string `json:"rule"`
	Reason    string `json:"reason"`
}

// CycleSummary aggregates one advisory cycle for logging and notification.
type CycleSummary struct {
	StartedAt      time.Time      `json:"started_at"`
	Duration       time.Duration  `json:"duration"`
	SymbolsScanned int            `json:"symbols_scanned"`
	SignalCount    int            `json:"signal_count"`
	OrdersCreated  []OrderContext `json:"orders_created"`
	Skipped        []SkipDecision `json:"skipped"`
	MarketSummary  string         `json:"market_summary,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
	Suggestions    []string       `json:"suggestions,omitempty"`
}
