package dto

import "time"

// Quote is a point-in-time snapshot of one instrument.
type Quote struct {
	Symbol           string               `json:"symbol"`
	Name             string               `json:"name"`
	Price            float64              `json:"price"`
	Change           float64              `json:"change"`
	ChangePercent    float64              `json:"change_percent"`
	Currency         string               `json:"currency"`
	Exchange         string               `json:"exchange"`
	FiftyTwoWeekHigh float64              `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow  float64              `json:"fifty_two_week_low,omitempty"`
	IsFallback       bool                 `json:"is_fallback"`
	Indicators       *TechnicalIndicators `json:"indicators,omitempty"`
	FetchedAt        time.Time            `json:"fetched_at"`
}

// Candle is one daily bar of historical data.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// ChartAPIResponse mirrors the chart endpoint payload.
type ChartAPIResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type ChartResult struct {
	Meta       ChartMeta `json:"meta"`
	Timestamp  []int64   `json:"timestamp"`
	Indicators struct {
		Quote []ChartQuote `json:"quote"`
	} `json:"indicators"`
}

type ChartMeta struct {
	Currency           string  `json:"currency"`
	Symbol             string  `json:"symbol"`
	ExchangeName       string  `json:"exchangeName"`
	LongName           string  `json:"longName"`
	ShortName          string  `json:"shortName"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	PreviousClose      float64 `json:"chartPreviousClose"`
	FiftyTwoWeekHigh   float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow    float64 `json:"fiftyTwoWeekLow"`
}

type ChartQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}
