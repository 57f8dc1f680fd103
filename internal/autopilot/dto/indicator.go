package dto

// TechnicalIndicators carries the derived metrics for one symbol. Every
// field is a pointer: nil means the history window was too short, never a
// fabricated value.
type TechnicalIndicators struct {
	RSI14              *float64 `json:"rsi_14,omitempty"`
	SMA20              *float64 `json:"sma_20,omitempty"`
	SMA50              *float64 `json:"sma_50,omitempty"`
	SMA200             *float64 `json:"sma_200,omitempty"`
	EMA12              *float64 `json:"ema_12,omitempty"`
	EMA26              *float64 `json:"ema_26,omitempty"`
	MACD               *float64 `json:"macd,omitempty"`
	MACDSignal         *float64 `json:"macd_signal,omitempty"`
	MACDHistogram      *float64 `json:"macd_histogram,omitempty"`
	BollingerUpper     *float64 `json:"bollinger_upper,omitempty"`
	BollingerMiddle    *float64 `json:"bollinger_middle,omitempty"`
	BollingerLower     *float64 `json:"bollinger_lower,omitempty"`
	BollingerPercentB  *float64 `json:"bollinger_percent_b,omitempty"`
	High52w            *float64 `json:"high_52w,omitempty"`
	Low52w             *float64 `json:"low_52w,omitempty"`
	RangePercentile52w *float64 `json:"range_percentile_52w,omitempty"`
	AvgVolume20        *float64 `json:"avg_volume_20,omitempty"`
	VolumeRatio        *float64 `json:"volume_ratio,omitempty"`
	PriceChange5d      *float64 `json:"price_change_5d,omitempty"`
	PriceChange20d     *float64 `json:"price_change_20d,omitempty"`
	PriceChange60d     *float64 `json:"price_change_60d,omitempty"`
	ATR14              *float64 `json:"atr_14,omitempty"`
	Volatility20       *float64 `json:"volatility_20,omitempty"`
}
