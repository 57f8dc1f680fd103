// Package indicator derives technical indicators from daily OHLCV history.
// Every function is pure; a nil result always means the window was too
// short, never a substitute value.
package indicator

import (
	"math"

	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/pkg/utils"
)

// MinSamples is the floor below which no indicator is computed at all.
const MinSamples = 15

const (
	rsiPeriod        = 14
	atrPeriod        = 14
	bollingerPeriod  = 20
	bollingerMult    = 2.0
	volatilityPeriod = 20
	volumePeriod     = 20
	macdFast         = 12
	macdSlow         = 26
	macdSignalPeriod = 9
	macdMinSamples   = 35
	tradingDaysYear  = 252
)

// Empty returns the all-null indicator object used when history is too thin.
func Empty() *dto.TechnicalIndicators {
	return &dto.TechnicalIndicators{}
}

// Compute derives the full indicator set from candles (oldest first).
// currentPrice is the live quote used for %B and the 52-week percentile;
// when it is zero the last close stands in.
func Compute(candles []dto.Candle, currentPrice float64) *dto.TechnicalIndicators {
	closes := make([]float64, 0, len(candles))
	highs := make([]float64, 0, len(candles))
	lows := make([]float64, 0, len(candles))
	volumes := make([]float64, 0, len(candles))
	for _, c := range candles {
		if c.Close <= 0 {
			continue
		}
		closes = append(closes, c.Close)
		highs = append(highs, c.High)
		lows = append(lows, c.Low)
		volumes = append(volumes, c.Volume)
	}

	if len(closes) < MinSamples {
		return Empty()
	}

	price := currentPrice
	if price <= 0 {
		price = closes[len(closes)-1]
	}

	ind := &dto.TechnicalIndicators{
		RSI14:  RSI(closes, rsiPeriod),
		SMA20:  SMA(closes, 20),
		SMA50:  SMA(closes, 50),
		SMA200: SMA(closes, 200),
		EMA12:  EMA(closes, macdFast),
		EMA26:  EMA(closes, macdSlow),
		ATR14:  ATR(highs, lows, closes, atrPeriod),
	}

	ind.MACD, ind.MACDSignal, ind.MACDHistogram = MACD(closes)

	upper, middle, lower := Bollinger(closes, bollingerPeriod, bollingerMult)
	ind.BollingerUpper = upper
	ind.BollingerMiddle = middle
	ind.BollingerLower = lower
	ind.BollingerPercentB = PercentB(price, upper, lower)

	high52, low52 := rangeExtremes(highs, lows)
	ind.High52w = high52
	ind.Low52w = low52
	ind.RangePercentile52w = RangePercentile(price, high52, low52)

	ind.AvgVolume20 = SMA(volumes, volumePeriod)
	ind.VolumeRatio = volumeRatio(volumes, ind.AvgVolume20)

	ind.PriceChange5d = priceChange(closes, 5)
	ind.PriceChange20d = priceChange(closes, 20)
	ind.PriceChange60d = priceChange(closes, 60)

	ind.Volatility20 = AnnualizedVolatility(closes, volatilityPeriod)

	return ind
}

// SMA returns the arithmetic mean of the last period values.
func SMA(values []float64, period int) *float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return utils.ToPointer(sum / float64(period))
}

// EMA returns the latest exponential moving average, seeded with the SMA of
// the first period values, k = 2/(period+1).
func EMA(values []float64, period int) *float64 {
	series := emaSeries(values, period)
	if series == nil {
		return nil
	}
	return utils.ToPointer(series[len(series)-1])
}

// emaSeries returns the EMA at every index from period-1 onward.
func emaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	k := 2.0 / float64(period+1)

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)

	series := make([]float64, 0, len(values)-period+1)
	series = append(series, seed)
	ema := seed
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
		series = append(series, ema)
	}
	return series
}

// RSI computes the Wilder-smoothed relative strength index. A zero average
// loss yields exactly 100.
func RSI(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss += -delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return utils.ToPointer(100.0)
	}
	rs := avgGain / avgLoss
	return utils.ToPointer(100.0 - 100.0/(1.0+rs))
}

// MACD returns the MACD line (EMA12-EMA26), its 9-period signal EMA and the
// histogram. All three are nil below 35 samples.
func MACD(closes []float64) (macd, signal, histogram *float64) {
	if len(closes) < macdMinSamples {
		return nil, nil, nil
	}

	fast := emaSeries(closes, macdFast)
	slow := emaSeries(closes, macdSlow)

	// Align the two series on the last len(slow) points.
	offset := len(fast) - len(slow)
	macdSeries := make([]float64, len(slow))
	for i := range slow {
		macdSeries[i] = fast[i+offset] - slow[i]
	}

	signalSeries := emaSeries(macdSeries, macdSignalPeriod)
	if signalSeries == nil {
		return nil, nil, nil
	}

	m := macdSeries[len(macdSeries)-1]
	s := signalSeries[len(signalSeries)-1]
	return utils.ToPointer(m), utils.ToPointer(s), utils.ToPointer(m - s)
}

// Bollinger returns the 20-period mean band with mult standard deviations
// (population) around it.
func Bollinger(closes []float64, period int, mult float64) (upper, middle, lower *float64) {
	if period <= 0 || len(closes) < period {
		return nil, nil, nil
	}
	window := closes[len(closes)-period:]

	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(period)

	variance := 0.0
	for _, v := range window {
		variance += (v - mean) * (v - mean)
	}
	stdev := math.Sqrt(variance / float64(period))

	return utils.ToPointer(mean + mult*stdev), utils.ToPointer(mean), utils.ToPointer(mean - mult*stdev)
}

// PercentB locates price inside the bands; coincident bands pin it to 0.5.
func PercentB(price float64, upper, lower *float64) *float64 {
	if upper == nil || lower == nil {
		return nil
	}
	if *upper == *lower {
		return utils.ToPointer(0.5)
	}
	return utils.ToPointer((price - *lower) / (*upper - *lower))
}

// ATR computes the Wilder-smoothed average true range.
func ATR(highs, lows, closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period+1 || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil
	}

	trs := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		tr := highs[i] - lows[i]
		if v := math.Abs(highs[i] - closes[i-1]); v > tr {
			tr = v
		}
		if v := math.Abs(lows[i] - closes[i-1]); v > tr {
			tr = v
		}
		trs = append(trs, tr)
	}

	atr := 0.0
	for _, tr := range trs[:period] {
		atr += tr
	}
	atr /= float64(period)
	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return utils.ToPointer(atr)
}

// AnnualizedVolatility is the standard deviation of the last period log
// returns scaled by sqrt(252), in percent.
func AnnualizedVolatility(closes []float64, period int) *float64 {
	if period <= 1 || len(closes) < period+1 {
		return nil
	}
	window := closes[len(closes)-period-1:]

	returns := make([]float64, 0, period)
	for i := 1; i < len(window); i++ {
		if window[i-1] <= 0 || window[i] <= 0 {
			return nil
		}
		returns = append(returns, math.Log(window[i]/window[i-1]))
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdev := math.Sqrt(variance / float64(len(returns)-1))

	return utils.ToPointer(stdev * math.Sqrt(tradingDaysYear) * 100)
}

// RangePercentile positions price inside the 52-week range in percent.
// Values above 100 mean a fresh high and are preserved, not clamped.
func RangePercentile(price float64, high, low *float64) *float64 {
	if high == nil || low == nil || *high == *low {
		return nil
	}
	return utils.ToPointer((price - *low) / (*high - *low) * 100)
}

func rangeExtremes(highs, lows []float64) (*float64, *float64) {
	if len(highs) == 0 || len(lows) == 0 {
		return nil, nil
	}
	high := highs[0]
	low := lows[0]
	for _, h := range highs[1:] {
		if h > high {
			high = h
		}
	}
	for _, l := range lows[1:] {
		if l > 0 && l < low {
			low = l
		}
	}
	return utils.ToPointer(high), utils.ToPointer(low)
}

func volumeRatio(volumes []float64, avg *float64) *float64 {
	if avg == nil || *avg <= 0 || len(volumes) == 0 {
		return nil
	}
	return utils.ToPointer(volumes[len(volumes)-1] / *avg)
}

func priceChange(closes []float64, days int) *float64 {
	if len(closes) <= days {
		return nil
	}
	base := closes[len(closes)-1-days]
	if base == 0 {
		return nil
	}
	return utils.ToPointer((closes[len(closes)-1] - base) / base * 100)
}
