package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stock-autopilot/internal/autopilot/config"
	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/pkg/logger"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MarketDataRepository provides quotes and daily candles for the symbols the
// autopilot trades. Unknown symbols yield nil data, not an error, so a stale
// watchlist entry cannot abort a whole cycle.
type MarketDataRepository interface {
	GetQuote(ctx context.Context, symbol string) (*dto.Quote, error)
	GetHistoricalData(ctx context.Context, symbol string, dataRange string, interval string) ([]dto.Candle, error)
}

type marketDataRepository struct {
	cfg            *config.Config
	log            *logger.Logger
	httpClient     *http.Client
	requestLimiter *rate.Limiter
	quoteCache     *cache.Cache
}

// NewMarketDataRepository creates a chart API backed market data repository.
func NewMarketDataRepository(cfg *config.Config, log *logger.Logger) (MarketDataRepository, error) {
	if cfg.MarketData.MaxRequestPerMinute <= 0 {
		return nil, fmt.Errorf("market data max_request_per_minute must be positive, got %d", cfg.MarketData.MaxRequestPerMinute)
	}
	secondsPerRequest := time.Minute / time.Duration(cfg.MarketData.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)

	cacheTTL := cfg.MarketData.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}

	return &marketDataRepository{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		requestLimiter: requestLimiter,
		quoteCache:     cache.New(cacheTTL, 2*cacheTTL),
	}, nil
}

func (r *marketDataRepository) GetQuote(ctx context.Context, symbol string) (*dto.Quote, error) {
	if cached, found := r.quoteCache.Get(symbol); found {
		if quote, ok := cached.(*dto.Quote); ok {
			return quote, nil
		}
	}

	result, err := r.fetchChart(ctx, symbol, "5d", "1d")
	if err != nil {
		r.log.WarnContext(ctx, "Live quote unavailable, serving fallback", logger.StringField("symbol", symbol), logger.ErrorField(err))
		return r.fallbackQuote(symbol), nil
	}
	if result == nil {
		return nil, nil
	}

	quote := r.buildQuote(symbol, result)
	r.quoteCache.Set(symbol, quote, cache.DefaultExpiration)
	return quote, nil
}

func (r *marketDataRepository) GetHistoricalData(ctx context.Context, symbol string, dataRange string, interval string) ([]dto.Candle, error) {
	result, err := r.fetchChart(ctx, symbol, dataRange, interval)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return chartCandles(result), nil
}

// fetchChart returns nil for unknown symbols and an error for transport or
// server failures.
func (r *marketDataRepository) fetchChart(ctx context.Context, symbol string, dataRange string, interval string) (*dto.ChartResult, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s", r.cfg.MarketData.BaseURL, symbol, dataRange, interval)
	body, statusCode, err := r.sendRequest(ctx, url)
	if err != nil {
		return nil, err
	}
	if statusCode == http.StatusNotFound {
		r.log.DebugContext(ctx, "Symbol not found on chart API", logger.StringField("symbol", symbol))
		return nil, nil
	}
	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("chart API returned status %d for %s", statusCode, symbol)
	}

	var response dto.ChartAPIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode chart response for %s: %w", symbol, err)
	}
	if response.Chart.Error != nil {
		if response.Chart.Error.Code == "Not Found" {
			return nil, nil
		}
		return nil, fmt.Errorf("chart API error for %s: %s", symbol, response.Chart.Error.Description)
	}
	if len(response.Chart.Result) == 0 {
		return nil, nil
	}
	return &response.Chart.Result[0], nil
}

func (r *marketDataRepository) sendRequest(ctx context.Context, url string) ([]byte, int, error) {
	fields := []zap.Field{
		zap.String("url", url),
		zap.Int("max_request_per_minute", r.cfg.MarketData.MaxRequestPerMinute),
	}

	if err := r.requestLimiter.Wait(ctx); err != nil {
		fields = append(fields, zap.Error(err))
		r.log.ErrorContext(ctx, "Failed to wait for request limit", fields...)
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fields = append(fields, zap.Error(err))
		r.log.ErrorContext(ctx, "Failed to create new http request", fields...)
		return nil, 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		fields = append(fields, zap.Error(err))
		r.log.ErrorContext(ctx, "Failed to send request to chart API", fields...)
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fields = append(fields, zap.Error(err))
		r.log.ErrorContext(ctx, "Failed to read response body from chart API", fields...)
		return nil, 0, err
	}

	return body, resp.StatusCode, nil
}

func (r *marketDataRepository) buildQuote(symbol string, result *dto.ChartResult) *dto.Quote {
	meta := result.Meta

	name := meta.LongName
	if name == "" {
		name = meta.ShortName
	}
	if name == "" {
		name = symbol
	}

	price := meta.RegularMarketPrice
	if price == 0 {
		if candles := chartCandles(result); len(candles) > 0 {
			price = candles[len(candles)-1].Close
		}
	}

	change := 0.0
	changePercent := 0.0
	if meta.PreviousClose > 0 && price > 0 {
		change = price - meta.PreviousClose
		changePercent = change / meta.PreviousClose * 100
	}

	return &dto.Quote{
		Symbol:           symbol,
		Name:             name,
		Price:            price,
		Change:           change,
		ChangePercent:    changePercent,
		Currency:         meta.Currency,
		Exchange:         meta.ExchangeName,
		FiftyTwoWeekHigh: meta.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:  meta.FiftyTwoWeekLow,
		FetchedAt:        time.Now(),
	}
}

// fallbackQuote stands in when the chart API is unreachable. The watcher must
// never trigger an execution off one of these, so it is flagged.
func (r *marketDataRepository) fallbackQuote(symbol string) *dto.Quote {
	return &dto.Quote{
		Symbol:     symbol,
		Name:       symbol,
		Currency:   "EUR",
		IsFallback: true,
		FetchedAt:  time.Now(),
	}
}

// chartCandles flattens the chart arrays into candles, dropping bars with
// missing fields. The API pads holiday rows with nulls.
func chartCandles(result *dto.ChartResult) []dto.Candle {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	quote := result.Indicators.Quote[0]

	candles := make([]dto.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			break
		}
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		candle := dto.Candle{
			Timestamp: time.Unix(ts, 0),
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			candle.Volume = *quote.Volume[i]
		}
		candles = append(candles, candle)
	}
	return candles
}
