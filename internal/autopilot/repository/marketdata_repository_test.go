package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-autopilot/internal/autopilot/config"
	"stock-autopilot/pkg/logger"
)

const chartPayload = `{
  "chart": {
    "result": [
      {
        "meta": {
          "currency": "EUR",
          "symbol": "SAP.DE",
          "exchangeName": "GER",
          "longName": "SAP SE",
          "regularMarketPrice": 151.5,
          "chartPreviousClose": 150.0,
          "fiftyTwoWeekHigh": 180.0,
          "fiftyTwoWeekLow": 120.0
        },
        "timestamp": [1755500400, 1755586800, 1755673200],
        "indicators": {
          "quote": [
            {
              "open":   [149.0, null, 151.0],
              "high":   [150.5, null, 152.0],
              "low":    [148.5, null, 150.2],
              "close":  [150.0, null, 151.5],
              "volume": [120000, null, null]
            }
          ]
        }
      }
    ],
    "error": null
  }
}`

func newMarketDataConfig(baseURL string) *config.Config {
	return &config.Config{
		MarketData: config.MarketData{
			BaseURL:             baseURL,
			MaxRequestPerMinute: 60000,
			CacheTTL:            time.Minute,
		},
	}
}

func TestGetQuoteParsesChartMeta(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, chartPayload)
	}))
	defer server.Close()

	repo, err := NewMarketDataRepository(newMarketDataConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	quote, err := repo.GetQuote(context.Background(), "SAP.DE")
	require.NoError(t, err)
	require.NotNil(t, quote)

	assert.Equal(t, "SAP.DE", quote.Symbol)
	assert.Equal(t, "SAP SE", quote.Name)
	assert.Equal(t, 151.5, quote.Price)
	assert.InDelta(t, 1.5, quote.Change, 1e-9)
	assert.InDelta(t, 1.0, quote.ChangePercent, 1e-9)
	assert.Equal(t, "EUR", quote.Currency)
	assert.Equal(t, 180.0, quote.FiftyTwoWeekHigh)
	assert.Equal(t, 120.0, quote.FiftyTwoWeekLow)
	assert.False(t, quote.IsFallback)
}

func TestGetQuoteServesFromCache(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, chartPayload)
	}))
	defer server.Close()

	repo, err := NewMarketDataRepository(newMarketDataConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	_, err = repo.GetQuote(context.Background(), "SAP.DE")
	require.NoError(t, err)
	_, err = repo.GetQuote(context.Background(), "SAP.DE")
	require.NoError(t, err)

	assert.Equal(t, int64(1), hits.Load())
}

func TestGetQuoteFallsBackWhenSourceDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	repo, err := NewMarketDataRepository(newMarketDataConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	quote, err := repo.GetQuote(context.Background(), "SAP.DE")
	require.NoError(t, err)
	require.NotNil(t, quote)

	assert.True(t, quote.IsFallback)
	assert.Equal(t, "SAP.DE", quote.Symbol)
	assert.Zero(t, quote.Price)
}

func TestGetQuoteUnknownSymbolReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	}))
	defer server.Close()

	repo, err := NewMarketDataRepository(newMarketDataConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	quote, err := repo.GetQuote(context.Background(), "NOPE.XX")
	require.NoError(t, err)
	assert.Nil(t, quote)
}

func TestGetHistoricalDataSkipsNullBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "1y", req.URL.Query().Get("range"))
		assert.Equal(t, "1d", req.URL.Query().Get("interval"))
		fmt.Fprint(w, chartPayload)
	}))
	defer server.Close()

	repo, err := NewMarketDataRepository(newMarketDataConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	candles, err := repo.GetHistoricalData(context.Background(), "SAP.DE", "1y", "1d")
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, 150.0, candles[0].Close)
	assert.Equal(t, 120000.0, candles[0].Volume)
	assert.Equal(t, 151.5, candles[1].Close)
	assert.Zero(t, candles[1].Volume)
}

func TestGetHistoricalDataUnknownSymbolReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	}))
	defer server.Close()

	repo, err := NewMarketDataRepository(newMarketDataConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	candles, err := repo.GetHistoricalData(context.Background(), "NOPE.XX", "1y", "1d")
	require.NoError(t, err)
	assert.Empty(t, candles)
}
