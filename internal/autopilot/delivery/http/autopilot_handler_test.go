package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stock-autopilot/internal/autopilot/config"
	"stock-autopilot/internal/autopilot/repository"
	"stock-autopilot/internal/autopilot/service"
	"stock-autopilot/internal/entity"
	"stock-autopilot/pkg/logger"
	"stock-autopilot/pkg/telegram"
)

type stubCycleService struct {
	triggerErr error
	reloads    int
}

func (s *stubCycleService) Start(ctx context.Context) {}

func (s *stubCycleService) Stop() {}

func (s *stubCycleService) TriggerManualCycle(ctx context.Context) error { return s.triggerErr }

func (s *stubCycleService) ReloadSettings() { s.reloads++ }

func newTestServer(t *testing.T) (*echo.Echo, *gorm.DB, *stubCycleService) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "autopilot.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&entity.Order{},
		&entity.Position{},
		&entity.Portfolio{},
		&entity.AutopilotLog{},
		&entity.AutopilotSettings{},
		&entity.AutopilotState{},
	))

	log := logger.NewNop()
	cfg := &config.Config{Fees: config.Fees{Minimum: 1.00, Percent: 0.25}}
	orderRepo := repository.NewOrderRepository(db)
	orderSvc := service.NewOrderService(
		cfg, log, db, orderRepo,
		repository.NewPositionRepository(db),
		repository.NewPortfolioRepository(db),
		repository.NewAutopilotLogRepository(db),
		telegram.NewNoop(),
	)

	cycle := &stubCycleService{}
	e := echo.New()
	apiV1 := e.Group("/api/v1")
	NewOrderHandler(orderSvc, orderRepo, log).RegisterRoutes(apiV1.Group("/orders"))
	NewAutopilotHandler(cycle, repository.NewSettingsRepository(db), repository.NewStateRepository(db), repository.NewAutopilotLogRepository(db), log).RegisterRoutes(apiV1.Group("/autopilot"))
	return e, db, cycle
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndListOrders(t *testing.T) {
	e, _, _ := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/v1/orders",
		`{"symbol": "sap.de", "name": "SAP SE", "order_type": "limit_buy", "quantity": 5, "trigger_price": 148.0}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created entity.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "SAP.DE", created.Symbol)
	assert.Equal(t, entity.OrderStatusActive, created.Status)
	assert.Equal(t, entity.OrderSourceManual, created.Source)

	rec = doRequest(e, http.MethodGet, "/api/v1/orders?status=active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []entity.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	rec = doRequest(e, http.MethodGet, "/api/v1/orders?status=executed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var executed []entity.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &executed))
	assert.Empty(t, executed)
}

func TestCreateOrderRejectsBadPayload(t *testing.T) {
	e, _, _ := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/v1/orders",
		`{"symbol": "SAP.DE", "order_type": "market", "quantity": 5, "trigger_price": 148.0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid order type")
}

func TestConfirmOrderStatusMapping(t *testing.T) {
	e, db, _ := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/v1/orders/9999/confirm", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	order := &entity.Order{
		Symbol:       "SAP.DE",
		OrderType:    entity.OrderTypeLimitBuy,
		Quantity:     1,
		TriggerPrice: 100,
		Status:       entity.OrderStatusActive,
		Source:       entity.OrderSourceManual,
	}
	require.NoError(t, db.Create(order).Error)

	// Already active: confirming again is a conflict.
	rec = doRequest(e, http.MethodPost, "/api/v1/orders/1/confirm", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelOrder(t *testing.T) {
	e, db, _ := newTestServer(t)

	order := &entity.Order{
		Symbol:       "SAP.DE",
		OrderType:    entity.OrderTypeLimitBuy,
		Quantity:     1,
		TriggerPrice: 100,
		Status:       entity.OrderStatusActive,
		Source:       entity.OrderSourceManual,
	}
	require.NoError(t, db.Create(order).Error)

	rec := doRequest(e, http.MethodDelete, "/api/v1/orders/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var cancelled entity.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, entity.OrderStatusCancelled, cancelled.Status)

	rec = doRequest(e, http.MethodDelete, "/api/v1/orders/1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateSettings(t *testing.T) {
	e, _, cycle := newTestServer(t)

	rec := doRequest(e, http.MethodPut, "/api/v1/autopilot/settings",
		`{"mode": "full_auto", "min_confidence": 75, "watchlist_only": false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings entity.AutopilotSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, entity.AutopilotModeFullAuto, settings.Mode)
	assert.Equal(t, 75.0, settings.MinConfidence)
	assert.False(t, settings.WatchlistOnly)
	// Untouched fields keep their defaults.
	assert.Equal(t, 60, settings.IntervalMinutes)
	assert.Equal(t, 1, cycle.reloads)

	rec = doRequest(e, http.MethodPut, "/api/v1/autopilot/settings", `{"mode": "yolo"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown mode")

	rec = doRequest(e, http.MethodPut, "/api/v1/autopilot/settings", `{"interval_minutes": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartStopToggleEnabled(t *testing.T) {
	e, db, cycle := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/v1/autopilot/start", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var settings entity.AutopilotSettings
	require.NoError(t, db.First(&settings, 1).Error)
	assert.True(t, settings.Enabled)
	assert.Equal(t, 1, cycle.reloads)

	// Starting twice is idempotent and does not wake the scheduler again.
	rec = doRequest(e, http.MethodPost, "/api/v1/autopilot/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, cycle.reloads)

	rec = doRequest(e, http.MethodPost, "/api/v1/autopilot/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, db.First(&settings, 1).Error)
	assert.False(t, settings.Enabled)
	assert.Equal(t, 2, cycle.reloads)
}

func TestTriggerCycle(t *testing.T) {
	e, _, cycle := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/v1/autopilot/cycle", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	cycle.triggerErr = service.ErrCycleInFlight
	rec = doRequest(e, http.MethodPost, "/api/v1/autopilot/cycle", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetState(t *testing.T) {
	e, db, _ := newTestServer(t)

	now := time.Now()
	require.NoError(t, db.Create(&entity.AutopilotState{ID: 1, CycleCount: 7, LastRunAt: &now}).Error)

	rec := doRequest(e, http.MethodGet, "/api/v1/autopilot/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var state entity.AutopilotState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.EqualValues(t, 7, state.CycleCount)
	assert.NotNil(t, state.LastRunAt)
}
