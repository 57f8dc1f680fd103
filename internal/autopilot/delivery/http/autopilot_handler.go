package http

import (
	"errors"
	"net/http"
	"strconv"

	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/internal/autopilot/repository"
	"stock-autopilot/internal/autopilot/service"
	"stock-autopilot/internal/entity"
	"stock-autopilot/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AutopilotHandler handles HTTP requests for autopilot control and state.
type AutopilotHandler struct {
	cycleSvc     service.CycleService
	settingsRepo repository.SettingsRepository
	stateRepo    repository.StateRepository
	logRepo      repository.AutopilotLogRepository
	logger       *logger.Logger
}

// NewAutopilotHandler creates a new AutopilotHandler.
func NewAutopilotHandler(cycleSvc service.CycleService, settingsRepo repository.SettingsRepository, stateRepo repository.StateRepository, logRepo repository.AutopilotLogRepository, logger *logger.Logger) *AutopilotHandler {
	return &AutopilotHandler{
		cycleSvc:     cycleSvc,
		settingsRepo: settingsRepo,
		stateRepo:    stateRepo,
		logRepo:      logRepo,
		logger:       logger,
	}
}

// RegisterRoutes registers the autopilot routes to the Echo group.
func (h *AutopilotHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/state", h.GetState)
	g.GET("/logs", h.GetLogs)
	g.GET("/settings", h.GetSettings)
	g.PUT("/settings", h.UpdateSettings)
	g.POST("/start", h.Start)
	g.POST("/stop", h.Stop)
	g.POST("/cycle", h.TriggerCycle)
}

// GetState godoc
// @Summary Get the autopilot runtime state
// @Description Returns cycle counters, last run, next run and the last error
// @Tags autopilot
// @Produce  json
// @Success 200 {object} entity.AutopilotState
// @Failure 500 {object} dto.ErrorResponse
// @Router /autopilot/state [get]
func (h *AutopilotHandler) GetState(c echo.Context) error {
	state, err := h.stateRepo.Get(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to get autopilot state", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get autopilot state"})
	}
	return c.JSON(http.StatusOK, state)
}

// GetLogs godoc
// @Summary List autopilot audit logs
// @Description Returns recent audit entries, newest first
// @Tags autopilot
// @Produce  json
// @Param   category  query   string  false   "Filter by category"
// @Param   symbol    query   string  false   "Filter by symbol"
// @Param   limit     query   int     false   "Max rows, default 100"
// @Success 200 {array} entity.AutopilotLog
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /autopilot/logs [get]
func (h *AutopilotHandler) GetLogs(c echo.Context) error {
	param := dto.GetLogsParam{
		Category: c.QueryParam("category"),
		Symbol:   c.QueryParam("symbol"),
		Limit:    100,
	}
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid limit"})
		}
		param.Limit = limit
	}

	logs, err := h.logRepo.Get(c.Request().Context(), param)
	if err != nil {
		h.logger.Error("Failed to get autopilot logs", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get autopilot logs"})
	}
	return c.JSON(http.StatusOK, logs)
}

// GetSettings godoc
// @Summary Get the autopilot settings
// @Tags autopilot
// @Produce  json
// @Success 200 {object} entity.AutopilotSettings
// @Failure 500 {object} dto.ErrorResponse
// @Router /autopilot/settings [get]
func (h *AutopilotHandler) GetSettings(c echo.Context) error {
	settings, err := h.settingsRepo.Get(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to get autopilot settings", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get autopilot settings"})
	}
	return c.JSON(http.StatusOK, settings)
}

// UpdateSettings godoc
// @Summary Update the autopilot settings
// @Description Applies the provided fields, leaves omitted fields unchanged
// @Tags autopilot
// @Accept  json
// @Produce  json
// @Param   settings  body    dto.UpdateSettingsRequest   true    "Fields to update"
// @Success 200 {object} entity.AutopilotSettings
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /autopilot/settings [put]
func (h *AutopilotHandler) UpdateSettings(c echo.Context) error {
	var req dto.UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}

	ctx := c.Request().Context()
	settings, err := h.settingsRepo.Get(ctx)
	if err != nil {
		h.logger.Error("Failed to get autopilot settings", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get autopilot settings"})
	}

	if err := applySettingsUpdate(settings, req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	if err := h.settingsRepo.Update(ctx, settings); err != nil {
		h.logger.Error("Failed to update autopilot settings", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update autopilot settings"})
	}
	h.cycleSvc.ReloadSettings()

	return c.JSON(http.StatusOK, settings)
}

// Start godoc
// @Summary Enable the autopilot
// @Tags autopilot
// @Produce  json
// @Success 200 {object} dto.MessageResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /autopilot/start [post]
func (h *AutopilotHandler) Start(c echo.Context) error {
	return h.setEnabled(c, true, "autopilot enabled")
}

// Stop godoc
// @Summary Disable the autopilot
// @Description Stops scheduling new cycles, a cycle already in flight finishes
// @Tags autopilot
// @Produce  json
// @Success 200 {object} dto.MessageResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /autopilot/stop [post]
func (h *AutopilotHandler) Stop(c echo.Context) error {
	return h.setEnabled(c, false, "autopilot disabled")
}

func (h *AutopilotHandler) setEnabled(c echo.Context, enabled bool, message string) error {
	ctx := c.Request().Context()
	settings, err := h.settingsRepo.Get(ctx)
	if err != nil {
		h.logger.Error("Failed to get autopilot settings", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get autopilot settings"})
	}

	if settings.Enabled != enabled {
		settings.Enabled = enabled
		if err := h.settingsRepo.Update(ctx, settings); err != nil {
			h.logger.Error("Failed to update autopilot settings", logger.ErrorField(err))
			return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update autopilot settings"})
		}
		h.cycleSvc.ReloadSettings()
	}

	return c.JSON(http.StatusOK, dto.MessageResponse{Message: message})
}

// TriggerCycle godoc
// @Summary Trigger a cycle immediately
// @Description Starts a decision cycle outside the regular schedule
// @Tags autopilot
// @Produce  json
// @Success 202 {object} dto.MessageResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /autopilot/cycle [post]
func (h *AutopilotHandler) TriggerCycle(c echo.Context) error {
	if err := h.cycleSvc.TriggerManualCycle(c.Request().Context()); err != nil {
		if errors.Is(err, service.ErrCycleInFlight) {
			return c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
		}
		h.logger.Error("Failed to trigger cycle", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to trigger cycle"})
	}
	return c.JSON(http.StatusAccepted, dto.MessageResponse{Message: "cycle started"})
}

func applySettingsUpdate(settings *entity.AutopilotSettings, req dto.UpdateSettingsRequest) error {
	if req.Mode != nil {
		mode := entity.AutopilotMode(*req.Mode)
		if !mode.Valid() {
			return errors.New("unknown mode, expected full_auto, suggest_only or confirm_each")
		}
		settings.Mode = mode
	}
	if req.IntervalMinutes != nil {
		if *req.IntervalMinutes <= 0 {
			return errors.New("interval_minutes must be positive")
		}
		settings.IntervalMinutes = *req.IntervalMinutes
	}
	if req.MaxPositionPercent != nil {
		if *req.MaxPositionPercent <= 0 || *req.MaxPositionPercent > 100 {
			return errors.New("max_position_percent must be between 0 and 100")
		}
		settings.MaxPositionPercent = *req.MaxPositionPercent
	}
	if req.MinCashReservePct != nil {
		if *req.MinCashReservePct < 0 || *req.MinCashReservePct >= 100 {
			return errors.New("min_cash_reserve_percent must be between 0 and 100")
		}
		settings.MinCashReservePct = *req.MinCashReservePct
	}
	if req.MinConfidence != nil {
		if *req.MinConfidence < 0 || *req.MinConfidence > 100 {
			return errors.New("min_confidence must be between 0 and 100")
		}
		settings.MinConfidence = *req.MinConfidence
	}
	if req.MaxTradesPerCycle != nil {
		if *req.MaxTradesPerCycle < 0 {
			return errors.New("max_trades_per_cycle must not be negative")
		}
		settings.MaxTradesPerCycle = *req.MaxTradesPerCycle
	}
	if req.OrderExpiryDays != nil {
		if *req.OrderExpiryDays <= 0 {
			return errors.New("order_expiry_days must be positive")
		}
		settings.OrderExpiryDays = *req.OrderExpiryDays
	}

	if req.Enabled != nil {
		settings.Enabled = *req.Enabled
	}
	if req.ActiveHoursOnly != nil {
		settings.ActiveHoursOnly = *req.ActiveHoursOnly
	}
	if req.AllowBuy != nil {
		settings.AllowBuy = *req.AllowBuy
	}
	if req.AllowSell != nil {
		settings.AllowSell = *req.AllowSell
	}
	if req.AllowNewPositions != nil {
		settings.AllowNewPositions = *req.AllowNewPositions
	}
	if req.WatchlistOnly != nil {
		settings.WatchlistOnly = *req.WatchlistOnly
	}
	if req.ExecutionEnabled != nil {
		settings.ExecutionEnabled = *req.ExecutionEnabled
	}
	if req.Strategy != nil {
		settings.Strategy = *req.Strategy
	}
	if req.RiskTolerance != nil {
		settings.RiskTolerance = *req.RiskTolerance
	}
	if req.CustomInstructions != nil {
		settings.CustomInstructions = *req.CustomInstructions
	}
	return nil
}
