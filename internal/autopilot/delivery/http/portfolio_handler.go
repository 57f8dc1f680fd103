package http

import (
	"net/http"
	"strings"

	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/internal/autopilot/repository"
	"stock-autopilot/internal/entity"
	"stock-autopilot/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
)

// PortfolioHandler handles HTTP requests for the portfolio, positions and
// the watchlist.
type PortfolioHandler struct {
	portfolioRepo repository.PortfolioRepository
	positionRepo  repository.PositionRepository
	watchlistRepo repository.WatchlistRepository
	logger        *logger.Logger
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioRepo repository.PortfolioRepository, positionRepo repository.PositionRepository, watchlistRepo repository.WatchlistRepository, logger *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioRepo: portfolioRepo,
		positionRepo:  positionRepo,
		watchlistRepo: watchlistRepo,
		logger:        logger,
	}
}

// RegisterRoutes registers the portfolio routes to the Echo group.
func (h *PortfolioHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/portfolio", h.GetPortfolio)
	g.GET("/positions", h.GetPositions)
	g.GET("/watchlist", h.GetWatchlist)
	g.POST("/watchlist", h.AddWatchlistItem)
	g.DELETE("/watchlist/:symbol", h.RemoveWatchlistItem)
}

// GetPortfolio godoc
// @Summary Get the portfolio snapshot
// @Description Returns cash, the aggregated position value and all positions
// @Tags portfolio
// @Produce  json
// @Success 200 {object} dto.PortfolioResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /portfolio [get]
func (h *PortfolioHandler) GetPortfolio(c echo.Context) error {
	ctx := c.Request().Context()

	portfolio, err := h.portfolioRepo.Get(ctx)
	if err != nil {
		h.logger.Error("Failed to get portfolio", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get portfolio"})
	}
	positions, err := h.positionRepo.GetAll(ctx)
	if err != nil {
		h.logger.Error("Failed to get positions", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get positions"})
	}

	positionValue := 0.0
	for i := range positions {
		positionValue += positions[i].MarketValue()
	}

	return c.JSON(http.StatusOK, dto.PortfolioResponse{
		CashBalance:   portfolio.CashBalance,
		Currency:      portfolio.Currency,
		PositionValue: positionValue,
		TotalValue:    portfolio.CashBalance + positionValue,
		Positions:     positions,
	})
}

// GetPositions godoc
// @Summary List open positions
// @Tags portfolio
// @Produce  json
// @Success 200 {array} entity.Position
// @Failure 500 {object} dto.ErrorResponse
// @Router /positions [get]
func (h *PortfolioHandler) GetPositions(c echo.Context) error {
	positions, err := h.positionRepo.GetAll(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to get positions", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get positions"})
	}
	return c.JSON(http.StatusOK, positions)
}

// GetWatchlist godoc
// @Summary List watchlist entries
// @Tags portfolio
// @Produce  json
// @Success 200 {array} entity.WatchlistItem
// @Failure 500 {object} dto.ErrorResponse
// @Router /watchlist [get]
func (h *PortfolioHandler) GetWatchlist(c echo.Context) error {
	items, err := h.watchlistRepo.GetAll(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to get watchlist", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get watchlist"})
	}
	return c.JSON(http.StatusOK, items)
}

// AddWatchlistItem godoc
// @Summary Add a symbol to the watchlist
// @Tags portfolio
// @Accept  json
// @Produce  json
// @Param   item  body    dto.AddWatchlistRequest   true    "Symbol to watch"
// @Success 201 {object} entity.WatchlistItem
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /watchlist [post]
func (h *PortfolioHandler) AddWatchlistItem(c echo.Context) error {
	var req dto.AddWatchlistRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Symbol is required"})
	}

	item := &entity.WatchlistItem{
		Symbol: symbol,
		Name:   strings.TrimSpace(req.Name),
		Tags:   pq.StringArray(req.Tags),
	}
	if err := h.watchlistRepo.AddIgnoreConflict(c.Request().Context(), item); err != nil {
		h.logger.Error("Failed to add watchlist item", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add watchlist item"})
	}
	return c.JSON(http.StatusCreated, item)
}

// RemoveWatchlistItem godoc
// @Summary Remove a symbol from the watchlist
// @Tags portfolio
// @Produce  json
// @Param   symbol  path    string  true    "Symbol"
// @Success 204 {object} nil
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /watchlist/{symbol} [delete]
func (h *PortfolioHandler) RemoveWatchlistItem(c echo.Context) error {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))

	removed, err := h.watchlistRepo.Remove(c.Request().Context(), symbol)
	if err != nil {
		h.logger.Error("Failed to remove watchlist item", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to remove watchlist item"})
	}
	if removed == 0 {
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Symbol not on the watchlist"})
	}
	return c.NoContent(http.StatusNoContent)
}
