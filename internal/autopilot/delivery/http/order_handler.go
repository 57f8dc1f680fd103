package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/internal/autopilot/repository"
	"stock-autopilot/internal/autopilot/service"
	"stock-autopilot/internal/entity"
	"stock-autopilot/pkg/logger"

	"github.com/labstack/echo/v4"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	orderSvc  service.OrderService
	orderRepo repository.OrderRepository
	logger    *logger.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc service.OrderService, orderRepo repository.OrderRepository, logger *logger.Logger) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc, orderRepo: orderRepo, logger: logger}
}

// RegisterRoutes registers the order routes to the Echo group.
func (h *OrderHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetOrders)
	g.POST("", h.CreateOrder)
	g.POST("/:id/confirm", h.ConfirmOrder)
	g.DELETE("/:id", h.CancelOrder)
}

// GetOrders godoc
// @Summary List orders
// @Description Returns orders, optionally filtered by status
// @Tags orders
// @Produce  json
// @Param   status  query   string  false   "Comma separated statuses, e.g. active,pending"
// @Param   symbol  query   string  false   "Filter by symbol"
// @Success 200 {array} entity.Order
// @Failure 500 {object} dto.ErrorResponse
// @Router /orders [get]
func (h *OrderHandler) GetOrders(c echo.Context) error {
	var param dto.GetOrdersParam
	if statusStr := c.QueryParam("status"); statusStr != "" {
		for _, s := range strings.Split(statusStr, ",") {
			param.Statuses = append(param.Statuses, entity.OrderStatus(strings.TrimSpace(s)))
		}
	}
	if symbol := c.QueryParam("symbol"); symbol != "" {
		param.Symbols = []string{strings.ToUpper(strings.TrimSpace(symbol))}
	}

	orders, err := h.orderRepo.Get(c.Request().Context(), param)
	if err != nil {
		h.logger.Error("Failed to get orders", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get orders"})
	}
	return c.JSON(http.StatusOK, orders)
}

// CreateOrder godoc
// @Summary Place a manual order
// @Description Creates an order that the watcher executes when its trigger price is reached
// @Tags orders
// @Accept  json
// @Produce  json
// @Param   order  body    dto.CreateOrderRequest   true    "Order to place"
// @Success 201 {object} entity.Order
// @Failure 400 {object} dto.ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	var req dto.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}

	order, err := h.orderSvc.CreateManualOrder(c.Request().Context(), req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusCreated, order)
}

// ConfirmOrder godoc
// @Summary Confirm a pending order
// @Description Promotes a pending order to active so the watcher picks it up
// @Tags orders
// @Produce  json
// @Param   id  path    int true    "Order ID"
// @Success 200 {object} entity.Order
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /orders/{id}/confirm [post]
func (h *OrderHandler) ConfirmOrder(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid order ID"})
	}

	order, err := h.orderSvc.ConfirmOrder(c.Request().Context(), uint(id))
	if err != nil {
		return h.orderError(c, err, "Failed to confirm order")
	}
	return c.JSON(http.StatusOK, order)
}

// CancelOrder godoc
// @Summary Cancel an open order
// @Tags orders
// @Produce  json
// @Param   id  path    int true    "Order ID"
// @Success 200 {object} entity.Order
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /orders/{id} [delete]
func (h *OrderHandler) CancelOrder(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid order ID"})
	}

	order, err := h.orderSvc.CancelOrder(c.Request().Context(), uint(id))
	if err != nil {
		return h.orderError(c, err, "Failed to cancel order")
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) orderError(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
	}
	h.logger.Error(fallback, logger.ErrorField(err))
	return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: fallback})
}
