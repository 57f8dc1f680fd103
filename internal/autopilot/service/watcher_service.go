package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"stock-autopilot/internal/autopilot/config"
	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/internal/autopilot/repository"
	"stock-autopilot/internal/entity"
	"stock-autopilot/pkg/common"
	"stock-autopilot/pkg/logger"
	redisPkg "stock-autopilot/pkg/redis"
	"stock-autopilot/pkg/telegram"

	redis "github.com/redis/go-redis/v9"
)

const (
	REDIS_KEY_LAST_PRICE    = "last_price:%s"
	REDIS_KEY_CIRCUIT_ALERT = "circuit_breaker_alert:%d"
)

// WatcherService polls quotes for active orders and fills the ones whose
// trigger the market has crossed. It only acts while execution is enabled.
type WatcherService interface {
	Start(ctx context.Context)
	CheckActiveOrders(ctx context.Context)
}

type watcherService struct {
	cfg          *config.Config
	log          *logger.Logger
	orderSvc     OrderService
	orderRepo    repository.OrderRepository
	settingsRepo repository.SettingsRepository
	marketData   repository.MarketDataRepository
	logRepo      repository.AutopilotLogRepository
	notifier     telegram.Notifier
	redisClient  *redisPkg.Client
}

// NewWatcherService creates a new execution watcher.
func NewWatcherService(
	cfg *config.Config,
	log *logger.Logger,
	orderSvc OrderService,
	orderRepo repository.OrderRepository,
	settingsRepo repository.SettingsRepository,
	marketData repository.MarketDataRepository,
	logRepo repository.AutopilotLogRepository,
	notifier telegram.Notifier,
	redisClient *redisPkg.Client,
) WatcherService {
	return &watcherService{
		cfg:          cfg,
		log:          log,
		orderSvc:     orderSvc,
		orderRepo:    orderRepo,
		settingsRepo: settingsRepo,
		marketData:   marketData,
		logRepo:      logRepo,
		notifier:     notifier,
		redisClient:  redisClient,
	}
}

// Start begins the periodic order check loop. A pass always runs to
// completion before the next tick is taken.
func (w *watcherService) Start(ctx context.Context) {
	interval := w.cfg.Autopilot.WatcherInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.log.Info("Execution watcher started", logger.Field("interval", interval))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Execution watcher stopping")
			return
		case <-ticker.C:
			w.CheckActiveOrders(ctx)
		}
	}
}

// CheckActiveOrders runs one watcher pass over every active order.
func (w *watcherService) CheckActiveOrders(ctx context.Context) {
	settings, err := w.settingsRepo.Get(ctx)
	if err != nil {
		w.log.Error("Failed to load autopilot settings", logger.ErrorField(err))
		return
	}
	if !settings.ExecutionEnabled {
		return
	}

	if _, err := w.orderSvc.ExpireDueOrders(ctx); err != nil {
		w.log.Error("Failed to expire due orders", logger.ErrorField(err))
	}

	orders, err := w.orderRepo.Get(ctx, dto.GetOrdersParam{
		Statuses: []entity.OrderStatus{entity.OrderStatusActive},
	})
	if err != nil {
		w.log.Error("Failed to load active orders", logger.ErrorField(err))
		return
	}

	for i := range orders {
		w.checkOrder(ctx, &orders[i])
	}
}

func (w *watcherService) checkOrder(ctx context.Context, order *entity.Order) {
	quote, err := w.marketData.GetQuote(ctx, order.Symbol)
	if err != nil {
		w.log.Error("Failed to get quote for active order", logger.ErrorField(err), logger.StringField("symbol", order.Symbol))
		return
	}

	switch EvaluateActiveOrder(order, quote, w.circuitBreakerPercent()) {
	case WatchSkip:
		w.log.Warn("No executable quote for active order", logger.StringField("symbol", order.Symbol), logger.IntField("order_id", int(order.ID)))
		return
	case WatchHold:
		movePercent := math.Abs(quote.Price-order.LastKnownPrice) / order.LastKnownPrice * 100
		w.tripCircuitBreaker(ctx, order, quote.Price, movePercent)
		return
	case WatchExecute:
		if !w.refreshLastPrice(ctx, order, quote.Price) {
			return
		}
		if _, err := w.orderSvc.ExecuteOrder(ctx, order.ID, quote.Price); err != nil {
			w.log.Error("Failed to execute triggered order", logger.ErrorField(err), logger.IntField("order_id", int(order.ID)), logger.StringField("symbol", order.Symbol))
		}
	case WatchUpdate:
		w.refreshLastPrice(ctx, order, quote.Price)
	}
}

func (w *watcherService) refreshLastPrice(ctx context.Context, order *entity.Order, price float64) bool {
	if order.LastKnownPrice != price {
		order.LastKnownPrice = price
		if err := w.orderRepo.Update(ctx, order); err != nil {
			w.log.Error("Failed to update last known price", logger.ErrorField(err), logger.IntField("order_id", int(order.ID)))
			return false
		}
	}
	w.mirrorLastPrice(ctx, order.Symbol, price)
	return true
}

// WatchDecision is the outcome of evaluating one active order against a quote.
type WatchDecision int

const (
	WatchSkip    WatchDecision = iota // quote missing, zero priced or fallback
	WatchHold                         // circuit breaker, leave the order untouched
	WatchUpdate                       // refresh the last known price, no fill
	WatchExecute                      // trigger crossed, fill at the quote price
)

// EvaluateActiveOrder classifies what a watcher pass should do with one
// active order. Fallback quotes never execute, and a price that gapped more
// than breakerPercent from the last known one is held rather than filled.
func EvaluateActiveOrder(order *entity.Order, quote *dto.Quote, breakerPercent float64) WatchDecision {
	if quote == nil || quote.IsFallback || quote.Price <= 0 {
		return WatchSkip
	}
	if order.LastKnownPrice > 0 {
		movePercent := math.Abs(quote.Price-order.LastKnownPrice) / order.LastKnownPrice * 100
		if movePercent > breakerPercent {
			return WatchHold
		}
	}
	if TriggerSatisfied(order.OrderType, order.TriggerPrice, quote.Price) {
		return WatchExecute
	}
	return WatchUpdate
}

// TriggerSatisfied reports whether the live price has crossed the order
// trigger. Buy limits and stop losses fire when the price falls to the
// trigger, sell limits and stop buys when it rises to it.
func TriggerSatisfied(orderType entity.OrderType, trigger, price float64) bool {
	switch orderType {
	case entity.OrderTypeLimitBuy, entity.OrderTypeStopLoss:
		return price <= trigger
	case entity.OrderTypeLimitSell, entity.OrderTypeStopBuy:
		return price >= trigger
	}
	return false
}

// tripCircuitBreaker holds an order whose price gapped too far from the last
// known one. The order stays active and LastKnownPrice stays as it was, so a
// bad tick cannot promote itself into the new baseline.
func (w *watcherService) tripCircuitBreaker(ctx context.Context, order *entity.Order, price, movePercent float64) {
	w.log.Warn("Circuit breaker holding order",
		logger.StringField("symbol", order.Symbol),
		logger.IntField("order_id", int(order.ID)),
		logger.Float64Field("price", price),
		logger.Float64Field("last_known_price", order.LastKnownPrice),
		logger.Float64Field("move_percent", movePercent))

	key := fmt.Sprintf(REDIS_KEY_CIRCUIT_ALERT, order.ID)
	_, err := w.redisClient.Get(ctx, key).Result()
	if err == nil {
		return // alerted recently
	}
	if !errors.Is(err, redis.Nil) {
		w.log.Error("Failed to check alert cache", logger.ErrorField(err), logger.IntField("order_id", int(order.ID)))
		return
	}

	w.audit(ctx, fmt.Sprintf("Circuit breaker: %s price %.2f moved %.1f%% from last known %.2f, order #%d held", order.Symbol, price, movePercent, order.LastKnownPrice, order.ID), order)
	if err := w.notifier.SendMessage(telegram.FormatCircuitBreakerMessage(order, price, movePercent)); err != nil {
		w.log.Error("Failed to send telegram message", logger.ErrorField(err))
	}

	resend := w.cfg.Autopilot.AlertResendInterval
	if resend <= 0 {
		resend = 30 * time.Minute
	}
	if err := w.redisClient.Set(ctx, key, price, resend).Err(); err != nil {
		w.log.Error("Failed to cache alert", logger.ErrorField(err), logger.IntField("order_id", int(order.ID)))
	}
}

func (w *watcherService) mirrorLastPrice(ctx context.Context, symbol string, price float64) {
	key := fmt.Sprintf(REDIS_KEY_LAST_PRICE, symbol)
	pipe := w.redisClient.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"price":     price,
		"timestamp": time.Now().Unix(),
	})
	pipe.Expire(ctx, key, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error("Failed to execute Redis pipeline", logger.ErrorField(err), logger.StringField("symbol", symbol))
	}
}

func (w *watcherService) circuitBreakerPercent() float64 {
	if w.cfg.Autopilot.CircuitBreakerPercent > 0 {
		return w.cfg.Autopilot.CircuitBreakerPercent
	}
	return 25
}

func (w *watcherService) audit(ctx context.Context, message string, order *entity.Order) {
	entry := &entity.AutopilotLog{
		Category: common.LogCategoryExecution,
		Message:  message,
		Symbol:   order.Symbol,
		OrderID:  &order.ID,
	}
	if err := w.logRepo.Create(ctx, entry); err != nil {
		w.log.ErrorContext(ctx, "Failed to write audit log", logger.ErrorField(err), logger.StringField("message", message))
	}
}
