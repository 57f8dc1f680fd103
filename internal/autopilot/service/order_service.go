package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"stock-autopilot/internal/autopilot/config"
	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/internal/autopilot/repository"
	"stock-autopilot/internal/entity"
	"stock-autopilot/pkg/common"
	"stock-autopilot/pkg/logger"
	"stock-autopilot/pkg/telegram"
	"stock-autopilot/pkg/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("order status does not allow this transition")
)

// OrderService owns the order state machine. Every mutation of the shared
// order/position/cash state runs under the trading mutex so a cycle-created
// order and a watcher-executed order cannot race.
type OrderService interface {
	CreateManualOrder(ctx context.Context, req dto.CreateOrderRequest) (*entity.Order, error)
	CreateFromSuggestion(ctx context.Context, suggestion dto.SuggestedOrder, settings *entity.AutopilotSettings) (*entity.Order, *dto.SkipDecision, error)
	ConfirmOrder(ctx context.Context, id uint) (*entity.Order, error)
	CancelOrder(ctx context.Context, id uint) (*entity.Order, error)
	ExpireDueOrders(ctx context.Context) (int64, error)
	ExecuteOrder(ctx context.Context, id uint, price float64) (*entity.Order, error)
}

type orderService struct {
	cfg           *config.Config
	log           *logger.Logger
	db            *gorm.DB
	orderRepo     repository.OrderRepository
	positionRepo  repository.PositionRepository
	portfolioRepo repository.PortfolioRepository
	logRepo       repository.AutopilotLogRepository
	notifier      telegram.Notifier

	tradeMu sync.Mutex
}

func NewOrderService(
	cfg *config.Config,
	log *logger.Logger,
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	positionRepo repository.PositionRepository,
	portfolioRepo repository.PortfolioRepository,
	logRepo repository.AutopilotLogRepository,
	notifier telegram.Notifier,
) OrderService {
	return &orderService{
		cfg:           cfg,
		log:           log,
		db:            db,
		orderRepo:     orderRepo,
		positionRepo:  positionRepo,
		portfolioRepo: portfolioRepo,
		logRepo:       logRepo,
		notifier:      notifier,
	}
}

func (s *orderService) CreateManualOrder(ctx context.Context, req dto.CreateOrderRequest) (*entity.Order, error) {
	orderType := entity.OrderType(req.OrderType)
	if !orderType.Valid() {
		return nil, fmt.Errorf("invalid order type %q", req.OrderType)
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	if req.TriggerPrice <= 0 {
		return nil, fmt.Errorf("trigger price must be positive")
	}

	s.tradeMu.Lock()
	defer s.tradeMu.Unlock()

	order := &entity.Order{
		Symbol:       symbol,
		Name:         req.Name,
		OrderType:    orderType,
		Quantity:     req.Quantity,
		TriggerPrice: req.TriggerPrice,
		Status:       entity.OrderStatusActive,
		Source:       entity.OrderSourceManual,
		Note:         req.Note,
		ExpiresAt:    req.ExpiresAt,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	s.audit(ctx, common.LogCategoryOrder, fmt.Sprintf("Manual %s order created: %d %s @ %.2f", order.OrderType, order.Quantity, order.Symbol, order.TriggerPrice), order.Symbol, &order.ID, order)
	s.notify(telegram.FormatOrderCreatedMessage(order))

	return order, nil
}

// CreateFromSuggestion creates an autopilot order after the lifecycle
// checks: supersede a still-open autopilot order for the same symbol and
// type, reject near-duplicate sell triggers, and reject sells that would
// exceed the held position together with the already open sell quantity.
// A nil order with a non-nil skip means the suggestion was rejected.
func (s *orderService) CreateFromSuggestion(ctx context.Context, suggestion dto.SuggestedOrder, settings *entity.AutopilotSettings) (*entity.Order, *dto.SkipDecision, error) {
	orderType := entity.OrderType(suggestion.OrderType)
	if !orderType.Valid() {
		return nil, s.skipDecision(suggestion, "validation", fmt.Sprintf("unknown order type %q", suggestion.OrderType)), nil
	}
	if suggestion.Quantity <= 0 {
		return nil, s.skipDecision(suggestion, "validation", "quantity resolved to zero"), nil
	}
	if suggestion.TriggerPrice <= 0 {
		return nil, s.skipDecision(suggestion, "validation", "trigger price missing"), nil
	}

	s.tradeMu.Lock()
	defer s.tradeMu.Unlock()

	openOrders, err := s.orderRepo.Get(ctx, dto.GetOrdersParam{
		Symbols:  []string{suggestion.Symbol},
		Statuses: []entity.OrderStatus{entity.OrderStatusPending, entity.OrderStatusActive},
	})
	if err != nil {
		return nil, nil, err
	}

	openSellQuantity := 0
	for _, open := range openOrders {
		if open.Source == entity.OrderSourceAutopilot && open.OrderType == orderType {
			continue // superseded below, not counted
		}
		if open.OrderType.IsSell() {
			if orderType.IsSell() && math.Abs(open.TriggerPrice-suggestion.TriggerPrice)/open.TriggerPrice <= 0.05 {
				return nil, s.skipDecision(suggestion, "duplicate", fmt.Sprintf("open %s order #%d has a trigger within 5%% (%.2f)", open.OrderType, open.ID, open.TriggerPrice)), nil
			}
			openSellQuantity += open.Quantity
		}
	}

	if orderType.IsSell() {
		position, err := s.positionRepo.GetBySymbol(ctx, suggestion.Symbol)
		if err != nil {
			return nil, nil, err
		}
		held := 0
		if position != nil {
			held = position.Quantity
		}
		if openSellQuantity+suggestion.Quantity > held {
			return nil, s.skipDecision(suggestion, "oversell", fmt.Sprintf("open sells %d plus new %d exceed held %d", openSellQuantity, suggestion.Quantity, held)), nil
		}
	}

	for _, open := range openOrders {
		if open.Source != entity.OrderSourceAutopilot || open.OrderType != orderType {
			continue
		}
		open.Status = entity.OrderStatusCancelled
		if err := s.orderRepo.Update(ctx, &open); err != nil {
			return nil, nil, err
		}
		s.audit(ctx, common.LogCategoryOrder, fmt.Sprintf("Superseded %s order #%d for %s", open.OrderType, open.ID, open.Symbol), open.Symbol, &open.ID, nil)
	}

	status := entity.OrderStatusActive
	if settings.Mode == entity.AutopilotModeConfirmEach {
		status = entity.OrderStatusPending
	}

	expiryDays := settings.OrderExpiryDays
	if expiryDays <= 0 {
		expiryDays = 5
	}

	order := &entity.Order{
		Symbol:        suggestion.Symbol,
		OrderType:     orderType,
		Quantity:      suggestion.Quantity,
		TriggerPrice:  suggestion.TriggerPrice,
		Status:        status,
		Source:        entity.OrderSourceAutopilot,
		AutoGenerated: suggestion.AutoGenerated,
		Note:          suggestion.Reasoning,
		ExpiresAt:     utils.ToPointer(time.Now().AddDate(0, 0, expiryDays)),
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, nil, err
	}

	s.audit(ctx, common.LogCategoryOrder, fmt.Sprintf("Autopilot %s order created: %d %s @ %.2f (%s)", order.OrderType, order.Quantity, order.Symbol, order.TriggerPrice, order.Status), order.Symbol, &order.ID, order)
	s.notify(telegram.FormatOrderCreatedMessage(order))

	return order, nil, nil
}

func (s *orderService) ConfirmOrder(ctx context.Context, id uint) (*entity.Order, error) {
	s.tradeMu.Lock()
	defer s.tradeMu.Unlock()

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != entity.OrderStatusPending {
		return nil, fmt.Errorf("%w: cannot confirm %s order", ErrInvalidTransition, order.Status)
	}

	order.Status = entity.OrderStatusActive
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, err
	}

	s.audit(ctx, common.LogCategoryOrder, fmt.Sprintf("Order #%d confirmed", order.ID), order.Symbol, &order.ID, nil)
	return order, nil
}

func (s *orderService) CancelOrder(ctx context.Context, id uint) (*entity.Order, error) {
	s.tradeMu.Lock()
	defer s.tradeMu.Unlock()

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !order.Status.IsOpen() {
		return nil, fmt.Errorf("%w: cannot cancel %s order", ErrInvalidTransition, order.Status)
	}

	order.Status = entity.OrderStatusCancelled
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, err
	}

	s.audit(ctx, common.LogCategoryOrder, fmt.Sprintf("Order #%d cancelled", order.ID), order.Symbol, &order.ID, nil)
	return order, nil
}

func (s *orderService) ExpireDueOrders(ctx context.Context) (int64, error) {
	expired, err := s.orderRepo.MarkExpiredBefore(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.audit(ctx, common.LogCategoryOrder, fmt.Sprintf("Expired %d overdue orders", expired), "", nil, nil)
	}
	return expired, nil
}

// ExecuteOrder fills an active order at the given price inside one
// transaction: the order row, the position and the cash balance move
// together or not at all.
func (s *orderService) ExecuteOrder(ctx context.Context, id uint, price float64) (*entity.Order, error) {
	if price <= 0 {
		return nil, fmt.Errorf("execution price must be positive")
	}

	s.tradeMu.Lock()
	defer s.tradeMu.Unlock()

	var executed *entity.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order entity.Order
		if err := tx.First(&order, id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Status != entity.OrderStatusActive {
			return fmt.Errorf("%w: cannot execute %s order", ErrInvalidTransition, order.Status)
		}

		notional := float64(order.Quantity) * price
		fee := TransactionFee(s.cfg.Fees, notional)

		var portfolio entity.Portfolio
		if err := tx.Where(entity.Portfolio{ID: 1}).Attrs(entity.Portfolio{Currency: "EUR"}).FirstOrCreate(&portfolio).Error; err != nil {
			return err
		}

		var position entity.Position
		err := tx.Where("symbol = ?", order.Symbol).First(&position).Error
		hasPosition := err == nil
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}

		if order.OrderType.IsBuy() {
			portfolio.CashBalance -= notional + fee
			if hasPosition {
				totalQty := position.Quantity + order.Quantity
				position.AvgBuyPrice = (float64(position.Quantity)*position.AvgBuyPrice + notional) / float64(totalQty)
				position.Quantity = totalQty
				position.CurrentPrice = price
				if err := tx.Save(&position).Error; err != nil {
					return err
				}
			} else {
				position = entity.Position{
					Symbol:       order.Symbol,
					Name:         order.Name,
					Quantity:     order.Quantity,
					AvgBuyPrice:  price,
					CurrentPrice: price,
					Currency:     portfolio.Currency,
				}
				if err := tx.Create(&position).Error; err != nil {
					return err
				}
			}
		} else {
			if !hasPosition || position.Quantity < order.Quantity {
				return fmt.Errorf("position %s no longer covers sell of %d", order.Symbol, order.Quantity)
			}
			portfolio.CashBalance += notional - fee
			position.Quantity -= order.Quantity
			position.CurrentPrice = price
			if position.Quantity == 0 {
				if err := tx.Delete(&position).Error; err != nil {
					return err
				}
			} else {
				if err := tx.Save(&position).Error; err != nil {
					return err
				}
			}
		}

		if err := tx.Save(&portfolio).Error; err != nil {
			return err
		}

		now := time.Now()
		order.Status = entity.OrderStatusExecuted
		order.ExecutedPrice = utils.ToPointer(price)
		order.ExecutedAt = utils.ToPointer(now)
		order.LastKnownPrice = price
		order.Fee = fee
		if err := tx.Save(&order).Error; err != nil {
			return err
		}

		executed = &order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, common.LogCategoryExecution, fmt.Sprintf("Executed %s: %d %s @ %.2f (fee %.2f)", executed.OrderType, executed.Quantity, executed.Symbol, price, executed.Fee), executed.Symbol, &executed.ID, executed)
	s.notify(telegram.FormatOrderExecutedMessage(executed))

	return executed, nil
}

func (s *orderService) skipDecision(suggestion dto.SuggestedOrder, rule, reason string) *dto.SkipDecision {
	return &dto.SkipDecision{
		Symbol:    suggestion.Symbol,
		OrderType: suggestion.OrderType,
		Rule:      rule,
		Reason:    reason,
	}
}

func (s *orderService) audit(ctx context.Context, category, message, symbol string, orderID *uint, details interface{}) {
	entry := &entity.AutopilotLog{
		Category: category,
		Message:  message,
		Symbol:   symbol,
		OrderID:  orderID,
	}
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			entry.Details = datatypes.JSON(data)
		}
	}
	if err := s.logRepo.Create(ctx, entry); err != nil {
		s.log.ErrorContext(ctx, "Failed to write audit log", logger.ErrorField(err), logger.StringField("message", message))
	}
}

func (s *orderService) notify(message string) {
	if err := s.notifier.SendMessage(message); err != nil {
		s.log.Error("Failed to send telegram message", logger.ErrorField(err))
	}
}
