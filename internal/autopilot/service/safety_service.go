package service

import (
	"fmt"

	"stock-autopilot/internal/autopilot/config"
	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/internal/entity"
	"stock-autopilot/pkg/logger"
)

// SafetyContext is the portfolio snapshot the rules are evaluated against.
type SafetyContext struct {
	Settings    *entity.AutopilotSettings
	CashBalance float64
	Positions   []entity.Position
	OpenOrders  []entity.Order
	Watchlist   []entity.WatchlistItem
}

// SafetyService filters suggested orders through the risk rules. Rules run
// in declaration order per candidate and short-circuit on the first
// violation; approvals reserve cash or shares so later candidates in the
// same pass see the reduced availability.
type SafetyService interface {
	Filter(candidates []dto.SuggestedOrder, sctx SafetyContext) ([]dto.SuggestedOrder, []dto.SkipDecision)
}

type safetyService struct {
	cfg *config.Config
	log *logger.Logger
}

func NewSafetyService(cfg *config.Config, log *logger.Logger) SafetyService {
	return &safetyService{cfg: cfg, log: log}
}

// reservationLedger tracks cash and per-symbol shares still uncommitted
// after subtracting open orders and earlier approvals in the same pass.
type reservationLedger struct {
	availableCash   float64
	availableShares map[string]int
}

func newReservationLedger(fees config.Fees, cash float64, positions []entity.Position, openOrders []entity.Order) *reservationLedger {
	ledger := &reservationLedger{
		availableCash:   cash,
		availableShares: make(map[string]int, len(positions)),
	}
	for _, p := range positions {
		ledger.availableShares[p.Symbol] = p.Quantity
	}
	for _, o := range openOrders {
		if !o.Status.IsOpen() {
			continue
		}
		notional := float64(o.Quantity) * o.TriggerPrice
		if o.OrderType.IsBuy() {
			ledger.availableCash -= notional + TransactionFee(fees, notional)
		} else {
			ledger.availableShares[o.Symbol] -= o.Quantity
		}
	}
	return ledger
}

func (l *reservationLedger) reserveCash(amount float64) {
	l.availableCash -= amount
}

func (l *reservationLedger) reserveShares(symbol string, quantity int) {
	l.availableShares[symbol] -= quantity
}

func (s *safetyService) Filter(candidates []dto.SuggestedOrder, sctx SafetyContext) ([]dto.SuggestedOrder, []dto.SkipDecision) {
	settings := sctx.Settings
	ledger := newReservationLedger(s.cfg.Fees, sctx.CashBalance, sctx.Positions, sctx.OpenOrders)

	positionsBySymbol := make(map[string]entity.Position, len(sctx.Positions))
	portfolioValue := sctx.CashBalance
	for _, p := range sctx.Positions {
		positionsBySymbol[p.Symbol] = p
		portfolioValue += p.MarketValue()
	}

	onWatchlist := make(map[string]bool, len(sctx.Watchlist))
	for _, w := range sctx.Watchlist {
		onWatchlist[w.Symbol] = true
	}

	approved := make([]dto.SuggestedOrder, 0, len(candidates))
	skipped := []dto.SkipDecision{}

	for _, candidate := range candidates {
		orderType := entity.OrderType(candidate.OrderType)
		notional := float64(candidate.Quantity) * candidate.TriggerPrice
		_, held := positionsBySymbol[candidate.Symbol]

		skip := func(rule, reason string) {
			skipped = append(skipped, dto.SkipDecision{
				Symbol:    candidate.Symbol,
				OrderType: candidate.OrderType,
				Rule:      rule,
				Reason:    reason,
			})
		}

		if settings.MaxTradesPerCycle > 0 && len(approved) >= settings.MaxTradesPerCycle {
			skip("trade_cap", fmt.Sprintf("per-cycle trade cap of %d reached", settings.MaxTradesPerCycle))
			continue
		}

		if orderType.IsBuy() && !settings.AllowBuy {
			skip("direction", "buying is disabled in settings")
			continue
		}
		if orderType.IsSell() && !settings.AllowSell {
			skip("direction", "selling is disabled in settings")
			continue
		}

		if orderType.IsBuy() && !settings.AllowNewPositions && !held {
			skip("new_position", fmt.Sprintf("new positions are disabled and %s is not held", candidate.Symbol))
			continue
		}

		if settings.WatchlistOnly && !onWatchlist[candidate.Symbol] && !held {
			skip("watchlist", fmt.Sprintf("%s is neither on the watchlist nor held", candidate.Symbol))
			continue
		}

		if orderType.IsBuy() && settings.MaxPositionPercent > 0 && portfolioValue > 0 {
			existingValue := 0.0
			if p, ok := positionsBySymbol[candidate.Symbol]; ok {
				existingValue = p.MarketValue()
			}
			weight := (existingValue + notional) / portfolioValue * 100
			if weight > settings.MaxPositionPercent {
				skip("position_weight", fmt.Sprintf("resulting weight %.1f%% exceeds the %.1f%% position limit", weight, settings.MaxPositionPercent))
				continue
			}
		}

		if orderType.IsBuy() {
			total := notional + TransactionFee(s.cfg.Fees, notional)
			if total > ledger.availableCash {
				skip("cash", fmt.Sprintf("cost %.2f exceeds available cash %.2f", total, ledger.availableCash))
				continue
			}
			if portfolioValue > 0 {
				reserveAfter := (ledger.availableCash - total) / portfolioValue * 100
				if reserveAfter < settings.MinCashReservePct {
					skip("cash_reserve", fmt.Sprintf("cash reserve would drop to %.1f%%, below the %.1f%% minimum", reserveAfter, settings.MinCashReservePct))
					continue
				}
			}
			ledger.reserveCash(total)
		}

		if orderType.IsSell() {
			available := ledger.availableShares[candidate.Symbol]
			if candidate.Quantity > available {
				skip("shares", fmt.Sprintf("requested %d shares but only %d are available", candidate.Quantity, available))
				continue
			}
			ledger.reserveShares(candidate.Symbol, candidate.Quantity)
		}

		approved = append(approved, candidate)
	}

	return approved, skipped
}
