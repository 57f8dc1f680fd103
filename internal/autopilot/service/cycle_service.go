package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"stock-autopilot/internal/autopilot/config"
	"stock-autopilot/internal/autopilot/dto"
	"stock-autopilot/internal/autopilot/indicator"
	"stock-autopilot/internal/autopilot/repository"
	"stock-autopilot/internal/entity"
	"stock-autopilot/pkg/common"
	"stock-autopilot/pkg/logger"
	"stock-autopilot/pkg/telegram"
	"stock-autopilot/pkg/utils"

	"gorm.io/datatypes"
)

// ErrCycleInFlight is returned when a cycle is requested while one is
// already running.
var ErrCycleInFlight = errors.New("a cycle is already running")

// signalMemory is how many recent signals ride along as advisory memory and
// how many the prune keeps.
const signalMemory = 50

const (
	cycleTriggerSchedule = "schedule"
	cycleTriggerManual   = "manual"
)

// CycleService owns the advisory loop: it schedules cycles, gathers the
// market snapshot, consults the advisory, and turns approved suggestions
// into orders. At most one cycle runs at a time.
type CycleService interface {
	Start(ctx context.Context)
	Stop()
	TriggerManualCycle(ctx context.Context) error
	ReloadSettings()
}

type cycleService struct {
	cfg       *config.Config
	log       *logger.Logger
	calendars []MarketCalendar
	orderSvc  OrderService
	safetySvc SafetyService

	marketData    repository.MarketDataRepository
	advisory      repository.AdvisoryRepository
	news          repository.NewsDigestRepository
	orderRepo     repository.OrderRepository
	positionRepo  repository.PositionRepository
	portfolioRepo repository.PortfolioRepository
	watchlistRepo repository.WatchlistRepository
	signalRepo    repository.SignalRepository
	settingsRepo  repository.SettingsRepository
	stateRepo     repository.StateRepository
	logRepo       repository.AutopilotLogRepository
	notifier      telegram.Notifier

	mu       sync.Mutex
	running  bool
	wakeCh   chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCycleService creates the cycle scheduler.
func NewCycleService(
	cfg *config.Config,
	log *logger.Logger,
	calendars []MarketCalendar,
	orderSvc OrderService,
	safetySvc SafetyService,
	marketData repository.MarketDataRepository,
	advisory repository.AdvisoryRepository,
	news repository.NewsDigestRepository,
	orderRepo repository.OrderRepository,
	positionRepo repository.PositionRepository,
	portfolioRepo repository.PortfolioRepository,
	watchlistRepo repository.WatchlistRepository,
	signalRepo repository.SignalRepository,
	settingsRepo repository.SettingsRepository,
	stateRepo repository.StateRepository,
	logRepo repository.AutopilotLogRepository,
	notifier telegram.Notifier,
) CycleService {
	return &cycleService{
		cfg:           cfg,
		log:           log,
		calendars:     calendars,
		orderSvc:      orderSvc,
		safetySvc:     safetySvc,
		marketData:    marketData,
		advisory:      advisory,
		news:          news,
		orderRepo:     orderRepo,
		positionRepo:  positionRepo,
		portfolioRepo: portfolioRepo,
		watchlistRepo: watchlistRepo,
		signalRepo:    signalRepo,
		settingsRepo:  settingsRepo,
		stateRepo:     stateRepo,
		logRepo:       logRepo,
		notifier:      notifier,
		wakeCh:        make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
	}
}

// Start runs the scheduling loop until the context is cancelled or Stop is
// called. While the autopilot is disabled the loop parks without a timer.
func (s *cycleService) Start(ctx context.Context) {
	s.log.Info("Cycle scheduler started")
	for {
		settings, err := s.settingsRepo.Get(ctx)
		if err != nil {
			s.log.Error("Failed to load autopilot settings", logger.ErrorField(err))
			if !s.pause(ctx, 30*time.Second) {
				return
			}
			continue
		}

		if !settings.Enabled {
			s.clearSchedule(ctx)
			select {
			case <-ctx.Done():
				s.log.Info("Cycle scheduler stopping")
				return
			case <-s.stopCh:
				s.log.Info("Cycle scheduler stopping")
				return
			case <-s.wakeCh:
			}
			continue
		}

		state, err := s.stateRepo.Get(ctx)
		if err != nil {
			s.log.Error("Failed to load autopilot state", logger.ErrorField(err))
			if !s.pause(ctx, 30*time.Second) {
				return
			}
			continue
		}

		delay := nextFireDelay(time.Now(), state.LastRunAt, s.interval(settings), s.graceDelay())
		s.publishNextRun(ctx, time.Now().Add(delay))
		s.log.Debug("Next cycle scheduled", logger.DurationField("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("Cycle scheduler stopping")
			return
		case <-s.stopCh:
			timer.Stop()
			s.log.Info("Cycle scheduler stopping")
			return
		case <-s.wakeCh:
			timer.Stop()
		case <-timer.C:
			s.runCycle(ctx, cycleTriggerSchedule)
		}
	}
}

// Stop ends the scheduling loop. Safe to call more than once.
func (s *cycleService) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// TriggerManualCycle starts a cycle right away unless one is in flight. The
// cycle runs detached from the caller's context, so an HTTP request
// returning does not cancel it.
func (s *cycleService) TriggerManualCycle(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		return err
	}
	utils.GoSafe(func() {
		defer s.release()
		cctx, cancel := context.WithTimeout(context.Background(), s.cycleTimeout())
		defer cancel()
		s.executeCycle(cctx, cycleTriggerManual)
	})
	return nil
}

// ReloadSettings nudges the scheduler so settings edits take effect before
// the current timer would have fired.
func (s *cycleService) ReloadSettings() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// nextFireDelay computes the wait before the next cycle. A schedule that has
// never fired, or whose slot is already past, fires after the grace delay so
// a restart does not stampede straight into a cycle.
func nextFireDelay(now time.Time, lastRun *time.Time, interval, grace time.Duration) time.Duration {
	if lastRun == nil {
		return grace
	}
	next := lastRun.Add(interval)
	if !next.After(now) {
		return grace
	}
	return next.Sub(now)
}

func (s *cycleService) runCycle(ctx context.Context, trigger string) {
	if err := s.acquire(); err != nil {
		s.log.Warn("Cycle already in flight, skipping", logger.StringField("trigger", trigger))
		return
	}
	defer s.release()

	cctx, cancel := context.WithTimeout(ctx, s.cycleTimeout())
	defer cancel()
	s.executeCycle(cctx, trigger)
}

func (s *cycleService) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrCycleInFlight
	}
	s.running = true
	return nil
}

func (s *cycleService) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *cycleService) executeCycle(ctx context.Context, trigger string) {
	startedAt := time.Now()
	s.log.Info("Cycle starting", logger.StringField("trigger", trigger))

	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		s.log.Error("Failed to load autopilot settings", logger.ErrorField(err))
		return
	}
	// The operator may have disabled the autopilot while the timer was armed.
	if trigger == cycleTriggerSchedule && !settings.Enabled {
		return
	}

	s.setRunning(ctx, true)

	summary := &dto.CycleSummary{StartedAt: startedAt}
	advisoryRan, cycleErr := s.runPipeline(ctx, trigger, settings, summary)
	summary.Duration = time.Since(startedAt)

	s.finishCycle(settings, summary, advisoryRan, cycleErr)
}

// runPipeline walks one cycle end to end. The bool reports whether the
// advisory was actually consulted; gate skips return false so the summary
// notification stays quiet overnight.
func (s *cycleService) runPipeline(ctx context.Context, trigger string, settings *entity.AutopilotSettings, summary *dto.CycleSummary) (bool, error) {
	if _, err := s.orderSvc.ExpireDueOrders(ctx); err != nil {
		s.log.Error("Failed to expire due orders", logger.ErrorField(err))
	}

	// Manual triggers are explicit operator intent and bypass the hours gate.
	if trigger == cycleTriggerSchedule && settings.ActiveHoursOnly && !AnyMarketOpen(s.calendars, time.Now()) {
		s.log.Info("Cycle skipped: no market open")
		s.audit(ctx, common.LogCategorySchedule, "Cycle skipped: no market open", "", nil)
		return false, nil
	}

	watchlist, err := s.watchlistRepo.GetAll(ctx)
	if err != nil {
		return false, fmt.Errorf("load watchlist: %w", err)
	}
	positions, err := s.positionRepo.GetAll(ctx)
	if err != nil {
		return false, fmt.Errorf("load positions: %w", err)
	}
	portfolio, err := s.portfolioRepo.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("load portfolio: %w", err)
	}

	onWatchlist := make(map[string]bool, len(watchlist))
	symbols := make([]string, 0, len(watchlist)+len(positions))
	for _, item := range watchlist {
		onWatchlist[item.Symbol] = true
		symbols = append(symbols, item.Symbol)
	}
	held := make(map[string]*entity.Position, len(positions))
	for i := range positions {
		held[positions[i].Symbol] = &positions[i]
		if !onWatchlist[positions[i].Symbol] {
			symbols = append(symbols, positions[i].Symbol)
		}
	}

	if len(symbols) == 0 {
		s.log.Info("Cycle skipped: watchlist and portfolio are empty")
		s.audit(ctx, common.LogCategoryCycle, "Cycle skipped: nothing to scan", "", nil)
		return false, nil
	}

	stocks := s.gatherStocks(ctx, symbols, onWatchlist, held)
	summary.SymbolsScanned = len(stocks)
	if len(stocks) == 0 {
		return false, fmt.Errorf("no live quotes for any of %d symbols", len(symbols))
	}

	openOrders, err := s.orderRepo.GetOpenOrders(ctx)
	if err != nil {
		return false, fmt.Errorf("load open orders: %w", err)
	}
	recentSignals, err := s.signalRepo.GetRecent(ctx, signalMemory)
	if err != nil {
		return false, fmt.Errorf("load recent signals: %w", err)
	}

	digest, err := s.news.GetDigest(ctx, symbols)
	if err != nil {
		s.log.Warn("Failed to build news digest", logger.ErrorField(err))
		digest = nil
	}

	req := buildAdvisoryRequest(settings, portfolio, stocks, positions, openOrders, recentSignals, digest)

	result, warnings, err := s.advisory.GetAdvice(ctx, req)
	if err != nil {
		return true, fmt.Errorf("advisory: %w", err)
	}
	for _, warning := range warnings {
		s.audit(ctx, common.LogCategoryAdvisory, warning, "", nil)
	}
	summary.Warnings = warnings
	summary.MarketSummary = result.MarketSummary
	summary.Suggestions = result.Recommendations
	summary.SignalCount = len(result.Signals)

	s.persistSignals(ctx, result.Signals)

	prices := make(map[string]float64, len(stocks))
	for _, stock := range stocks {
		prices[stock.Symbol] = stock.Price
	}
	candidates := repository.SynthesizeOrders(result, func(symbol string) float64 {
		return prices[symbol]
	})

	candidates, gateSkips := applyConfidenceGate(candidates, result.Signals, settings.MinConfidence)
	s.recordSkips(ctx, summary, gateSkips)

	candidates = s.sizeOrders(candidates, settings, portfolio, positions, openOrders)

	approved, safetySkips := s.safetySvc.Filter(candidates, SafetyContext{
		Settings:    settings,
		CashBalance: portfolio.CashBalance,
		Positions:   positions,
		OpenOrders:  openOrders,
		Watchlist:   watchlist,
	})
	s.recordSkips(ctx, summary, safetySkips)

	s.placeOrders(ctx, settings, approved, summary)
	return true, nil
}

// gatherStocks fetches quote, history, and indicators for every symbol.
// Symbols without a live quote drop out; held symbols get their position
// price refreshed in the same pass.
func (s *cycleService) gatherStocks(ctx context.Context, symbols []string, onWatchlist map[string]bool, held map[string]*entity.Position) []dto.StockContext {
	stocks := make([]dto.StockContext, 0, len(symbols))
	for _, symbol := range symbols {
		if !utils.ShouldContinue(ctx, s.log) {
			break
		}

		quote, err := s.marketData.GetQuote(ctx, symbol)
		if err != nil {
			s.log.Error("Failed to get quote", logger.ErrorField(err), logger.StringField("symbol", symbol))
			continue
		}
		if quote == nil {
			s.log.Warn("Unknown symbol, skipping", logger.StringField("symbol", symbol))
			continue
		}
		if quote.IsFallback || quote.Price <= 0 {
			s.log.Warn("No live quote, skipping symbol", logger.StringField("symbol", symbol), logger.BoolField("fallback", quote.IsFallback))
			continue
		}

		candles, err := s.marketData.GetHistoricalData(ctx, symbol, "1y", "1d")
		if err != nil {
			s.log.Warn("Failed to get historical data", logger.ErrorField(err), logger.StringField("symbol", symbol))
		}

		stocks = append(stocks, dto.StockContext{
			Symbol:        symbol,
			Name:          quote.Name,
			Price:         quote.Price,
			ChangePercent: quote.ChangePercent,
			Currency:      quote.Currency,
			OnWatchlist:   onWatchlist[symbol],
			Indicators:    indicator.Compute(candles, quote.Price),
		})

		if position, ok := held[symbol]; ok {
			position.CurrentPrice = quote.Price
			if err := s.positionRepo.UpdateCurrentPrice(ctx, symbol, quote.Price); err != nil {
				s.log.Error("Failed to update position price", logger.ErrorField(err), logger.StringField("symbol", symbol))
			}
		}
	}
	return stocks
}

func buildAdvisoryRequest(
	settings *entity.AutopilotSettings,
	portfolio *entity.Portfolio,
	stocks []dto.StockContext,
	positions []entity.Position,
	openOrders []entity.Order,
	recentSignals []entity.Signal,
	digest []dto.SymbolNews,
) *dto.AdvisoryRequest {
	req := &dto.AdvisoryRequest{
		Strategy:           settings.Strategy,
		RiskTolerance:      settings.RiskTolerance,
		CustomInstructions: settings.CustomInstructions,
		Cash:               portfolio.CashBalance,
		Currency:           portfolio.Currency,
		Stocks:             stocks,
		NewsDigest:         digest,
	}

	portfolioValue := portfolio.CashBalance
	for _, p := range positions {
		portfolioValue += p.MarketValue()
		profitPct := 0.0
		if p.AvgBuyPrice > 0 && p.CurrentPrice > 0 {
			profitPct = (p.CurrentPrice - p.AvgBuyPrice) / p.AvgBuyPrice * 100
		}
		req.Positions = append(req.Positions, dto.PositionContext{
			Symbol:       p.Symbol,
			Quantity:     p.Quantity,
			AvgBuyPrice:  p.AvgBuyPrice,
			CurrentPrice: p.CurrentPrice,
			ProfitPct:    profitPct,
		})
	}
	req.PortfolioValue = portfolioValue

	for _, o := range openOrders {
		req.OpenOrders = append(req.OpenOrders, dto.OrderContext{
			Symbol:       o.Symbol,
			OrderType:    string(o.OrderType),
			Quantity:     o.Quantity,
			TriggerPrice: o.TriggerPrice,
			Status:       string(o.Status),
		})
	}
	for _, sig := range recentSignals {
		req.RecentSignals = append(req.RecentSignals, dto.SignalContext{
			Symbol:     sig.Symbol,
			Direction:  string(sig.Direction),
			Confidence: sig.Confidence,
			CreatedAt:  sig.CreatedAt,
		})
	}
	return req
}

func (s *cycleService) persistSignals(ctx context.Context, signals []dto.AdvisorySignal) {
	for _, sig := range signals {
		row := &entity.Signal{
			Symbol:          sig.Symbol,
			Direction:       entity.SignalDirection(sig.Direction),
			Confidence:      sig.Confidence,
			Reasoning:       sig.Reasoning,
			IdealEntryPrice: sig.IdealEntryPrice,
			TargetPrice:     sig.TargetPrice,
			StopLoss:        sig.StopLoss,
			RiskLevel:       sig.RiskLevel,
		}
		if data, err := json.Marshal(sig); err == nil {
			row.Data = datatypes.JSON(data)
		}
		if err := s.signalRepo.Create(ctx, row); err != nil {
			s.log.Error("Failed to persist signal", logger.ErrorField(err), logger.StringField("symbol", sig.Symbol))
		}
	}
	if _, err := s.signalRepo.PruneKeepLatest(ctx, signalMemory); err != nil {
		s.log.Error("Failed to prune signals", logger.ErrorField(err))
	}
}

// applyConfidenceGate drops candidates whose best signal confidence for the
// symbol is below the floor. Candidates without any signal pass through.
func applyConfidenceGate(candidates []dto.SuggestedOrder, signals []dto.AdvisorySignal, minConfidence float64) ([]dto.SuggestedOrder, []dto.SkipDecision) {
	if minConfidence <= 0 || len(candidates) == 0 {
		return candidates, nil
	}

	best := make(map[string]float64, len(signals))
	for _, sig := range signals {
		if sig.Confidence > best[sig.Symbol] {
			best[sig.Symbol] = sig.Confidence
		}
	}

	kept := make([]dto.SuggestedOrder, 0, len(candidates))
	var skips []dto.SkipDecision
	for _, c := range candidates {
		confidence, ok := best[c.Symbol]
		if ok && confidence < minConfidence {
			skips = append(skips, dto.SkipDecision{
				Symbol:    c.Symbol,
				OrderType: c.OrderType,
				Rule:      "confidence",
				Reason:    fmt.Sprintf("best signal confidence %.0f is below the %.0f floor", confidence, minConfidence),
			})
			continue
		}
		kept = append(kept, c)
	}
	return kept, skips
}

// sizeOrders resolves zero quantities on auto-generated candidates. Buys get
// as many whole shares as the cash budget allows under the position weight
// cap, sells the held quantity net of open sells. Whatever stays at zero is
// rejected by the validation in order creation.
func (s *cycleService) sizeOrders(candidates []dto.SuggestedOrder, settings *entity.AutopilotSettings, portfolio *entity.Portfolio, positions []entity.Position, openOrders []entity.Order) []dto.SuggestedOrder {
	ledger := newReservationLedger(s.cfg.Fees, portfolio.CashBalance, positions, openOrders)

	positionValue := make(map[string]float64, len(positions))
	portfolioValue := portfolio.CashBalance
	for _, p := range positions {
		positionValue[p.Symbol] = p.MarketValue()
		portfolioValue += p.MarketValue()
	}

	sized := make([]dto.SuggestedOrder, 0, len(candidates))
	for _, c := range candidates {
		if c.Quantity > 0 || c.TriggerPrice <= 0 {
			sized = append(sized, c)
			continue
		}

		orderType := entity.OrderType(c.OrderType)
		switch {
		case orderType.IsBuy():
			budget := ledger.availableCash
			if settings.MaxPositionPercent > 0 && portfolioValue > 0 {
				headroom := settings.MaxPositionPercent/100*portfolioValue - positionValue[c.Symbol]
				if headroom < budget {
					budget = headroom
				}
			}
			qty := 0
			if budget > 0 {
				qty = int(budget / c.TriggerPrice)
			}
			for qty > 0 {
				notional := float64(qty) * c.TriggerPrice
				if notional+TransactionFee(s.cfg.Fees, notional) <= budget {
					break
				}
				qty--
			}
			c.Quantity = qty
			if qty > 0 {
				notional := float64(qty) * c.TriggerPrice
				ledger.reserveCash(notional + TransactionFee(s.cfg.Fees, notional))
			}
		case orderType.IsSell():
			c.Quantity = ledger.availableShares[c.Symbol]
			if c.Quantity > 0 {
				ledger.reserveShares(c.Symbol, c.Quantity)
			}
		}

		s.log.Debug("Sized auto-generated order",
			logger.StringField("symbol", c.Symbol),
			logger.StringField("order_type", c.OrderType),
			logger.IntField("quantity", c.Quantity))
		sized = append(sized, c)
	}
	return sized
}

func (s *cycleService) placeOrders(ctx context.Context, settings *entity.AutopilotSettings, approved []dto.SuggestedOrder, summary *dto.CycleSummary) {
	if settings.Mode == entity.AutopilotModeSuggestOnly {
		for _, c := range approved {
			text := fmt.Sprintf("%s %d %s @ %.2f", c.OrderType, c.Quantity, c.Symbol, c.TriggerPrice)
			s.audit(ctx, common.LogCategoryOrder, "Suggested without placing: "+text, c.Symbol, c)
			summary.Suggestions = append(summary.Suggestions, text)
		}
		return
	}

	for _, c := range approved {
		if !utils.ShouldContinue(ctx, s.log) {
			return
		}
		order, skip, err := s.orderSvc.CreateFromSuggestion(ctx, c, settings)
		if err != nil {
			s.log.Error("Failed to create order", logger.ErrorField(err), logger.StringField("symbol", c.Symbol))
			continue
		}
		if skip != nil {
			s.recordSkips(ctx, summary, []dto.SkipDecision{*skip})
			continue
		}
		summary.OrdersCreated = append(summary.OrdersCreated, dto.OrderContext{
			Symbol:       order.Symbol,
			OrderType:    string(order.OrderType),
			Quantity:     order.Quantity,
			TriggerPrice: order.TriggerPrice,
			Status:       string(order.Status),
		})
	}
}

func (s *cycleService) recordSkips(ctx context.Context, summary *dto.CycleSummary, skips []dto.SkipDecision) {
	for _, skip := range skips {
		s.audit(ctx, common.LogCategorySafety, fmt.Sprintf("Rejected %s %s: %s", skip.OrderType, skip.Symbol, skip.Reason), skip.Symbol, skip)
	}
	summary.Skipped = append(summary.Skipped, skips...)
}

// finishCycle persists the post-cycle state on a fresh context so a
// cancelled or timed-out cycle still records that it ran.
func (s *cycleService) finishCycle(settings *entity.AutopilotSettings, summary *dto.CycleSummary, advisoryRan bool, cycleErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	now := time.Now()
	state, err := s.stateRepo.Get(ctx)
	if err != nil {
		s.log.Error("Failed to load autopilot state", logger.ErrorField(err))
	} else {
		state.IsRunning = false
		state.LastRunAt = &now
		state.NextRunAt = utils.ToPointer(now.Add(s.interval(settings)))
		state.CycleCount++
		state.TotalOrdersCreated += int64(len(summary.OrdersCreated))
		if cycleErr != nil {
			state.LastError = cycleErr.Error()
		} else {
			state.LastError = ""
		}
		if err := s.stateRepo.Update(ctx, state); err != nil {
			s.log.Error("Failed to update autopilot state", logger.ErrorField(err))
		}
	}

	if cycleErr != nil {
		s.log.Error("Cycle failed", logger.ErrorField(cycleErr))
		s.audit(ctx, common.LogCategoryError, fmt.Sprintf("Cycle failed: %v", cycleErr), "", nil)
		s.notify(telegram.FormatErrorAlertMessage(now, "cycle", cycleErr.Error(), ""))
		return
	}

	s.log.Info("Cycle finished",
		logger.DurationField("duration", summary.Duration),
		logger.IntField("symbols", summary.SymbolsScanned),
		logger.IntField("signals", summary.SignalCount),
		logger.IntField("orders_created", len(summary.OrdersCreated)),
		logger.IntField("skipped", len(summary.Skipped)))
	s.audit(ctx, common.LogCategoryCycle, fmt.Sprintf("Cycle finished: %d symbols, %d signals, %d orders created, %d skipped", summary.SymbolsScanned, summary.SignalCount, len(summary.OrdersCreated), len(summary.Skipped)), "", summary)

	if advisoryRan {
		for _, message := range telegram.FormatCycleSummaryMessages(summary) {
			s.notify(message)
		}
	}
}

func (s *cycleService) setRunning(ctx context.Context, running bool) {
	state, err := s.stateRepo.Get(ctx)
	if err != nil {
		s.log.Error("Failed to load autopilot state", logger.ErrorField(err))
		return
	}
	state.IsRunning = running
	if err := s.stateRepo.Update(ctx, state); err != nil {
		s.log.Error("Failed to update autopilot state", logger.ErrorField(err))
	}
}

func (s *cycleService) publishNextRun(ctx context.Context, at time.Time) {
	state, err := s.stateRepo.Get(ctx)
	if err != nil {
		s.log.Error("Failed to load autopilot state", logger.ErrorField(err))
		return
	}
	state.NextRunAt = &at
	if err := s.stateRepo.Update(ctx, state); err != nil {
		s.log.Error("Failed to update autopilot state", logger.ErrorField(err))
	}
}

// clearSchedule wipes NextRunAt while the autopilot is disabled. Counters
// stay untouched.
func (s *cycleService) clearSchedule(ctx context.Context) {
	state, err := s.stateRepo.Get(ctx)
	if err != nil {
		s.log.Error("Failed to load autopilot state", logger.ErrorField(err))
		return
	}
	if state.NextRunAt == nil && !state.IsRunning {
		return
	}
	state.NextRunAt = nil
	state.IsRunning = false
	if err := s.stateRepo.Update(ctx, state); err != nil {
		s.log.Error("Failed to update autopilot state", logger.ErrorField(err))
	}
}

// pause waits out d unless the scheduler is stopped or woken first.
func (s *cycleService) pause(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-s.stopCh:
		return false
	case <-s.wakeCh:
		return true
	case <-timer.C:
		return true
	}
}

func (s *cycleService) interval(settings *entity.AutopilotSettings) time.Duration {
	if settings.IntervalMinutes > 0 {
		return time.Duration(settings.IntervalMinutes) * time.Minute
	}
	return time.Hour
}

func (s *cycleService) graceDelay() time.Duration {
	if s.cfg.Autopilot.GraceDelay > 0 {
		return s.cfg.Autopilot.GraceDelay
	}
	return 15 * time.Second
}

func (s *cycleService) cycleTimeout() time.Duration {
	if s.cfg.Autopilot.CycleTimeout > 0 {
		return s.cfg.Autopilot.CycleTimeout
	}
	return 10 * time.Minute
}

func (s *cycleService) audit(ctx context.Context, category, message, symbol string, details interface{}) {
	entry := &entity.AutopilotLog{
		Category: category,
		Message:  message,
		Symbol:   symbol,
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

func (s *cycleService) notify(message string) {
	if err := s.notifier.SendMessage(message); err != nil {
		s.log.Error("Failed to send telegram message", logger.ErrorField(err))
	}
}
