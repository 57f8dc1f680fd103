package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"stock-autopilot/internal/autopilot/config"
	"stock-autopilot/internal/autopilot/repository"
	"stock-autopilot/pkg/logger"
	"stock-autopilot/pkg/telegram"
)

const (
	defaultPruneCron        = "0 3 * * *"
	defaultDailySummaryCron = "0 18 * * 1-5"
	defaultLogRetentionDays = 90
)

// HousekeepingService runs the recurring maintenance jobs: pruning old audit
// rows and signals, sweeping expired orders, and the daily portfolio summary.
type HousekeepingService interface {
	Start(ctx context.Context)
	RunPrune(ctx context.Context)
	SendDailySummary(ctx context.Context)
}

// NewHousekeepingService creates the maintenance scheduler. Cron expressions
// are parsed up front so a bad config fails at startup rather than at 3 AM.
func NewHousekeepingService(
	cfg *config.Config,
	log *logger.Logger,
	calendars []MarketCalendar,
	orderSvc OrderService,
	orderRepo repository.OrderRepository,
	positionRepo repository.PositionRepository,
	portfolioRepo repository.PortfolioRepository,
	signalRepo repository.SignalRepository,
	logRepo repository.AutopilotLogRepository,
	notifier telegram.Notifier,
) (HousekeepingService, error) {
	s := &housekeepingService{
		cfg:           cfg,
		log:           log,
		calendars:     calendars,
		orderSvc:      orderSvc,
		orderRepo:     orderRepo,
		positionRepo:  positionRepo,
		portfolioRepo: portfolioRepo,
		signalRepo:    signalRepo,
		logRepo:       logRepo,
		notifier:      notifier,
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	pruneExpr := cfg.Housekeeping.PruneCron
	if pruneExpr == "" {
		pruneExpr = defaultPruneCron
	}
	pruneSchedule, err := parser.Parse(pruneExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid prune cron %q: %w", pruneExpr, err)
	}

	summaryExpr := cfg.Housekeeping.DailySummaryCron
	if summaryExpr == "" {
		summaryExpr = defaultDailySummaryCron
	}
	summarySchedule, err := parser.Parse(summaryExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid daily summary cron %q: %w", summaryExpr, err)
	}

	now := time.Now()
	s.jobs = []*housekeepingJob{
		{name: "prune", schedule: pruneSchedule, next: pruneSchedule.Next(now), run: s.RunPrune},
		{name: "daily_summary", schedule: summarySchedule, next: summarySchedule.Next(now), run: s.SendDailySummary},
	}
	return s, nil
}

type housekeepingJob struct {
	name     string
	schedule cron.Schedule
	next     time.Time
	run      func(ctx context.Context)
}

type housekeepingService struct {
	cfg           *config.Config
	log           *logger.Logger
	calendars     []MarketCalendar
	orderSvc      OrderService
	orderRepo     repository.OrderRepository
	positionRepo  repository.PositionRepository
	portfolioRepo repository.PortfolioRepository
	signalRepo    repository.SignalRepository
	logRepo       repository.AutopilotLogRepository
	notifier      telegram.Notifier
	jobs          []*housekeepingJob
}

// Start blocks until the context is cancelled, firing jobs as they come due.
func (s *housekeepingService) Start(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Housekeeping service stopping")
			return
		case <-ticker.C:
			now := time.Now()
			for _, job := range s.jobs {
				if now.Before(job.next) {
					continue
				}
				job.next = job.schedule.Next(now)
				s.log.Debug("Running housekeeping job", logger.StringField("job", job.name))
				job.run(ctx)
			}
		}
	}
}

// RunPrune deletes audit rows past retention, trims the signal history and
// sweeps orders whose expiry date has passed.
func (s *housekeepingService) RunPrune(ctx context.Context) {
	retention := s.cfg.Housekeeping.LogRetentionDays
	if retention <= 0 {
		retention = defaultLogRetentionDays
	}
	cutoff := time.Now().AddDate(0, 0, -retention)
	if deleted, err := s.logRepo.DeleteBefore(ctx, cutoff); err != nil {
		s.log.Error("Failed to prune autopilot logs", logger.ErrorField(err))
	} else if deleted > 0 {
		s.log.Info("Pruned autopilot logs",
			logger.Int64Field("deleted", deleted),
			logger.StringField("cutoff", cutoff.Format("2006-01-02")),
		)
	}

	keep := s.cfg.Housekeeping.SignalKeep
	if keep <= 0 {
		keep = signalMemory
	}
	if deleted, err := s.signalRepo.PruneKeepLatest(ctx, keep); err != nil {
		s.log.Error("Failed to prune signals", logger.ErrorField(err))
	} else if deleted > 0 {
		s.log.Info("Pruned signal history", logger.Int64Field("deleted", deleted))
	}

	if expired, err := s.orderSvc.ExpireDueOrders(ctx); err != nil {
		s.log.Error("Failed to expire due orders", logger.ErrorField(err))
	} else if expired > 0 {
		s.log.Info("Expired overdue orders", logger.Int64Field("expired", expired))
	}
}

// SendDailySummary pushes the end of day portfolio snapshot to Telegram.
// Weekends stay quiet.
func (s *housekeepingService) SendDailySummary(ctx context.Context) {
	if !AnyMarketTradesOn(s.calendars, time.Now()) {
		return
	}

	portfolio, err := s.portfolioRepo.Get(ctx)
	if err != nil {
		s.log.Error("Failed to load portfolio for daily summary", logger.ErrorField(err))
		return
	}
	positions, err := s.positionRepo.GetAll(ctx)
	if err != nil {
		s.log.Error("Failed to load positions for daily summary", logger.ErrorField(err))
		return
	}
	openOrders, err := s.orderRepo.GetOpenOrders(ctx)
	if err != nil {
		s.log.Error("Failed to load open orders for daily summary", logger.ErrorField(err))
		return
	}

	if err := s.notifier.SendMessage(telegram.FormatDailySummaryMessage(portfolio, positions, openOrders)); err != nil {
		s.log.Error("Failed to send daily summary", logger.ErrorField(err))
		return
	}
	s.log.InfoContext(ctx, "Daily summary sent",
		logger.IntField("positions", len(positions)),
		logger.IntField("open_orders", len(openOrders)),
	)
}
