package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-autopilot/internal/autopilot/config"
	delivery "stock-autopilot/internal/autopilot/delivery/http"
	_ "stock-autopilot/internal/autopilot/docs"
	"stock-autopilot/internal/autopilot/repository"
	"stock-autopilot/internal/autopilot/service"
	"stock-autopilot/pkg/logger"
	"stock-autopilot/pkg/postgres"
	"stock-autopilot/pkg/redis"
	"stock-autopilot/pkg/telegram"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	swagger "github.com/swaggo/echo-swagger"
	"google.golang.org/genai"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the autopilot service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Autopilot Service", logger.StringField("name", cfg.App.Name))

	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(db.DB)
	positionRepo := repository.NewPositionRepository(db.DB)
	portfolioRepo := repository.NewPortfolioRepository(db.DB)
	signalRepo := repository.NewSignalRepository(db.DB)
	logRepo := repository.NewAutopilotLogRepository(db.DB)
	settingsRepo := repository.NewSettingsRepository(db.DB)
	stateRepo := repository.NewStateRepository(db.DB)
	watchlistRepo := repository.NewWatchlistRepository(db.DB)

	marketDataRepo, err := repository.NewMarketDataRepository(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize market data repository", logger.ErrorField(err))
	}
	newsRepo := repository.NewNewsDigestRepository(cfg, appLogger)

	// Initialize AI provider
	var advisoryRepo repository.AdvisoryRepository
	switch cfg.AI.Provider {
	case "gemini":
		genAiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey: cfg.Gemini.APIKey,
		})
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini AI client", logger.ErrorField(err))
		}
		advisoryRepo, err = repository.NewGeminiAdvisoryRepository(cfg, appLogger, genAiClient)
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini advisory repository", logger.ErrorField(err))
		}
	case "openai":
		advisoryRepo = repository.NewOpenAIAdvisoryRepository(cfg, appLogger)
	case "openrouter":
		advisoryRepo = repository.NewOpenRouterAdvisoryRepository(cfg, appLogger)
	default:
		appLogger.Fatal("Invalid AI provider specified in config", logger.StringField("provider", cfg.AI.Provider))
	}

	notifier := telegram.NewNoop()
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
	}

	calendars, err := service.NewMarketCalendars(cfg.Markets)
	if err != nil {
		appLogger.Fatal("Failed to initialize market calendars", logger.ErrorField(err))
	}

	// Initialize services
	orderSvc := service.NewOrderService(cfg, appLogger, db.DB, orderRepo, positionRepo, portfolioRepo, logRepo, notifier)
	safetySvc := service.NewSafetyService(cfg, appLogger)
	watcherSvc := service.NewWatcherService(cfg, appLogger, orderSvc, orderRepo, settingsRepo, marketDataRepo, logRepo, notifier, redisClient)
	cycleSvc := service.NewCycleService(cfg, appLogger, calendars, orderSvc, safetySvc, marketDataRepo, advisoryRepo, newsRepo, orderRepo, positionRepo, portfolioRepo, watchlistRepo, signalRepo, settingsRepo, stateRepo, logRepo, notifier)
	housekeepingSvc, err := service.NewHousekeepingService(cfg, appLogger, calendars, orderSvc, orderRepo, positionRepo, portfolioRepo, signalRepo, logRepo, notifier)
	if err != nil {
		appLogger.Fatal("Failed to initialize housekeeping service", logger.ErrorField(err))
	}

	go cycleSvc.Start(ctx)
	go watcherSvc.Start(ctx)
	go housekeepingSvc.Start(ctx)

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	apiV1 := e.Group("/api/v1")

	autopilotHandler := delivery.NewAutopilotHandler(cycleSvc, settingsRepo, stateRepo, logRepo, appLogger)
	autopilotHandler.RegisterRoutes(apiV1.Group("/autopilot"))

	orderHandler := delivery.NewOrderHandler(orderSvc, orderRepo, appLogger)
	orderHandler.RegisterRoutes(apiV1.Group("/orders"))

	portfolioHandler := delivery.NewPortfolioHandler(portfolioRepo, positionRepo, watchlistRepo, appLogger)
	portfolioHandler.RegisterRoutes(apiV1)

	e.GET("/swagger/*", swagger.WrapHandler)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.StringField("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop()
		}
	}()

	<-ctx.Done()

	appLogger.Info("Shutting down autopilot service...")
	cycleSvc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Autopilot service stopped.")
}

// @title Stock Autopilot API
// @version 1.0
// @description Control plane for the automated stock trading autopilot.
// @BasePath /api/v1
func main() {
	rootCmd := &cobra.Command{Use: "autopilot-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing autopilot-service CLI: %s\n", err)
		os.Exit(1)
	}
}
