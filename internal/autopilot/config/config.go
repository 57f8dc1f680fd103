package config

import (
	"time"

	"stock-autopilot/pkg/config"
)

// Autopilot holds the core loop tuning knobs. Behavioural settings (mode,
// interval, risk limits) live in the database so the API can change them at
// runtime; everything here is operational.
type Autopilot struct {
	GraceDelay            time.Duration `mapstructure:"grace_delay"`
	CycleTimeout          time.Duration `mapstructure:"cycle_timeout"`
	WatcherInterval       time.Duration `mapstructure:"watcher_interval"`
	CircuitBreakerPercent float64       `mapstructure:"circuit_breaker_percent"`
	AlertResendInterval   time.Duration `mapstructure:"alert_resend_interval"`
}

// Fees describes the broker fee model: max(minimum, notional*percent/100).
type Fees struct {
	Minimum float64 `mapstructure:"minimum"`
	Percent float64 `mapstructure:"percent"`
}

// AI selects the advisory provider.
type AI struct {
	Provider string `mapstructure:"provider"`
}

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	BaseURL             string `mapstructure:"base_url"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// OpenAI holds the configuration for the OpenAI API.
type OpenAI struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	BaseURL             string `mapstructure:"base_url"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// OpenRouter holds the configuration for the OpenRouter API.
type OpenRouter struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// MarketData holds the configuration for the quote/history API.
type MarketData struct {
	BaseURL             string        `mapstructure:"base_url"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
}

// Market describes one trading venue calendar.
type Market struct {
	Name     string `mapstructure:"name"`
	Timezone string `mapstructure:"timezone"`
	Open     string `mapstructure:"open"`
	Close    string `mapstructure:"close"`
}

// News holds the configuration for the headline digest.
type News struct {
	Enabled         bool          `mapstructure:"enabled"`
	FeedURL         string        `mapstructure:"feed_url"`
	MaxArticles     int           `mapstructure:"max_articles"`
	SnippetMaxChars int           `mapstructure:"snippet_max_chars"`
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

// Housekeeping holds the cron expressions for the maintenance jobs.
type Housekeeping struct {
	DailySummaryCron string `mapstructure:"daily_summary_cron"`
	PruneCron        string `mapstructure:"prune_cron"`
	LogRetentionDays int    `mapstructure:"log_retention_days"`
	SignalKeep       int    `mapstructure:"signal_keep"`
}

// Config holds the full configuration for the autopilot service.
type Config struct {
	App          config.App      `mapstructure:"app"`
	Logger       config.Logger   `mapstructure:"logger"`
	Database     config.Database `mapstructure:"database"`
	Redis        config.Redis    `mapstructure:"redis"`
	API          config.API      `mapstructure:"api"`
	Autopilot    Autopilot       `mapstructure:"autopilot"`
	Fees         Fees            `mapstructure:"fees"`
	AI           AI              `mapstructure:"ai"`
	Gemini       Gemini          `mapstructure:"gemini"`
	OpenAI       OpenAI          `mapstructure:"openai"`
	OpenRouter   OpenRouter      `mapstructure:"openrouter"`
	Telegram     Telegram        `mapstructure:"telegram"`
	MarketData   MarketData      `mapstructure:"market_data"`
	Markets      []Market        `mapstructure:"markets"`
	News         News            `mapstructure:"news"`
	Housekeeping Housekeeping    `mapstructure:"housekeeping"`
}

// Load loads the autopilot configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
