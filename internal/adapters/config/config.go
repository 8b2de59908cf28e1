package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"hermes/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	LLM           LLMConfig
	NewsAPI       NewsAPIConfig
	RSS           RSSConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"hermes"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Locale   string `envconfig:"DEFAULT_LOCALE" default:"en_US"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"hermes"`
}

// Enabled reports whether a ClickHouse usage sink is configured at all.
func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   int64  `envconfig:"TELEGRAM_ALERT_CHAT_ID"`
}

func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != 0
}

// LLMConfig controls the analysis gateway: model selection, sampling,
// and the cross-cutting resource bounds (cost cap, timeout, retries).
type LLMConfig struct {
	APIKey           string        `envconfig:"OPENAI_API_KEY"`
	Model            string        `envconfig:"ANALYSIS_MODEL" default:"gpt-4o-mini"`
	MaxTokens        int           `envconfig:"ANALYSIS_MAX_TOKENS" default:"512"`
	Temperature      float64       `envconfig:"ANALYSIS_TEMPERATURE" default:"0.2"`
	CostCapUSD       float64       `envconfig:"ANALYSIS_COST_CAP_USD" default:"0.02"`
	DailyCostCapUSD  float64       `envconfig:"ANALYSIS_DAILY_COST_CAP_USD" default:"0"`
	RequestTimeout   time.Duration `envconfig:"ANALYSIS_REQUEST_TIMEOUT" default:"15s"`
	RetryMaxAttempts int           `envconfig:"ANALYSIS_RETRY_MAX_ATTEMPTS" default:"2"`
	MaxChars         int           `envconfig:"ANALYSIS_MAX_CHARS" default:"5000"`
	RatePerMinute    float64       `envconfig:"ANALYSIS_RATE_PER_MINUTE" default:"60"`
}

// Validate enforces the load-time bounds on the gateway settings.
func (c LLMConfig) Validate() error {
	if c.MaxTokens <= 0 {
		return errors.NewValidationError("ANALYSIS_MAX_TOKENS", "must be positive", c.MaxTokens)
	}
	if c.Temperature < 0 {
		return errors.NewValidationError("ANALYSIS_TEMPERATURE", "must be non-negative", c.Temperature)
	}
	if c.CostCapUSD <= 0 {
		return errors.NewValidationError("ANALYSIS_COST_CAP_USD", "must be positive", c.CostCapUSD)
	}
	if c.RequestTimeout <= 0 {
		return errors.NewValidationError("ANALYSIS_REQUEST_TIMEOUT", "must be positive", c.RequestTimeout)
	}
	if c.RetryMaxAttempts < 0 {
		return errors.NewValidationError("ANALYSIS_RETRY_MAX_ATTEMPTS", "must be non-negative", c.RetryMaxAttempts)
	}
	if c.MaxChars < 500 {
		return errors.NewValidationError("ANALYSIS_MAX_CHARS", "must be at least 500", c.MaxChars)
	}
	return nil
}

type NewsAPIConfig struct {
	APIKey   string        `envconfig:"NEWS_API_KEY"`
	Endpoint string        `envconfig:"NEWS_API_ENDPOINT" default:"https://newsapi.org/v2/everything"`
	Timeout  time.Duration `envconfig:"NEWS_API_TIMEOUT" default:"5s"`
	PageSize int           `envconfig:"NEWS_API_PAGE_SIZE" default:"20"`
	Language string        `envconfig:"NEWS_API_LANG" default:"en"`
}

type RSSConfig struct {
	// Comma-separated feed URLs polled alongside the news API.
	Feeds   []string      `envconfig:"RSS_FEEDS"`
	Timeout time.Duration `envconfig:"RSS_TIMEOUT" default:"10s"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for the pipeline workers.
type WorkerConfig struct {
	CollectInterval time.Duration `envconfig:"WORKER_COLLECT_INTERVAL" default:"15m"`
	AnalyzeInterval time.Duration `envconfig:"WORKER_ANALYZE_INTERVAL" default:"30m"`
	AnalyzeLookback time.Duration `envconfig:"WORKER_ANALYZE_LOOKBACK" default:"24h"`
	DeliverInterval time.Duration `envconfig:"WORKER_DELIVER_INTERVAL" default:"5m"`

	// Comma-separated ticker list shared by all pipeline workers.
	Tickers []string `envconfig:"WORKER_TICKERS" default:"AAPL"`

	// Keystore TTL for fingerprints seen by the collector.
	DedupeTTL time.Duration `envconfig:"WORKER_DEDUPE_TTL" default:"72h"`
}

// Load reads configuration from environment variables.
// It first tries to load .env file (useful for local development).
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.LLM.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid llm config")
	}

	return &cfg, nil
}
