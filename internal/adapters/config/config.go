package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"argus/pkg/errors"
)

type Config struct {
	App           AppConfig
	Server        ServerConfig
	Redis         RedisConfig
	Telemetry     TelemetryConfig
	Experiments   ExperimentConfig
	Pricing       PricingConfig
	Alerting      AlertingConfig
	Budget        BudgetConfig
	RateLimit     RateLimitConfig
	Kafka         KafkaConfig
	ClickHouse    ClickHouseConfig
	Telegram      TelegramConfig
	Slack         SlackConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"argus"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8000"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TelemetryConfig controls request record retention and scan behavior.
// Raw records expire after RecordTTL; the day and model index lists
// keep ids around for IndexTTL so aggregation can look further back.
type TelemetryConfig struct {
	RecordTTL    time.Duration `envconfig:"TELEMETRY_RECORD_TTL" default:"24h"`
	IndexTTL     time.Duration `envconfig:"TELEMETRY_INDEX_TTL" default:"720h"`
	ScanPageSize int64         `envconfig:"TELEMETRY_SCAN_PAGE_SIZE" default:"500"`
	OpTimeout    time.Duration `envconfig:"TELEMETRY_OP_TIMEOUT" default:"5s"`
}

type ExperimentConfig struct {
	DefaultSplit float64       `envconfig:"EXPERIMENT_DEFAULT_SPLIT" default:"0.5"`
	ConfigTTL    time.Duration `envconfig:"EXPERIMENT_CONFIG_TTL" default:"24h"`
}

type PricingConfig struct {
	// File optionally points at a YAML rate table overriding the built-ins.
	File  string `envconfig:"PRICING_FILE"`
	Watch bool   `envconfig:"PRICING_WATCH" default:"false"`
}

type AlertingConfig struct {
	CostThresholdUSD float64 `envconfig:"ALERT_COST_THRESHOLD_USD" default:"100.0"`
	TrendEnabled     bool    `envconfig:"ALERT_TREND_ENABLED" default:"true"`
	TrendWindowDays  int     `envconfig:"ALERT_TREND_WINDOW_DAYS" default:"14"`
	TrendSpikeFactor float64 `envconfig:"ALERT_TREND_SPIKE_FACTOR" default:"2.0"`
}

type BudgetConfig struct {
	Enabled       bool    `envconfig:"BUDGET_ENABLED" default:"false"`
	DailyLimitUSD float64 `envconfig:"BUDGET_DAILY_LIMIT_USD" default:"50.0"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `envconfig:"RATE_LIMIT_RPM" default:"60"`
	Burst             int `envconfig:"RATE_LIMIT_BURST" default:"10"`
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"argus"`
}

type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"llmops"`
}

type TelegramConfig struct {
	Enabled  bool   `envconfig:"TELEGRAM_ENABLED" default:"false"`
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   int64  `envconfig:"TELEGRAM_CHAT_ID"`
}

type SlackConfig struct {
	Enabled  bool   `envconfig:"SLACK_ENABLED" default:"false"`
	BotToken string `envconfig:"SLACK_BOT_TOKEN"`
	Channel  string `envconfig:"SLACK_CHANNEL"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for all background workers
type WorkerConfig struct {
	AlertCheckInterval   time.Duration `envconfig:"WORKER_ALERT_CHECK_INTERVAL" default:"15m"`
	ArchiveFlushInterval time.Duration `envconfig:"WORKER_ARCHIVE_FLUSH_INTERVAL" default:"5s"`
	DailyReportInterval  time.Duration `envconfig:"WORKER_DAILY_REPORT_INTERVAL" default:"24h"`
	// DailyReportCron optionally overrides the interval with a 5-field
	// cron expression for the first fire time.
	DailyReportCron string `envconfig:"WORKER_DAILY_REPORT_CRON"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.NewValidationError("KAFKA_BROKERS", "required when kafka is enabled", nil)
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.NewValidationError("TELEGRAM_BOT_TOKEN", "required when telegram is enabled", nil)
	}
	if c.Slack.Enabled && c.Slack.BotToken == "" {
		return errors.NewValidationError("SLACK_BOT_TOKEN", "required when slack is enabled", nil)
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return errors.NewValidationError("RATE_LIMIT_RPM", "must be positive", c.RateLimit.RequestsPerMinute)
	}
	return nil
}
