package bootstrap

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	chclient "argus/internal/adapters/clickhouse"
	"argus/internal/adapters/config"
	errnoop "argus/internal/adapters/errors/noop"
	"argus/internal/adapters/errors/sentry"
	"argus/internal/adapters/kafka"
	redisclient "argus/internal/adapters/redis"
	"argus/internal/adapters/slack"
	"argus/internal/adapters/telegram"
	"argus/internal/api"
	"argus/internal/api/health"
	"argus/internal/api/v1"
	"argus/internal/api/ws"
	"argus/internal/consumers"
	"argus/internal/events"
	"argus/internal/kv"
	"argus/internal/metrics"
	"argus/internal/pricing"
	chrepo "argus/internal/repository/clickhouse"
	"argus/internal/repository/kvstore"
	alertingsvc "argus/internal/services/alerting"
	analyticssvc "argus/internal/services/analytics"
	budgetsvc "argus/internal/services/budget"
	evaluationsvc "argus/internal/services/evaluation"
	experimentsvc "argus/internal/services/experiment"
	modelsvc "argus/internal/services/models"
	promptsvc "argus/internal/services/prompts"
	telemetrysvc "argus/internal/services/telemetry"
	"argus/internal/workers"
	"argus/pkg/errors"
	"argus/pkg/logger"
	"argus/pkg/templates"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure initializes data stores and the pricing table
func (c *Container) MustInitInfrastructure() {
	var err error

	// Redis backs the telemetry, prompt and experiment key-value state
	c.Log.Info("Connecting to Redis...")
	c.Redis, err = redisclient.NewClient(c.Config.Redis)
	if err != nil {
		c.Log.Fatalf("failed to connect redis: %v", err)
	}
	c.Log.Info("✓ Redis connected")

	c.Store = kv.NewRedisStore(c.Redis.Client(), c.Config.Telemetry.OpTimeout)

	// ClickHouse is optional, it only backs long-term request archival
	if c.Config.ClickHouse.Enabled {
		c.Log.Info("Connecting to ClickHouse...")
		c.CH, err = chclient.NewClient(c.Config.ClickHouse)
		if err != nil {
			c.Log.Fatalf("failed to connect clickhouse: %v", err)
		}
		c.Log.Info("✓ ClickHouse connected")
	}

	c.Rates = providePricingTable(c.Config, c.Log)
}

// ========================================
// Phase 3: Domain Layer - Repositories
// ========================================

// MustInitRepositories initializes all domain repositories
func (c *Container) MustInitRepositories() {
	c.Repos.Telemetry = kvstore.NewTelemetryRepository(
		c.Store,
		c.Config.Telemetry.RecordTTL,
		c.Config.Telemetry.IndexTTL,
	)
	c.Repos.Prompts = kvstore.NewPromptRepository(c.Store)
	c.Repos.Experiments = kvstore.NewExperimentRepository(c.Store, c.Config.Experiments.ConfigTTL)

	if c.CH != nil {
		c.Repos.Archive = chrepo.NewArchiveRepository(c.CH.Conn())

		schemaCtx, cancel := context.WithTimeout(c.Context, 10*time.Second)
		defer cancel()
		if err := c.Repos.Archive.EnsureSchema(schemaCtx); err != nil {
			c.Log.Fatalf("failed to ensure archive schema: %v", err)
		}
		c.Log.Info("✓ Archive schema ensured")
	}

	c.Log.Info("✓ Repositories initialized")
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters initializes external adapters (Kafka, notifiers, feed)
func (c *Container) MustInitAdapters() {
	// Kafka event pipeline
	if c.Config.Kafka.Enabled {
		c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
		c.Adapters.Events = events.NewPublisher(c.Adapters.KafkaProducer, c.Log)

		// The in-process consumer only exists to feed the archive
		if c.CH != nil {
			c.Adapters.RequestConsumer = provideKafkaConsumer(c.Config, kafka.TopicRequests, c.Log)
		}
	}

	// Pricing file watcher (hot reload of the rate table)
	if c.Config.Pricing.Watch && c.Config.Pricing.File != "" {
		c.Adapters.PricingWatcher = pricing.NewWatcher(c.Rates, c.Config.Pricing.File, c.Log)
	}

	// Live telemetry feed
	c.Adapters.Feed = ws.NewHub(c.Log)

	// Alert notification channels
	if c.Config.Telegram.Enabled {
		bot, err := telegram.NewBot(telegram.Config{
			Token: c.Config.Telegram.BotToken,
			Debug: c.Config.App.Debug,
		}, c.Log)
		if err != nil {
			c.Log.Fatalf("failed to create telegram bot: %v", err)
		}
		c.Adapters.TelegramBot = bot
		c.Adapters.TelegramNotifier = telegram.NewAlertNotifier(bot, templates.Get(), c.Config.Telegram.ChatID, c.Log)
		c.Log.Info("✓ Telegram notifier initialized")
	}

	if c.Config.Slack.Enabled {
		notifier, err := slack.NewNotifier(slack.Config{
			BotToken:  c.Config.Slack.BotToken,
			ChannelID: c.Config.Slack.Channel,
		}, c.Log)
		if err != nil {
			c.Log.Fatalf("failed to create slack notifier: %v", err)
		}
		c.Adapters.SlackNotifier = notifier
		c.Log.Info("✓ Slack notifier initialized")
	}

	c.Log.Info("✓ Adapters initialized")
}

// ========================================
// Phase 5: Domain Services
// ========================================

// MustInitServices initializes domain services
func (c *Container) MustInitServices() {
	// Budget first so it can ride the ingest sink chain
	if c.Config.Budget.Enabled {
		limit := decimal.NewFromFloat(c.Config.Budget.DailyLimitUSD)
		c.Services.Budget = budgetsvc.NewService(c.Store, limit, c.Log)
		c.Log.Infow("✓ Budget enforcement enabled", "daily_limit_usd", c.Config.Budget.DailyLimitUSD)
	}

	c.Services.Prompts = promptsvc.NewService(c.Repos.Prompts, c.Log)
	c.Services.Experiments = experimentsvc.NewService(c.Repos.Experiments, c.Services.Prompts, c.Log)

	c.Services.Telemetry = telemetrysvc.NewService(
		c.Repos.Telemetry,
		c.Rates,
		c.Config.Telemetry.ScanPageSize,
		c.Log,
		provideRecordSinks(c)...,
	)

	c.Services.Analytics = analyticssvc.NewService(c.Services.Telemetry, c.Log)
	c.Services.Models = modelsvc.NewService(c.Rates, c.Log)
	c.Services.Evaluator = evaluationsvc.NewService(c.Rates, c.Services.Telemetry, c.Log)

	// Alerting with optional trend detection and notifier fanout
	var trend *alertingsvc.TrendDetector
	if c.Config.Alerting.TrendEnabled {
		trend = alertingsvc.NewTrendDetector(
			c.Services.Analytics,
			c.Config.Alerting.TrendWindowDays,
			c.Config.Alerting.TrendSpikeFactor,
			c.Log,
		)
	}
	c.Services.Alerting = alertingsvc.NewService(
		c.Services.Analytics,
		c.Config.Alerting.CostThresholdUSD,
		trend,
		c.Log,
		provideAlertNotifiers(c)...,
	)

	c.Log.Info("✓ Services initialized")
}

// ========================================
// Phase 6: Application Layer
// ========================================

// MustInitApplication initializes the HTTP application layer
func (c *Container) MustInitApplication() {
	// Health handler probes every connected store
	checks := map[string]health.Checker{
		"redis": c.Redis,
	}
	if c.CH != nil {
		checks["clickhouse"] = c.CH
	}
	c.Application.HealthHandler = health.New(c.Log, c.Config.App.Name, Version, checks)

	// Ingest rate limiter, RPM spread evenly across the minute
	limiter := rate.NewLimiter(
		rate.Limit(float64(c.Config.RateLimit.RequestsPerMinute)/60.0),
		c.Config.RateLimit.Burst,
	)

	c.Application.API = v1.NewHandler(v1.Deps{
		Telemetry:   c.Services.Telemetry,
		Analytics:   c.Services.Analytics,
		Experiments: c.Services.Experiments,
		Prompts:     c.Services.Prompts,
		Models:      c.Services.Models,
		Alerting:    c.Services.Alerting,
		Evaluator:   c.Services.Evaluator,
		Budget:      c.Services.Budget,
		Limiter:     limiter,
	}, c.Log)

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Addr:         c.Config.Server.Addr(),
		ServiceName:  c.Config.App.Name,
		Version:      Version,
		ReadTimeout:  c.Config.Server.ReadTimeout,
		WriteTimeout: c.Config.Server.WriteTimeout,
	}, c.Application.HealthHandler, c.Application.API, c.Adapters.Feed, c.Log)

	// Initialize metrics
	metrics.Init()
	c.Log.Info("✓ Metrics initialized")

	c.Log.Info("✓ Application layer initialized")
}

// ========================================
// Phase 7: Background Processing
// ========================================

// MustInitBackground initializes background workers and consumers
func (c *Container) MustInitBackground() {
	// Archive consumer (Kafka + ClickHouse both enabled)
	if c.Adapters.RequestConsumer != nil && c.Repos.Archive != nil {
		c.Background.ArchiveSvc = consumers.NewArchiveConsumer(
			c.Adapters.RequestConsumer,
			c.Repos.Archive,
			c.Log,
		)
	}

	// Workers
	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(workers.NewAlertWorker(
		c.Services.Alerting,
		c.Config.Workers.AlertCheckInterval,
		true,
	))
	scheduler.RegisterWorker(workers.NewReportWorker(
		c.Services.Analytics,
		c.Config.Workers.DailyReportCron,
		true,
	))

	// In direct mode nothing else bounds how long rows sit buffered,
	// so a flush worker sweeps the archive on a fixed interval.
	if c.Repos.Archive != nil && c.Background.ArchiveSvc == nil {
		scheduler.RegisterWorker(workers.NewArchiveWorker(
			c.Repos.Archive,
			c.Config.Workers.ArchiveFlushInterval,
			true,
		))
	}

	c.Background.WorkerScheduler = scheduler

	c.Log.Info("✓ Background processing initialized")
}

// ========================================
// Helper Provider Functions
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

func providePricingTable(cfg *config.Config, log *logger.Logger) *pricing.Table {
	table := pricing.NewTable()
	if cfg.Pricing.File == "" {
		log.Infow("Pricing table initialized", "models", len(table.Models()))
		return table
	}

	if err := table.LoadFile(cfg.Pricing.File); err != nil {
		log.Warnf("Failed to load pricing file, using built-in rates: %v", err)
		return table
	}

	log.Infow("✓ Pricing table loaded", "file", cfg.Pricing.File, "models", len(table.Models()))
	return table
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	log.Info("Initializing Kafka producer...")
	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn("Kafka brokers not configured, using default localhost:9092")
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Async:   false,
	})
	log.Info("✓ Kafka producer initialized")
	return producer
}

func provideKafkaConsumer(cfg *config.Config, topic string, log *logger.Logger) *kafka.Consumer {
	log.Infow("Initializing Kafka consumer", "topic", topic)
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   topic,
	})
	log.Infow("✓ Kafka consumer initialized", "topic", topic)
	return consumer
}

// provideRecordSinks assembles the ingest fanout chain. Every sink is
// best-effort, none of them can fail an ingest.
func provideRecordSinks(c *Container) []telemetrysvc.RecordSink {
	sinks := []telemetrysvc.RecordSink{c.Adapters.Feed}

	if c.Adapters.Events != nil {
		sinks = append(sinks, c.Adapters.Events)
	}
	if c.Services.Budget != nil {
		sinks = append(sinks, c.Services.Budget)
	}

	// Without Kafka the archive is fed directly on ingest
	if c.Repos.Archive != nil && c.Adapters.RequestConsumer == nil {
		sinks = append(sinks, c.Repos.Archive)
	}

	return sinks
}

// provideAlertNotifiers assembles the alert fanout: chat channels
// first, then the Kafka alerts topic for downstream systems.
func provideAlertNotifiers(c *Container) []alertingsvc.Notifier {
	var notifiers []alertingsvc.Notifier

	if c.Adapters.TelegramNotifier != nil {
		notifiers = append(notifiers, c.Adapters.TelegramNotifier)
	}
	if c.Adapters.SlackNotifier != nil {
		notifiers = append(notifiers, c.Adapters.SlackNotifier)
	}
	if c.Adapters.Events != nil {
		notifiers = append(notifiers, c.Adapters.Events)
	}

	return notifiers
}
