package bootstrap

import (
	"context"
	"sync"

	chclient "argus/internal/adapters/clickhouse"
	"argus/internal/adapters/config"
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
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer
	Redis *redisclient.Client
	CH    *chclient.Client // nil unless ClickHouse archival is enabled
	Store kv.Store
	Rates *pricing.Table

	// Domain Layer
	Repos    *Repositories
	Services *Services

	// External Adapters
	Adapters *Adapters

	// Application Layer
	Application *Application

	// Background Processing
	Background *Background

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups all domain repositories
type Repositories struct {
	Telemetry   *kvstore.TelemetryRepository
	Prompts     *kvstore.PromptRepository
	Experiments *kvstore.ExperimentRepository
	Archive     *chrepo.ArchiveRepository // nil unless ClickHouse archival is enabled
}

// Services groups all domain services
type Services struct {
	Telemetry   *telemetrysvc.Service
	Analytics   *analyticssvc.Service
	Experiments *experimentsvc.Service
	Prompts     *promptsvc.Service
	Models      *modelsvc.Service
	Evaluator   *evaluationsvc.Service
	Budget      *budgetsvc.Service // nil unless per-user budget enforcement is enabled
	Alerting    *alertingsvc.Service
}

// Adapters groups all external adapters
type Adapters struct {
	// Kafka
	KafkaProducer   *kafka.Producer
	RequestConsumer *kafka.Consumer // feeds the ClickHouse archive

	// Event publishing
	Events *events.Publisher

	// Pricing file watcher (hot reload of the rate table)
	PricingWatcher *pricing.Watcher

	// Live telemetry feed
	Feed *ws.Hub

	// Alert notification channels
	TelegramBot      *telegram.Bot
	TelegramNotifier *telegram.AlertNotifier
	SlackNotifier    *slack.Notifier
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
	API           *v1.Handler
}

// Background groups all background processing components
type Background struct {
	WorkerScheduler *workers.Scheduler

	// Archive consumer drains the request topic into ClickHouse
	ArchiveSvc *consumers.ArchiveConsumer
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Services:    &Services{},
		Adapters:    &Adapters{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitApplication()
	c.MustInitBackground()
}

// Start starts all background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	// Pricing file watcher (hot reload)
	if c.Adapters.PricingWatcher != nil {
		if err := c.Adapters.PricingWatcher.Start(); err != nil {
			return errors.Wrap(err, "failed to start pricing watcher")
		}
		c.Log.Infow("✓ Pricing watcher started", "file", c.Config.Pricing.File)
	}

	// Without Kafka the archive batch writer is fed directly on ingest,
	// so its lifecycle belongs to the container rather than a consumer.
	if c.Repos.Archive != nil && c.Background.ArchiveSvc == nil {
		c.Repos.Archive.Start(c.Context)
		c.Log.Info("✓ Archive batch writer started (direct mode)")
	}

	// Archive consumer
	if err := c.startConsumers(); err != nil {
		return err
	}

	// Background workers
	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	// HTTP server
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// startConsumers starts the Kafka consumers in background goroutines
func (c *Container) startConsumers() error {
	if c.Background.ArchiveSvc == nil {
		return nil
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Background.ArchiveSvc.Start(c.Context); err != nil && c.Context.Err() == nil {
			c.Log.Errorw("Archive consumer failed", "error", err)
		}
	}()

	c.Log.Infow("✓ Event consumers started", "consumers", []string{"archive"})
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// Cancel application context to signal all components to stop
	c.Cancel()

	// In direct mode the container owns the archive batch writer and
	// must drain it itself; in consumer mode the consumer already does.
	var directArchive *chrepo.ArchiveRepository
	if c.Background.ArchiveSvc == nil {
		directArchive = c.Repos.Archive
	}

	c.Lifecycle.Shutdown(
		c.WG,
		c.Application.HTTPServer,
		c.Background.WorkerScheduler,
		c.Adapters.Feed,
		c.Adapters.RequestConsumer,
		directArchive,
		c.Adapters.KafkaProducer,
		c.Adapters.PricingWatcher,
		c.CH,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}
