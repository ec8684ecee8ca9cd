package metrics

import (
	"context"
	"time"

	"argus/internal/domain/prompt"
	"argus/internal/domain/telemetry"
	"argus/internal/kv"
	"argus/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// CustomCollector collects gauges from the backing store on scrape
type CustomCollector struct {
	log       *logger.Logger
	store     kv.Store
	telemetry telemetry.Repository
	prompts   prompt.Repository
	models    func() []string

	// Descriptors
	requestsToday      *prometheus.Desc
	modelRequestsToday *prometheus.Desc
	promptsTotal       *prometheus.Desc
	storeUp            *prometheus.Desc
}

// NewCustomCollector creates a new custom metrics collector.
// models supplies the model names whose per-model day indexes are scraped.
func NewCustomCollector(
	log *logger.Logger,
	store kv.Store,
	telemetryRepo telemetry.Repository,
	promptRepo prompt.Repository,
	models func() []string,
) *CustomCollector {
	return &CustomCollector{
		log:       log,
		store:     store,
		telemetry: telemetryRepo,
		prompts:   promptRepo,
		models:    models,

		requestsToday: prometheus.NewDesc(
			"argus_requests_today",
			"Number of request records indexed for the current UTC day",
			nil, nil,
		),
		modelRequestsToday: prometheus.NewDesc(
			"argus_model_requests_today",
			"Number of request records indexed for the current UTC day by model",
			[]string{"model"}, nil,
		),
		promptsTotal: prometheus.NewDesc(
			"argus_prompts_total",
			"Total number of prompt template ids in the index",
			nil, nil,
		),
		storeUp: prometheus.NewDesc(
			"argus_store_up",
			"Whether the backing store responds to ping (0=down, 1=up)",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requestsToday
	ch <- c.modelRequestsToday
	ch <- c.promptsTotal
	ch <- c.storeUp
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectRequestCounts(ctx, ch)
	c.collectPromptCount(ctx, ch)
	c.collectStoreUp(ctx, ch)
}

func (c *CustomCollector) collectRequestCounts(ctx context.Context, ch chan<- prometheus.Metric) {
	day := time.Now().UTC().Format("2006-01-02")

	count, err := c.telemetry.IndexLen(ctx, day, "")
	if err != nil {
		c.log.Error("Failed to collect day request count metric", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.requestsToday,
		prometheus.GaugeValue,
		float64(count),
	)

	for _, model := range c.models() {
		count, err := c.telemetry.IndexLen(ctx, day, model)
		if err != nil {
			c.log.Error("Failed to collect model request count metric",
				"model", model,
				"error", err,
			)
			continue
		}

		ch <- prometheus.MustNewConstMetric(
			c.modelRequestsToday,
			prometheus.GaugeValue,
			float64(count),
			model,
		)
	}
}

func (c *CustomCollector) collectPromptCount(ctx context.Context, ch chan<- prometheus.Metric) {
	ids, err := c.prompts.IDs(ctx)
	if err != nil {
		c.log.Error("Failed to collect prompt count metric", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.promptsTotal,
		prometheus.GaugeValue,
		float64(len(ids)),
	)
}

func (c *CustomCollector) collectStoreUp(ctx context.Context, ch chan<- prometheus.Metric) {
	up := 1.0
	if err := c.store.Ping(ctx); err != nil {
		up = 0.0
	}

	ch <- prometheus.MustNewConstMetric(
		c.storeUp,
		prometheus.GaugeValue,
		up,
	)
}

// RegisterCustomCollector registers the custom collector
func RegisterCustomCollector(collector *CustomCollector) {
	prometheus.MustRegister(collector)
}
