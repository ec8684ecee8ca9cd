package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "argus_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "argus_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Ingest metrics
	RequestsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_requests_ingested_total",
			Help: "Total number of LLM request records ingested",
		},
		[]string{"model", "status"}, // status: success|error
	)

	IngestCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_ingest_cost_usd",
			Help: "Total ingested LLM cost in USD",
		},
		[]string{"model"},
	)

	IngestTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_ingest_tokens_total",
			Help: "Total tokens across ingested records",
		},
		[]string{"model", "type"}, // type: input|output
	)

	// Scan metrics
	ScanRecordsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_scan_records_skipped_total",
			Help: "Indexed record ids skipped during scans",
		},
		[]string{"reason"}, // reason: missing|malformed
	)

	// Experiment metrics
	ExperimentAssignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_experiment_assignments_total",
			Help: "Total number of experiment variant assignments",
		},
		[]string{"experiment", "variant", "mode"}, // mode: sticky|random|fallback
	)

	// Alert metrics
	AlertsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_alerts_fired_total",
			Help: "Total number of alerts fired",
		},
		[]string{"type", "severity"},
	)

	// Store metrics
	StoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_store_operations_total",
			Help: "Total number of key-value store operations",
		},
		[]string{"operation", "status"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "argus_store_operation_duration_seconds",
			Help:    "Key-value store operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation"},
	)

	// Rate limit metrics
	RateLimitedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_rate_limited_requests_total",
			Help: "Total number of HTTP requests rejected by the rate limiter",
		},
		[]string{"path"},
	)

	// Archive metrics
	ArchiveFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_archive_flushes_total",
			Help: "Total number of archive batch flushes",
		},
		[]string{"status"}, // status: success|error
	)

	ArchiveRowsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_archive_rows_written_total",
			Help: "Total rows written to the archive",
		},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_kafka_messages_total",
			Help: "Total Kafka messages produced/consumed",
		},
		[]string{"topic", "direction", "status"}, // direction: produced|consumed
	)

	WebSocketConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "argus_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
		[]string{"channel"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	// Worker metrics
	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	// Ingest metrics
	prometheus.MustRegister(RequestsIngested)
	prometheus.MustRegister(IngestCost)
	prometheus.MustRegister(IngestTokens)

	// Scan metrics
	prometheus.MustRegister(ScanRecordsSkipped)

	// Experiment metrics
	prometheus.MustRegister(ExperimentAssignments)

	// Alert metrics
	prometheus.MustRegister(AlertsFired)

	// Store metrics
	prometheus.MustRegister(StoreOperations)
	prometheus.MustRegister(StoreOperationDuration)

	// Rate limit metrics
	prometheus.MustRegister(RateLimitedRequests)

	// Archive metrics
	prometheus.MustRegister(ArchiveFlushes)
	prometheus.MustRegister(ArchiveRowsWritten)

	// System metrics
	prometheus.MustRegister(KafkaMessages)
	prometheus.MustRegister(WebSocketConnections)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordIngest records an ingested request record
func RecordIngest(model string, inputTokens, outputTokens int, cost float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	RequestsIngested.WithLabelValues(model, status).Inc()
	if err != nil {
		return
	}

	if cost > 0 {
		IngestCost.WithLabelValues(model).Add(cost)
	}
	if inputTokens > 0 {
		IngestTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		IngestTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

// RecordScanSkip records an indexed id skipped during a scan
func RecordScanSkip(reason string) {
	ScanRecordsSkipped.WithLabelValues(reason).Inc()
}

// RecordAssignment records an experiment variant assignment
func RecordAssignment(experiment, variant, mode string) {
	ExperimentAssignments.WithLabelValues(experiment, variant, mode).Inc()
}

// RecordAlert records a fired alert
func RecordAlert(alertType, severity string) {
	AlertsFired.WithLabelValues(alertType, severity).Inc()
}

// RecordStoreOperation records a key-value store operation
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	StoreOperations.WithLabelValues(operation, status).Inc()
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordKafkaMessage records a produced or consumed Kafka message
func RecordKafkaMessage(topic, direction string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	KafkaMessages.WithLabelValues(topic, direction, status).Inc()
}

// RecordArchiveFlush records an archive batch flush
func RecordArchiveFlush(rows int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ArchiveFlushes.WithLabelValues(status).Inc()
	if err == nil && rows > 0 {
		ArchiveRowsWritten.Add(float64(rows))
	}
}
