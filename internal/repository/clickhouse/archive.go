package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"argus/internal/domain/telemetry"
	"argus/internal/metrics"
	"argus/pkg/clickhouse"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

const archiveTable = "llm_requests"

// ArchiveRepository appends ingested telemetry records to ClickHouse
// for long-horizon analysis. Writes are buffered through a batch writer,
// so Store only stages a row; the actual INSERT happens on flush.
type ArchiveRepository struct {
	conn        driver.Conn
	batchWriter *clickhouse.BatchWriter
}

// NewArchiveRepository creates an archive repository with a batch writer
func NewArchiveRepository(conn driver.Conn) *ArchiveRepository {
	repo := &ArchiveRepository{
		conn: conn,
	}

	repo.batchWriter = clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig{
		FlushFunc:    repo.flushBatch,
		TableName:    archiveTable,
		MaxBatchSize: 500,
		MaxAge:       5 * time.Second,
	})

	return repo
}

// EnsureSchema creates the archive table if it does not exist
func (r *ArchiveRepository) EnsureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS llm_requests (
			request_id    String,
			model_name    String,
			model_version String,
			prompt_id     String,
			user_id       String,
			timestamp     DateTime64(3),
			input_tokens  Int64,
			output_tokens Int64,
			latency_ms    Float64,
			cost_usd      Float64,
			success       Bool,
			error_message String,
			metadata      Map(String, String)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (model_name, timestamp)
		TTL toDateTime(timestamp) + INTERVAL 90 DAY
	`

	if err := r.conn.Exec(ctx, ddl); err != nil {
		return errors.Wrap(err, "failed to create archive table")
	}

	return nil
}

// Start begins the background flush loop
func (r *ArchiveRepository) Start(ctx context.Context) {
	r.batchWriter.Start(ctx)
}

// Stop gracefully shuts down the batch writer
func (r *ArchiveRepository) Stop(ctx context.Context) error {
	return r.batchWriter.Stop(ctx)
}

// Store stages a record for the next batch insert
func (r *ArchiveRepository) Store(ctx context.Context, record *telemetry.Record) error {
	return r.batchWriter.Add(ctx, record)
}

// RecordIngested stages every ingested record for archival.
// Buffering errors are logged and dropped so the ingest path never stalls.
func (r *ArchiveRepository) RecordIngested(ctx context.Context, record *telemetry.Record) {
	if err := r.Store(ctx, record); err != nil {
		logger.Get().With("component", "archive").Warnw("Failed to buffer record for archive",
			"request_id", record.RequestID,
			"error", err)
	}
}

// Flush forces a batch insert of everything currently buffered
func (r *ArchiveRepository) Flush(ctx context.Context) error {
	return r.batchWriter.Flush(ctx)
}

// flushBatch performs the actual batch insert to ClickHouse.
// PrepareBatch stages the statement, Append accumulates rows in memory
// and Send executes a single INSERT for the whole batch.
func (r *ArchiveRepository) flushBatch(ctx context.Context, batch []interface{}) error {
	if len(batch) == 0 {
		return nil
	}

	log := logger.Get().With("component", "archive_batch")

	query := `
		INSERT INTO llm_requests (
			request_id, model_name, model_version, prompt_id, user_id,
			timestamp, input_tokens, output_tokens,
			latency_ms, cost_usd, success, error_message, metadata
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?, ?
		)
	`

	start := time.Now()

	stmt, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		metrics.RecordArchiveFlush(0, err)
		return errors.Wrap(err, "failed to prepare batch")
	}
	defer stmt.Close()

	validItems := 0
	for _, item := range batch {
		record, ok := item.(*telemetry.Record)
		if !ok {
			log.Warnf("Skipping invalid item type: %T", item)
			continue
		}

		metadata := record.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}

		err := stmt.Append(
			record.RequestID, record.ModelName, record.ModelVersion, record.PromptID, record.UserID,
			record.Timestamp, int64(record.InputTokens), int64(record.OutputTokens),
			record.LatencyMs, record.CostUSD, record.Success, record.ErrorMessage, metadata,
		)

		if err != nil {
			metrics.RecordArchiveFlush(0, err)
			return errors.Wrap(err, "failed to append to batch")
		}
		validItems++
	}

	if err := stmt.Send(); err != nil {
		metrics.RecordArchiveFlush(0, err)
		return errors.Wrap(err, "failed to send batch")
	}

	metrics.RecordArchiveFlush(validItems, nil)
	log.Infof("Batch inserted %d archive rows in %v", validItems, time.Since(start))

	return nil
}

// DailyCost returns the archived total cost for a UTC day
func (r *ArchiveRepository) DailyCost(ctx context.Context, day time.Time) (float64, error) {
	query := `
		SELECT sum(cost_usd) as total_cost
		FROM llm_requests
		WHERE toDate(timestamp) = toDate(?)
	`

	var totalCost float64
	err := r.conn.QueryRow(ctx, query, day).Scan(&totalCost)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get daily cost")
	}

	return totalCost, nil
}

// ModelDailyCost returns the archived cost for one model on a UTC day
func (r *ArchiveRepository) ModelDailyCost(ctx context.Context, model string, day time.Time) (float64, error) {
	query := `
		SELECT sum(cost_usd) as total_cost
		FROM llm_requests
		WHERE model_name = ? AND toDate(timestamp) = toDate(?)
	`

	var totalCost float64
	err := r.conn.QueryRow(ctx, query, model, day).Scan(&totalCost)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get model daily cost")
	}

	return totalCost, nil
}
