package consumers

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	kafkaadapter "argus/internal/adapters/kafka"
	"argus/internal/domain/telemetry"
	chrepo "argus/internal/repository/clickhouse"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

// ArchiveConsumer reads telemetry records from Kafka and writes them to
// ClickHouse in batches. Running it apart from the ingest path means a slow
// or unavailable archive never blocks request recording.
type ArchiveConsumer struct {
	consumer *kafkaadapter.Consumer
	archive  *chrepo.ArchiveRepository
	log      *logger.Logger
}

// NewArchiveConsumer creates a new archive consumer
func NewArchiveConsumer(
	consumer *kafkaadapter.Consumer,
	archive *chrepo.ArchiveRepository,
	log *logger.Logger,
) *ArchiveConsumer {
	return &ArchiveConsumer{
		consumer: consumer,
		archive:  archive,
		log:      log,
	}
}

// Start begins consuming telemetry records until the context is cancelled
func (c *ArchiveConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting archive consumer (writes to ClickHouse in batches)...")

	// Start batch writer background loop
	c.archive.Start(ctx)

	// Ensure consumer is closed on exit
	defer func() {
		c.log.Info("Closing archive consumer...")
		if err := c.consumer.Close(); err != nil {
			c.log.Errorw("Failed to close archive consumer", "error", err)
		} else {
			c.log.Info("✓ Archive consumer closed")
		}
	}()

	// Ensure batch writer stops gracefully on any exit path
	defer func() {
		c.log.Info("Stopping archive batch writer...")
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.archive.Stop(stopCtx); err != nil {
			c.log.Errorw("Failed to stop archive batch writer", "error", err)
		} else {
			c.log.Info("✓ Archive batch writer stopped")
		}
	}()

	for {
		msg, err := c.consumer.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Archive consumer stopping (context cancelled)")
				return nil
			}
			// Reader might be closed during shutdown
			c.log.Debugw("Failed to read telemetry record", "error", err)
			continue
		}

		// Bound per-message work so shutdown never hangs on a slow insert
		processCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.handleRecord(processCtx, msg); err != nil {
			c.log.Errorw("Failed to handle telemetry record",
				"topic", msg.Topic,
				"error", err,
			)
		}
		cancel()

		// Check if we should stop AFTER processing current message
		if ctx.Err() != nil {
			c.log.Info("Archive consumer stopping after processing current message")
			return nil
		}
	}
}

// handleRecord processes a single telemetry record message
func (c *ArchiveConsumer) handleRecord(ctx context.Context, msg kafka.Message) error {
	c.log.Debugw("Processing telemetry record",
		"topic", msg.Topic,
		"size", len(msg.Value),
	)

	record, err := telemetry.DecodeRecord(msg.Value)
	if err != nil {
		return errors.Wrap(err, "decode telemetry record")
	}

	// Buffered, flushed when the batch is full or aged out
	if err := c.archive.Store(ctx, record); err != nil {
		return errors.Wrap(err, "failed to buffer record for archive")
	}

	c.log.Debugw("Telemetry record buffered for batch insert",
		"request_id", record.RequestID,
		"model", record.ModelName,
		"tokens", record.TotalTokens(),
		"cost_usd", record.CostUSD,
	)

	return nil
}
