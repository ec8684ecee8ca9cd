package bootstrap

import (
	"context"
	"sync"
	"time"

	chclient "argus/internal/adapters/clickhouse"
	"argus/internal/adapters/kafka"
	redisclient "argus/internal/adapters/redis"
	"argus/internal/api"
	"argus/internal/api/ws"
	"argus/internal/pricing"
	chrepo "argus/internal/repository/clickhouse"
	"argus/internal/workers"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

// Lifecycle manages graceful startup and shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 60 * time.Second,
	}
}

// Shutdown performs coordinated cleanup of all components in order:
// 1. No new requests accepted
// 2. Workers finish cleanly
// 3. Live feed subscribers disconnected
// 4. Kafka consumer unblocks before waiting for goroutines
// 5. Buffered archive rows drained, producer closes after consumers
// 6. Logs and errors flushed
// 7. Store connections last (other components may need them)
func (l *Lifecycle) Shutdown(
	wg *sync.WaitGroup,
	httpServer *api.Server,
	workerScheduler *workers.Scheduler,
	feed *ws.Hub,
	requestConsumer *kafka.Consumer,
	directArchive *chrepo.ArchiveRepository,
	kafkaProducer *kafka.Producer,
	pricingWatcher *pricing.Watcher,
	chClient *chclient.Client,
	redisClient *redisclient.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	// Step 1: stop accepting requests
	log.Info("[1/10] Stopping HTTP server...")
	httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
	defer httpCancel()

	if err := httpServer.Shutdown(httpCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}

	// Step 2: stop periodic workers
	log.Info("[2/10] Stopping background workers...")
	if workerScheduler != nil && workerScheduler.IsRunning() {
		if err := workerScheduler.Stop(); err != nil {
			log.Error("Workers shutdown failed", "error", err)
		} else {
			log.Info("✓ Workers stopped")
		}
	}

	// Step 3: disconnect live feed subscribers
	log.Info("[3/10] Stopping telemetry feed...")
	if feed != nil {
		feedCtx, feedCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		if err := feed.Shutdown(feedCtx); err != nil {
			log.Error("Telemetry feed shutdown failed", "error", err)
		}
		feedCancel()
	}

	// Step 4: close the Kafka consumer BEFORE waiting for goroutines,
	// otherwise ReadMessage blocks the consumer loop forever
	log.Info("[4/10] Closing Kafka consumer...")
	if requestConsumer != nil {
		if err := requestConsumer.Close(); err != nil {
			log.Error("Kafka consumer close failed", "error", err)
		} else {
			log.Info("✓ Kafka consumer closed")
		}
	}

	// Step 5: wait for consumer and server goroutines
	log.Info("[5/10] Waiting for goroutines...")
	l.waitForGoroutines(wg, 10*time.Second, log)

	// Step 6: drain the archive buffer (direct mode only)
	log.Info("[6/10] Draining archive buffer...")
	if directArchive != nil {
		archiveCtx, archiveCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		if err := directArchive.Stop(archiveCtx); err != nil {
			log.Error("Archive drain failed", "error", err)
		} else {
			log.Info("✓ Archive buffer drained")
		}
		archiveCancel()
	}

	// Step 7: close the Kafka producer after everything that publishes
	log.Info("[7/10] Closing Kafka producer...")
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Error("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	// Step 8: stop watching the pricing file
	log.Info("[8/10] Stopping pricing watcher...")
	if pricingWatcher != nil {
		if err := pricingWatcher.Close(); err != nil {
			log.Error("Pricing watcher close failed", "error", err)
		} else {
			log.Info("✓ Pricing watcher stopped")
		}
	}

	// Step 9: flush error tracker and logs
	log.Info("[9/10] Flushing diagnostics...")
	l.flushErrorTracker(errorTracker, shutdownCtx, log)
	if err := logger.Sync(); err != nil {
		log.Warn("Log sync completed with warnings")
	} else {
		log.Info("✓ Logs synced")
	}

	// Step 10: close store connections LAST, other components may
	// still need them while shutting down
	log.Info("[10/10] Closing store connections...")
	l.closeStores(chClient, redisClient, log)

	log.Info("✅ Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warn("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(tracker errors.Tracker, ctx context.Context, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Error("Error tracker flush failed", "error", err)
	} else {
		log.Info("✓ Error tracker flushed")
	}
}

// closeStores closes all store connections
func (l *Lifecycle) closeStores(
	chClient *chclient.Client,
	redisClient *redisclient.Client,
	log *logger.Logger,
) {
	var storeErrors []error

	if chClient != nil {
		if err := chClient.Close(); err != nil {
			storeErrors = append(storeErrors, errors.Wrap(err, "clickhouse"))
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			storeErrors = append(storeErrors, errors.Wrap(err, "redis"))
		}
	}

	if len(storeErrors) > 0 {
		log.Error("Store close errors", "errors", storeErrors)
	} else {
		log.Info("✓ Store connections closed")
	}
}
