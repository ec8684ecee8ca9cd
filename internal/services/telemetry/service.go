package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"argus/internal/domain/telemetry"
	"argus/internal/metrics"
	"argus/internal/pricing"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

// DefaultPageSize bounds index pagination during scans
const DefaultPageSize = 500

// RecordSink receives successfully ingested records.
// Implementations must not block the ingest path.
type RecordSink interface {
	RecordIngested(ctx context.Context, record *telemetry.Record)
}

// ScanStats summarizes one scan pass over the day indexes
type ScanStats struct {
	Scanned          int
	SkippedMissing   int
	SkippedMalformed int
}

// Service provides business logic for request telemetry
type Service struct {
	repo     telemetry.Repository
	rates    *pricing.Table
	sinks    []RecordSink
	pageSize int64
	log      *logger.Logger
}

// NewService creates a new telemetry service
func NewService(
	repo telemetry.Repository,
	rates *pricing.Table,
	pageSize int64,
	log *logger.Logger,
	sinks ...RecordSink,
) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{
		repo:     repo,
		rates:    rates,
		sinks:    sinks,
		pageSize: pageSize,
		log:      log.With("service", "telemetry"),
	}
}

// Ingest validates and stores a request record.
// Fills in the request id, timestamp and cost when the caller left them unset.
func (s *Service) Ingest(ctx context.Context, record *telemetry.Record) (*telemetry.Record, error) {
	if record.RequestID == "" {
		record.RequestID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	if err := record.Validate(); err != nil {
		metrics.RecordIngest(record.ModelName, 0, 0, 0, err)
		return nil, err
	}

	if record.CostUSD == 0 && record.TotalTokens() > 0 {
		record.CostUSD = s.rates.Cost(record.ModelName, record.InputTokens, record.OutputTokens)
	}

	if err := s.repo.Save(ctx, record); err != nil {
		s.log.Errorw("Failed to store request record",
			"request_id", record.RequestID,
			"model", record.ModelName,
			"error", err,
		)
		metrics.RecordIngest(record.ModelName, 0, 0, 0, err)
		return nil, errors.Wrap(err, "failed to store request record")
	}

	metrics.RecordIngest(record.ModelName, record.InputTokens, record.OutputTokens, record.CostUSD, nil)

	s.log.Debugw("Request record ingested",
		"request_id", record.RequestID,
		"model", record.ModelName,
		"tokens", record.TotalTokens(),
		"cost_usd", record.CostUSD,
	)

	for _, sink := range s.sinks {
		sink.RecordIngested(ctx, record)
	}

	return record, nil
}

// Read retrieves a single request record by id
func (s *Service) Read(ctx context.Context, requestID string) (*telemetry.Record, error) {
	record, err := s.repo.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			s.log.Debugw("Request record not found",
				"request_id", requestID,
			)
		} else {
			s.log.Errorw("Failed to read request record",
				"request_id", requestID,
				"error", err,
			)
		}
		return nil, err
	}

	return record, nil
}

// Scan walks the day indexes covering [start, end) and yields records in
// insertion order within each day. Ids whose record has expired and entries
// that no longer decode are skipped without failing the scan. The callback
// returns false to stop early.
func (s *Service) Scan(ctx context.Context, start, end time.Time, model string, fn func(*telemetry.Record) bool) (ScanStats, error) {
	var stats ScanStats

	startUTC := start.UTC()
	day := time.Date(startUTC.Year(), startUTC.Month(), startUTC.Day(), 0, 0, 0, 0, time.UTC)

	for ; day.Before(end); day = day.AddDate(0, 0, 1) {
		stop, err := s.scanDay(ctx, day.Format("2006-01-02"), model, &stats, fn)
		if err != nil {
			return stats, err
		}
		if stop {
			break
		}
	}

	if stats.SkippedMissing > 0 || stats.SkippedMalformed > 0 {
		s.log.Debugw("Scan skipped stale index entries",
			"missing", stats.SkippedMissing,
			"malformed", stats.SkippedMalformed,
		)
	}

	return stats, nil
}

// Range collects every record in [start, end) into a slice
func (s *Service) Range(ctx context.Context, start, end time.Time, model string) ([]*telemetry.Record, error) {
	var records []*telemetry.Record
	_, err := s.Scan(ctx, start, end, model, func(record *telemetry.Record) bool {
		records = append(records, record)
		return true
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) scanDay(ctx context.Context, day, model string, stats *ScanStats, fn func(*telemetry.Record) bool) (bool, error) {
	for offset := int64(0); ; offset += s.pageSize {
		ids, err := s.repo.IndexPage(ctx, day, model, offset, offset+s.pageSize-1)
		if err != nil {
			return false, errors.Wrapf(err, "failed to page index: day=%s", day)
		}
		if len(ids) == 0 {
			return false, nil
		}

		for _, id := range ids {
			record, err := s.repo.Get(ctx, id)
			if err != nil {
				switch {
				case errors.Is(err, errors.ErrNotFound):
					stats.SkippedMissing++
					metrics.RecordScanSkip("missing")
				case errors.Is(err, errors.ErrInvalidInput):
					stats.SkippedMalformed++
					metrics.RecordScanSkip("malformed")
				default:
					return false, errors.Wrapf(err, "failed to read indexed record: id=%s", id)
				}
				continue
			}

			stats.Scanned++
			if !fn(record) {
				return true, nil
			}
		}

		if int64(len(ids)) < s.pageSize {
			return false, nil
		}
	}
}
