// Package kvstore implements the domain repositories on top of the
// kv.Store contract, so the same code runs against Redis in
// deployments and the in-process store in tests and demos.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"argus/internal/domain/telemetry"
	"argus/internal/kv"
	"argus/pkg/errors"
)

// TelemetryRepository implements telemetry.Repository using a kv.Store.
// Records expire after recordTTL; the day and model index lists are
// refreshed to indexTTL on every append, so index entries can outlive
// the records they point to.
type TelemetryRepository struct {
	store     kv.Store
	recordTTL time.Duration
	indexTTL  time.Duration
}

// NewTelemetryRepository creates a telemetry repository.
func NewTelemetryRepository(store kv.Store, recordTTL, indexTTL time.Duration) *TelemetryRepository {
	return &TelemetryRepository{
		store:     store,
		recordTTL: recordTTL,
		indexTTL:  indexTTL,
	}
}

// Save stores a record and appends its id to the day and model indexes
func (r *TelemetryRepository) Save(ctx context.Context, record *telemetry.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal record: request_id=%s", record.RequestID)
	}

	day := record.Day()

	if err := r.store.Set(ctx, r.recordKey(record.RequestID), data, r.recordTTL); err != nil {
		return errors.Wrapf(err, "failed to save record: request_id=%s", record.RequestID)
	}

	dayKey := r.dayKey(day)
	if err := r.store.ListAppend(ctx, dayKey, record.RequestID); err != nil {
		return errors.Wrapf(err, "failed to index record by day: request_id=%s", record.RequestID)
	}
	if err := r.store.Expire(ctx, dayKey, r.indexTTL); err != nil {
		return errors.Wrapf(err, "failed to refresh day index ttl: day=%s", day)
	}

	modelKey := r.modelDayKey(record.ModelName, day)
	if err := r.store.ListAppend(ctx, modelKey, record.RequestID); err != nil {
		return errors.Wrapf(err, "failed to index record by model: request_id=%s", record.RequestID)
	}
	if err := r.store.Expire(ctx, modelKey, r.indexTTL); err != nil {
		return errors.Wrapf(err, "failed to refresh model index ttl: model=%s day=%s", record.ModelName, day)
	}

	return nil
}

// Get retrieves a record by request id
func (r *TelemetryRepository) Get(ctx context.Context, requestID string) (*telemetry.Record, error) {
	data, err := r.store.Get(ctx, r.recordKey(requestID))
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.Wrapf(errors.ErrNotFound, "request %s", requestID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get record: request_id=%s", requestID)
	}

	record, err := telemetry.DecodeRecord(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode record: request_id=%s", requestID)
	}
	return record, nil
}

// IndexLen returns the number of ids indexed for a day
func (r *TelemetryRepository) IndexLen(ctx context.Context, day string, model string) (int64, error) {
	n, err := r.store.ListLen(ctx, r.indexKey(day, model))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get index length: day=%s model=%s", day, model)
	}
	return n, nil
}

// IndexPage returns ids [start, stop] from a day's index in insertion order
func (r *TelemetryRepository) IndexPage(ctx context.Context, day string, model string, start, stop int64) ([]string, error) {
	ids, err := r.store.ListRange(ctx, r.indexKey(day, model), start, stop)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read index page: day=%s model=%s", day, model)
	}
	return ids, nil
}

func (r *TelemetryRepository) indexKey(day string, model string) string {
	if model == "" {
		return r.dayKey(day)
	}
	return r.modelDayKey(model, day)
}

func (r *TelemetryRepository) recordKey(requestID string) string {
	return fmt.Sprintf("request:%s", requestID)
}

func (r *TelemetryRepository) dayKey(day string) string {
	return fmt.Sprintf("requests:%s", day)
}

func (r *TelemetryRepository) modelDayKey(model, day string) string {
	return fmt.Sprintf("model_requests:%s:%s", model, day)
}
