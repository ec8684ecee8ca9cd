package telemetry

import (
	"context"
)

// Repository defines storage operations for request records and their
// day/model index lists.
type Repository interface {
	// Save stores a record under its request id and appends the id to
	// the per-day and per-(model, day) index lists.
	Save(ctx context.Context, record *Record) error

	// Get retrieves a record by request id.
	Get(ctx context.Context, requestID string) (*Record, error)

	// IndexLen returns the number of ids indexed for a day. An empty
	// model selects the global per-day index.
	IndexLen(ctx context.Context, day string, model string) (int64, error)

	// IndexPage returns ids [start, stop] (inclusive) from a day's
	// index in insertion order. An empty model selects the global
	// per-day index.
	IndexPage(ctx context.Context, day string, model string, start, stop int64) ([]string, error)
}
