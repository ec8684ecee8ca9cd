package workers

import (
	"context"
	"time"
)

// Flusher forces buffered rows out to cold storage.
type Flusher interface {
	Flush(ctx context.Context) error
}

// ArchiveWorker periodically flushes the telemetry archive buffer so
// rows do not sit in memory longer than the flush interval even under
// low traffic.
type ArchiveWorker struct {
	*BaseWorker
	archiver Flusher
}

// NewArchiveWorker creates the archive flush worker.
func NewArchiveWorker(archiver Flusher, interval time.Duration, enabled bool) *ArchiveWorker {
	return &ArchiveWorker{
		BaseWorker: NewBaseWorker("archive_flush", interval, enabled),
		archiver:   archiver,
	}
}

// Run flushes whatever the archiver has buffered.
func (w *ArchiveWorker) Run(ctx context.Context) error {
	return w.archiver.Flush(ctx)
}
