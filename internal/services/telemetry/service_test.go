package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "argus/internal/domain/telemetry"
	"argus/internal/kv"
	"argus/internal/pricing"
	"argus/internal/repository/kvstore"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

func testLogger() *logger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return &logger.Logger{SugaredLogger: zapLogger.Sugar()}
}

func newService(t *testing.T, pageSize int64, sinks ...RecordSink) (*Service, *kv.MemoryStore) {
	t.Helper()

	store := kv.NewMemoryStore()
	repo := kvstore.NewTelemetryRepository(store, 24*time.Hour, 30*24*time.Hour)
	return NewService(repo, pricing.NewTable(), pageSize, testLogger(), sinks...), store
}

func ingest(t *testing.T, svc *Service, id, model string, ts time.Time) *domain.Record {
	t.Helper()

	record, err := svc.Ingest(context.Background(), &domain.Record{
		RequestID:    id,
		ModelName:    model,
		Timestamp:    ts,
		InputTokens:  100,
		OutputTokens: 50,
		LatencyMs:    350,
		Success:      true,
	})
	require.NoError(t, err)
	return record
}

func TestService_IngestFillsDefaults(t *testing.T) {
	svc, _ := newService(t, 0)

	before := time.Now().UTC()
	record, err := svc.Ingest(context.Background(), &domain.Record{
		ModelName:    "gpt-4",
		InputTokens:  100,
		OutputTokens: 50,
		Success:      true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, record.RequestID)
	assert.False(t, record.Timestamp.Before(before))
	// 150 tokens at 0.03 per 1K
	assert.InDelta(t, 0.0045, record.CostUSD, 1e-9)
}

func TestService_IngestKeepsExplicitCost(t *testing.T) {
	svc, _ := newService(t, 0)

	record, err := svc.Ingest(context.Background(), &domain.Record{
		ModelName:    "gpt-4",
		InputTokens:  100,
		OutputTokens: 50,
		CostUSD:      1.25,
		Success:      true,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.25, record.CostUSD, 1e-9)
}

func TestService_IngestRejectsInvalid(t *testing.T) {
	svc, _ := newService(t, 0)

	_, err := svc.Ingest(context.Background(), &domain.Record{
		ModelName:   "gpt-4",
		InputTokens: -1,
	})
	require.Error(t, err)

	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestService_ReadRoundTrip(t *testing.T) {
	svc, _ := newService(t, 0)

	ts := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	saved := ingest(t, svc, "r1", "gpt-4", ts)

	got, err := svc.Read(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestService_ReadMissing(t *testing.T) {
	svc, _ := newService(t, 0)

	_, err := svc.Read(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestService_ScanInsertionOrderAcrossDays(t *testing.T) {
	svc, _ := newService(t, 0)
	ctx := context.Background()

	ingest(t, svc, "r1", "gpt-4", time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	ingest(t, svc, "r2", "gpt-4", time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	ingest(t, svc, "r3", "gpt-4", time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC))

	var ids []string
	stats, err := svc.Scan(ctx,
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC),
		"",
		func(r *domain.Record) bool {
			ids = append(ids, r.RequestID)
			return true
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids)
	assert.Equal(t, 3, stats.Scanned)
}

func TestService_ScanWindowIsHalfOpen(t *testing.T) {
	svc, _ := newService(t, 0)

	ingest(t, svc, "r1", "gpt-4", time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	ingest(t, svc, "r2", "gpt-4", time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC))

	// End at midnight of May 2 excludes May 2's bucket entirely
	records, err := svc.Range(context.Background(),
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		"")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r1", records[0].RequestID)
}

func TestService_ScanYieldsWholeDayBuckets(t *testing.T) {
	svc, _ := newService(t, 0)

	// Indexed under May 1, earlier than the window start within that day
	ingest(t, svc, "r1", "gpt-4", time.Date(2026, 5, 1, 1, 0, 0, 0, time.UTC))

	records, err := svc.Range(context.Background(),
		time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		"")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestService_ScanFiltersByModel(t *testing.T) {
	svc, _ := newService(t, 0)

	ts := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ingest(t, svc, "r1", "gpt-4", ts)
	ingest(t, svc, "r2", "claude-3-opus", ts)
	ingest(t, svc, "r3", "gpt-4", ts)

	records, err := svc.Range(context.Background(),
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		"gpt-4")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "r1", records[0].RequestID)
	assert.Equal(t, "r3", records[1].RequestID)
}

func TestService_ScanSkipsExpiredRecords(t *testing.T) {
	svc, store := newService(t, 0)
	ctx := context.Background()

	ts := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ingest(t, svc, "r1", "gpt-4", ts)
	ingest(t, svc, "r2", "gpt-4", ts)
	ingest(t, svc, "r3", "gpt-4", ts)

	// Simulate TTL expiry of the middle record, its index entry stays
	require.NoError(t, store.Delete(ctx, "request:r2"))

	var ids []string
	stats, err := svc.Scan(ctx,
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		"",
		func(r *domain.Record) bool {
			ids = append(ids, r.RequestID)
			return true
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r3"}, ids)
	assert.Equal(t, 1, stats.SkippedMissing)
}

func TestService_ScanSkipsMalformedRecords(t *testing.T) {
	svc, store := newService(t, 0)
	ctx := context.Background()

	ts := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ingest(t, svc, "r1", "gpt-4", ts)

	// Overwrite the stored blob with junk that fails decoding
	require.NoError(t, store.Set(ctx, "request:r1", []byte("{not json"), 0))

	stats, err := svc.Scan(ctx,
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		"",
		func(r *domain.Record) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Scanned)
	assert.Equal(t, 1, stats.SkippedMalformed)
}

func TestService_ScanPagesThroughLargeDays(t *testing.T) {
	svc, _ := newService(t, 2)

	ts := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	want := []string{"r1", "r2", "r3", "r4", "r5"}
	for _, id := range want {
		ingest(t, svc, id, "gpt-4", ts)
	}

	var ids []string
	stats, err := svc.Scan(context.Background(),
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		"",
		func(r *domain.Record) bool {
			ids = append(ids, r.RequestID)
			return true
		})
	require.NoError(t, err)
	assert.Equal(t, want, ids)
	assert.Equal(t, 5, stats.Scanned)
}

func TestService_ScanStopsEarly(t *testing.T) {
	svc, _ := newService(t, 0)

	ts := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ingest(t, svc, "r1", "gpt-4", ts)
	ingest(t, svc, "r2", "gpt-4", ts)
	ingest(t, svc, "r3", "gpt-4", ts)

	var ids []string
	_, err := svc.Scan(context.Background(),
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		"",
		func(r *domain.Record) bool {
			ids = append(ids, r.RequestID)
			return len(ids) < 2
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids)
}

func TestService_ScanEmptyWindow(t *testing.T) {
	svc, _ := newService(t, 0)

	ts := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ingest(t, svc, "r1", "gpt-4", ts)

	records, err := svc.Range(context.Background(),
		time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		"")
	require.NoError(t, err)
	assert.Empty(t, records)
}

type captureSink struct {
	records []*domain.Record
}

func (s *captureSink) RecordIngested(_ context.Context, record *domain.Record) {
	s.records = append(s.records, record)
}

func TestService_IngestNotifiesSinks(t *testing.T) {
	sink := &captureSink{}
	svc, _ := newService(t, 0, sink)

	record := ingest(t, svc, "r1", "gpt-4", time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))

	require.Len(t, sink.records, 1)
	assert.Equal(t, record.RequestID, sink.records[0].RequestID)
}
