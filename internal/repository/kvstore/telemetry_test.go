package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/domain/telemetry"
	"argus/internal/kv"
	"argus/pkg/errors"
)

func newTelemetryRepo() (*TelemetryRepository, *kv.MemoryStore) {
	store := kv.NewMemoryStore()
	return NewTelemetryRepository(store, 24*time.Hour, 30*24*time.Hour), store
}

func record(id, model string, ts time.Time) *telemetry.Record {
	return &telemetry.Record{
		RequestID:    id,
		ModelName:    model,
		Timestamp:    ts,
		InputTokens:  100,
		OutputTokens: 50,
		LatencyMs:    500,
		CostUSD:      0.0045,
		Success:      true,
	}
}

func TestTelemetryRepository_SaveGetRoundTrip(t *testing.T) {
	repo, _ := newTelemetryRepo()
	ctx := context.Background()

	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	orig := record("r1", "gpt-4", ts)
	orig.UserID = "u1"
	orig.Metadata = map[string]string{"source": "api"}

	require.NoError(t, repo.Save(ctx, orig))

	got, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestTelemetryRepository_GetMissing(t *testing.T) {
	repo, _ := newTelemetryRepo()

	_, err := repo.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestTelemetryRepository_SaveIndexesBothLists(t *testing.T) {
	repo, _ := newTelemetryRepo()
	ctx := context.Background()

	ts := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, record("r1", "gpt-4", ts)))
	require.NoError(t, repo.Save(ctx, record("r2", "claude-3-opus", ts)))
	require.NoError(t, repo.Save(ctx, record("r3", "gpt-4", ts)))

	// Global day index holds all three in insertion order
	ids, err := repo.IndexPage(ctx, "2026-05-01", "", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids)

	// Model index holds only that model's requests
	ids, err = repo.IndexPage(ctx, "2026-05-01", "gpt-4", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r3"}, ids)

	n, err := repo.IndexLen(ctx, "2026-05-01", "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = repo.IndexLen(ctx, "2026-05-01", "claude-3-opus")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTelemetryRepository_RecordsBucketByUTCDay(t *testing.T) {
	repo, _ := newTelemetryRepo()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, record("r1", "gpt-4", time.Date(2026, 5, 1, 23, 59, 0, 0, time.UTC))))
	require.NoError(t, repo.Save(ctx, record("r2", "gpt-4", time.Date(2026, 5, 2, 0, 1, 0, 0, time.UTC))))

	ids, err := repo.IndexPage(ctx, "2026-05-01", "", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)

	ids, err = repo.IndexPage(ctx, "2026-05-02", "", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, ids)
}

func TestTelemetryRepository_IndexSurvivesRecordDeletion(t *testing.T) {
	repo, store := newTelemetryRepo()
	ctx := context.Background()

	ts := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, record("r1", "gpt-4", ts)))

	// Simulate record expiry: the value is gone, the index entry stays
	require.NoError(t, store.Delete(ctx, "request:r1"))

	_, err := repo.Get(ctx, "r1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	ids, err := repo.IndexPage(ctx, "2026-05-01", "", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)
}

func TestTelemetryRepository_EmptyDayIndex(t *testing.T) {
	repo, _ := newTelemetryRepo()
	ctx := context.Background()

	ids, err := repo.IndexPage(ctx, "2026-07-04", "", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, ids)

	n, err := repo.IndexLen(ctx, "2026-07-04", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
