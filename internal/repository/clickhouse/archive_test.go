package clickhouse_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/domain/telemetry"
	chrepo "argus/internal/repository/clickhouse"
	"argus/internal/testsupport"
)

// Integration tests against a real ClickHouse. Skipped unless CLICKHOUSE_HOST is set.

var archiveSeq int

func newArchiveRepo(t *testing.T) *chrepo.ArchiveRepository {
	t.Helper()

	cfg := testsupport.LoadClickHouseConfigFromEnv(t)
	conn := testsupport.NewClickHouseConn(t, cfg)

	repo := chrepo.NewArchiveRepository(conn)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	testsupport.TruncateTable(t, conn, "llm_requests")

	return repo
}

func archivedRecord(model string, ts time.Time, cost float64) *telemetry.Record {
	archiveSeq++

	return &telemetry.Record{
		RequestID:    fmt.Sprintf("arch-%d", archiveSeq),
		ModelName:    model,
		UserID:       "user-archive",
		Timestamp:    ts,
		InputTokens:  100,
		OutputTokens: 50,
		LatencyMs:    120,
		CostUSD:      cost,
		Success:      true,
	}
}

func TestArchiveRepository_DailyCost(t *testing.T) {
	repo := newArchiveRepo(t)
	ctx := context.Background()

	day := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)

	require.NoError(t, repo.Store(ctx, archivedRecord("gpt-4", day, 1.5)))
	require.NoError(t, repo.Store(ctx, archivedRecord("gpt-4", day.Add(2*time.Hour), 2.5)))
	require.NoError(t, repo.Store(ctx, archivedRecord("gpt-4", day.AddDate(0, 0, -1), 9.0)))
	require.NoError(t, repo.Flush(ctx))

	total, err := repo.DailyCost(ctx, day)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, total, 0.0001)
}

func TestArchiveRepository_ModelDailyCost(t *testing.T) {
	repo := newArchiveRepo(t)
	ctx := context.Background()

	day := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Store(ctx, archivedRecord("gpt-4", day, 3.0)))
	require.NoError(t, repo.Store(ctx, archivedRecord("claude-3-opus", day, 1.0)))
	require.NoError(t, repo.Flush(ctx))

	gpt, err := repo.ModelDailyCost(ctx, "gpt-4", day)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, gpt, 0.0001)

	opus, err := repo.ModelDailyCost(ctx, "claude-3-opus", day)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, opus, 0.0001)
}

func TestArchiveRepository_RecordIngestedNeverFails(t *testing.T) {
	repo := newArchiveRepo(t)
	ctx := context.Background()

	day := time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC)

	repo.RecordIngested(ctx, archivedRecord("gpt-3.5-turbo", day, 0.5))
	require.NoError(t, repo.Flush(ctx))

	total, err := repo.DailyCost(ctx, day)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, total, 0.0001)
}

func TestArchiveRepository_EnsureSchemaIdempotent(t *testing.T) {
	repo := newArchiveRepo(t)

	require.NoError(t, repo.EnsureSchema(context.Background()))
}
