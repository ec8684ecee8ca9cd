package budget

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"argus/internal/domain/telemetry"
	"argus/internal/kv"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

func testLogger() *logger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return &logger.Logger{SugaredLogger: zapLogger.Sugar()}
}

func newBudget(t *testing.T, dailyLimit float64) (*Service, *kv.MemoryStore) {
	t.Helper()

	store := kv.NewMemoryStore()
	return NewService(store, decimal.NewFromFloat(dailyLimit), testLogger()), store
}

func TestService_RecordAndSpent(t *testing.T) {
	svc, _ := newBudget(t, 10)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, "u1", decimal.NewFromFloat(0.25)))
	require.NoError(t, svc.Record(ctx, "u1", decimal.NewFromFloat(0.5)))

	spent, err := svc.Spent(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, spent.Equal(decimal.NewFromFloat(0.75)), "got %s", spent)
}

func TestService_SpentIsPerUser(t *testing.T) {
	svc, _ := newBudget(t, 10)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, "u1", decimal.NewFromInt(3)))

	spent, err := svc.Spent(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, spent.IsZero())
}

func TestService_CheckUnderLimit(t *testing.T) {
	svc, _ := newBudget(t, 10)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, "u1", decimal.NewFromInt(5)))

	assert.NoError(t, svc.Check(ctx, "u1"))
}

func TestService_CheckAtLimitBlocks(t *testing.T) {
	svc, _ := newBudget(t, 10)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, "u1", decimal.NewFromInt(10)))

	err := svc.Check(ctx, "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDailyLimitExceeded))
}

func TestService_CheckOverLimitBlocks(t *testing.T) {
	svc, _ := newBudget(t, 10)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, "u1", decimal.NewFromFloat(12.5)))

	err := svc.Check(ctx, "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDailyLimitExceeded))
	assert.Contains(t, err.Error(), "12.50")
	assert.Contains(t, err.Error(), "10.00")
}

func TestService_CheckAnonymousAlwaysPasses(t *testing.T) {
	svc, _ := newBudget(t, 10)

	assert.NoError(t, svc.Check(context.Background(), ""))
}

func TestService_RecordIgnoresAnonymousAndFreeRequests(t *testing.T) {
	svc, _ := newBudget(t, 10)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, "", decimal.NewFromInt(5)))
	require.NoError(t, svc.Record(ctx, "u1", decimal.Zero))

	spent, err := svc.Spent(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, spent.IsZero())
}

func TestService_Remaining(t *testing.T) {
	svc, _ := newBudget(t, 10)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, "u1", decimal.NewFromInt(4)))

	remaining, err := svc.Remaining(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, remaining.Equal(decimal.NewFromInt(6)), "got %s", remaining)
}

func TestService_RemainingClampsAtZero(t *testing.T) {
	svc, _ := newBudget(t, 10)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, "u1", decimal.NewFromInt(25)))

	remaining, err := svc.Remaining(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, remaining.IsZero())
}

func TestService_SpendExpiresAfterRollover(t *testing.T) {
	svc, store := newBudget(t, 10)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, "u1", decimal.NewFromInt(5)))
	require.NoError(t, store.Expire(ctx, spendKey("u1", time.Now().UTC()), 10*time.Millisecond))

	time.Sleep(30 * time.Millisecond)

	spent, err := svc.Spent(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, spent.IsZero())
}

func TestService_RecordIngestedTracksUserSpend(t *testing.T) {
	svc, _ := newBudget(t, 10)
	ctx := context.Background()

	svc.RecordIngested(ctx, &telemetry.Record{
		RequestID: "r1",
		UserID:    "u1",
		ModelName: "gpt-4",
		CostUSD:   1.25,
	})
	svc.RecordIngested(ctx, &telemetry.Record{
		RequestID: "r2",
		ModelName: "gpt-4",
		CostUSD:   9.0,
	})

	spent, err := svc.Spent(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, spent.Equal(decimal.NewFromFloat(1.25)), "got %s", spent)
}

type failingStore struct {
	kv.Store
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.Wrap(errors.ErrUnavailable, "get")
}

func TestService_CheckFailsOpenOnStoreError(t *testing.T) {
	svc := NewService(&failingStore{Store: kv.NewMemoryStore()}, decimal.NewFromInt(10), testLogger())

	assert.NoError(t, svc.Check(context.Background(), "u1"))
}
