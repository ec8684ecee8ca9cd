package alerting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"argus/internal/domain/alert"
	"argus/internal/domain/telemetry"
	"argus/internal/kv"
	"argus/internal/pricing"
	"argus/internal/repository/kvstore"
	"argus/internal/services/analytics"
	telemetrysvc "argus/internal/services/telemetry"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

func testLogger() *logger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return &logger.Logger{SugaredLogger: zapLogger.Sugar()}
}

type captureNotifier struct {
	mu     sync.Mutex
	err    error
	alerts []*alert.Alert
}

func (c *captureNotifier) Notify(_ context.Context, a *alert.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.alerts = append(c.alerts, a)
	return nil
}

func (c *captureNotifier) delivered() []*alert.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*alert.Alert(nil), c.alerts...)
}

func newCostSource(t *testing.T) (*telemetrysvc.Service, *analytics.Service) {
	t.Helper()

	store := kv.NewMemoryStore()
	repo := kvstore.NewTelemetryRepository(store, 24*time.Hour, 30*24*time.Hour)
	ingest := telemetrysvc.NewService(repo, pricing.NewTable(), 0, testLogger())
	return ingest, analytics.NewService(ingest, testLogger())
}

func spend(t *testing.T, ingest *telemetrysvc.Service, ts time.Time, cost float64) {
	t.Helper()

	_, err := ingest.Ingest(context.Background(), &telemetry.Record{
		ModelName:    "gpt-4",
		InputTokens:  100,
		OutputTokens: 50,
		LatencyMs:    200,
		Success:      true,
		CostUSD:      cost,
		Timestamp:    ts,
	})
	require.NoError(t, err)
}

func TestService_CheckCostAlertsFires(t *testing.T) {
	ingest, source := newCostSource(t)
	now := time.Now().UTC()
	spend(t, ingest, now.Add(-time.Hour), 50.125)
	spend(t, ingest, now.Add(-30*time.Minute), 50.0625)
	spend(t, ingest, now.Add(-time.Minute), 50.0625)

	svc := NewService(source, 100.0, nil, testLogger())

	alerts, err := svc.CheckCostAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, alert.TypeCost, a.Type)
	assert.Equal(t, alert.SeverityHigh, a.Severity)
	assert.Contains(t, a.Message, "150.25")
	assert.Contains(t, a.Message, "above threshold")
	assert.False(t, a.Timestamp.IsZero())
}

func TestService_CheckCostAlertsUnderThreshold(t *testing.T) {
	ingest, source := newCostSource(t)
	spend(t, ingest, time.Now().UTC(), 3.0)

	svc := NewService(source, 100.0, nil, testLogger())

	alerts, err := svc.CheckCostAlerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestService_CheckCostAlertsEqualSpendDoesNotFire(t *testing.T) {
	ingest, source := newCostSource(t)
	now := time.Now().UTC()
	spend(t, ingest, now.Add(-time.Hour), 5.0)
	spend(t, ingest, now.Add(-time.Minute), 7.5)

	svc := NewService(source, 12.5, nil, testLogger())

	alerts, err := svc.CheckCostAlerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestService_CheckAndDispatchNotifies(t *testing.T) {
	ingest, source := newCostSource(t)
	spend(t, ingest, time.Now().UTC(), 150.0)

	failing := &captureNotifier{err: errors.New("channel down")}
	working := &captureNotifier{}
	svc := NewService(source, 100.0, nil, testLogger(), failing, working)

	alerts, err := svc.CheckAndDispatch(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	delivered := working.delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, alert.TypeCost, delivered[0].Type)
}

func TestService_CheckCombinesRules(t *testing.T) {
	ingest, source := newCostSource(t)
	now := time.Now().UTC()
	for i := 1; i <= 6; i++ {
		spend(t, ingest, now.AddDate(0, 0, -i), 1.0)
	}
	spend(t, ingest, now, 10.0)

	trend := NewTrendDetector(source, 7, 2.0, testLogger())
	svc := NewService(source, 5.0, trend, testLogger())

	alerts, err := svc.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, alert.TypeCost, alerts[0].Type)
	assert.Equal(t, alert.TypeTrend, alerts[1].Type)
}

func TestTrendDetector_FiresOnSpike(t *testing.T) {
	ingest, source := newCostSource(t)
	now := time.Now().UTC()
	for i := 1; i <= 6; i++ {
		spend(t, ingest, now.AddDate(0, 0, -i), 1.0)
	}
	spend(t, ingest, now, 10.0)

	trend := NewTrendDetector(source, 7, 2.0, testLogger())

	alerts, err := trend.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, alert.TypeTrend, a.Type)
	assert.Equal(t, alert.SeverityMedium, a.Severity)
	assert.Contains(t, a.Message, "Cost spike detected")
	assert.Contains(t, a.Message, "previous 6 days")
}

func TestTrendDetector_SteadySpendDoesNotFire(t *testing.T) {
	ingest, source := newCostSource(t)
	now := time.Now().UTC()
	for i := 1; i <= 6; i++ {
		spend(t, ingest, now.AddDate(0, 0, -i), 1.0)
	}
	spend(t, ingest, now, 1.5)

	trend := NewTrendDetector(source, 7, 2.0, testLogger())

	alerts, err := trend.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestTrendDetector_QuietBaselineDoesNotFire(t *testing.T) {
	ingest, source := newCostSource(t)
	spend(t, ingest, time.Now().UTC(), 10.0)

	trend := NewTrendDetector(source, 7, 2.0, testLogger())

	alerts, err := trend.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestNewTrendDetector_Defaults(t *testing.T) {
	trend := NewTrendDetector(nil, 0, 0, testLogger())

	assert.Equal(t, defaultTrendWindowDays, trend.windowDays)
	assert.Equal(t, defaultSpikeFactor, trend.spikeFactor)
}
