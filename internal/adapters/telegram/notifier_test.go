package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"argus/internal/domain/alert"
	"argus/pkg/errors"
	"argus/pkg/logger"
	"argus/pkg/templates"
)

func testLogger() *logger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return &logger.Logger{SugaredLogger: zapLogger.Sugar()}
}

type fakeSender struct {
	err   error
	sent  []string
	chats []int64
}

func (f *fakeSender) SendNotificationWithRetry(_ context.Context, chatID int64, text string, _ int) error {
	if f.err != nil {
		return f.err
	}
	f.chats = append(f.chats, chatID)
	f.sent = append(f.sent, text)
	return nil
}

func newTestNotifier(fake *fakeSender) *AlertNotifier {
	return &AlertNotifier{
		bot:       fake,
		templates: templates.Get(),
		chatID:    42,
		log:       testLogger(),
	}
}

func TestAlertNotifier_NotifyRendersCostTemplate(t *testing.T) {
	fake := &fakeSender{}
	n := newTestNotifier(fake)

	a := &alert.Alert{
		Type:      alert.TypeCost,
		Severity:  alert.SeverityHigh,
		Message:   "Daily cost (150.25 USD) above threshold (100 USD)",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, n.Notify(context.Background(), a))

	require.Len(t, fake.sent, 1)
	assert.Equal(t, int64(42), fake.chats[0])
	assert.Contains(t, fake.sent[0], "Cost alert")
	assert.Contains(t, fake.sent[0], "Severity: high")
	assert.Contains(t, fake.sent[0], "USD")
}

func TestAlertNotifier_NotifyRendersTrendTemplate(t *testing.T) {
	fake := &fakeSender{}
	n := newTestNotifier(fake)

	a := &alert.Alert{
		Type:      alert.TypeTrend,
		Severity:  alert.SeverityMedium,
		Message:   "Cost spike detected: today 40 USD vs 10 USD average over the previous 7 days",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, n.Notify(context.Background(), a))

	require.Len(t, fake.sent, 1)
	assert.Contains(t, fake.sent[0], "Cost trend")
	assert.Contains(t, fake.sent[0], "Severity: medium")
}

func TestAlertNotifier_NotifyFallsBackForUnknownType(t *testing.T) {
	fake := &fakeSender{}
	n := newTestNotifier(fake)

	a := &alert.Alert{
		Type:      "maintenance",
		Severity:  alert.SeverityLow,
		Message:   "scheduled restart",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, n.Notify(context.Background(), a))

	require.Len(t, fake.sent, 1)
	assert.Contains(t, fake.sent[0], "[LOW]")
	assert.Contains(t, fake.sent[0], "scheduled restart")
}

func TestAlertNotifier_NotifyPropagatesSendErrors(t *testing.T) {
	fake := &fakeSender{err: errors.ErrUnavailable}
	n := newTestNotifier(fake)

	a := &alert.Alert{
		Type:      alert.TypeCost,
		Severity:  alert.SeverityHigh,
		Message:   "over budget",
		Timestamp: time.Now().UTC(),
	}
	err := n.Notify(context.Background(), a)
	assert.ErrorIs(t, err, errors.ErrUnavailable)
}

func TestAlertNotifier_EscapesMarkdownInMessages(t *testing.T) {
	fake := &fakeSender{}
	n := newTestNotifier(fake)

	a := &alert.Alert{
		Type:      alert.TypeCost,
		Severity:  alert.SeverityHigh,
		Message:   "model_not_found while probing",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, n.Notify(context.Background(), a))

	require.Len(t, fake.sent, 1)
	assert.Contains(t, fake.sent[0], `model\_not\_found`)
}
