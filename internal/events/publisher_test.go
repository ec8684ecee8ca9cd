package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"argus/internal/adapters/kafka"
	"argus/internal/domain/alert"
	"argus/internal/domain/telemetry"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

func testLogger() *logger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return &logger.Logger{SugaredLogger: zapLogger.Sugar()}
}

type published struct {
	topic string
	key   string
	event interface{}
}

type fakeProducer struct {
	err      error
	messages []published
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key string, event interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{topic: topic, key: key, event: event})
	return nil
}

func TestPublisher_RecordIngested(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewPublisher(producer, testLogger())

	record := &telemetry.Record{
		RequestID: "r1",
		ModelName: "gpt-4",
		Timestamp: time.Now().UTC(),
	}
	pub.RecordIngested(context.Background(), record)

	require.Len(t, producer.messages, 1)
	assert.Equal(t, kafka.TopicRequests, producer.messages[0].topic)
	assert.Equal(t, "r1", producer.messages[0].key)
	assert.Equal(t, record, producer.messages[0].event)
}

func TestPublisher_RecordIngestedSwallowsBrokerErrors(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker down")}
	pub := NewPublisher(producer, testLogger())

	pub.RecordIngested(context.Background(), &telemetry.Record{RequestID: "r1", ModelName: "gpt-4"})

	assert.Empty(t, producer.messages)
}

func TestPublisher_PublishAlert(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewPublisher(producer, testLogger())

	a := &alert.Alert{
		Type:      alert.TypeCost,
		Severity:  alert.SeverityHigh,
		Message:   "Daily cost (150.25 USD) above threshold (100 USD)",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, pub.PublishAlert(context.Background(), a))

	require.Len(t, producer.messages, 1)
	assert.Equal(t, kafka.TopicAlerts, producer.messages[0].topic)
	assert.Equal(t, alert.TypeCost, producer.messages[0].key)
}

func TestPublisher_PublishAlertReturnsBrokerErrors(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker down")}
	pub := NewPublisher(producer, testLogger())

	err := pub.PublishAlert(context.Background(), &alert.Alert{Type: alert.TypeCost})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish alert event")
}

func TestPublisher_NotifyDeliversAlerts(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewPublisher(producer, testLogger())

	require.NoError(t, pub.Notify(context.Background(), &alert.Alert{Type: alert.TypeTrend}))

	require.Len(t, producer.messages, 1)
	assert.Equal(t, kafka.TopicAlerts, producer.messages[0].topic)
}
