package events

import (
	"context"

	"argus/internal/adapters/kafka"
	"argus/internal/domain/alert"
	"argus/internal/domain/telemetry"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

// Producer is the publishing side of the Kafka adapter.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Publisher pushes domain events onto the topics downstream consumers
// read. Request events are fire-and-forget: a broker outage is logged
// and never blocks ingestion.
type Publisher struct {
	producer Producer
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer Producer, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		log:      log.With("component", "events"),
	}
}

// RecordIngested publishes a stored request record, keyed by request
// id. Satisfies the telemetry ingest sink.
func (p *Publisher) RecordIngested(ctx context.Context, record *telemetry.Record) {
	if err := p.producer.Publish(ctx, kafka.TopicRequests, record.RequestID, record); err != nil {
		p.log.Errorw("Failed to publish request event",
			"request_id", record.RequestID,
			"error", err)
	}
}

// PublishAlert publishes a triggered alert, keyed by alert type.
func (p *Publisher) PublishAlert(ctx context.Context, a *alert.Alert) error {
	if err := p.producer.Publish(ctx, kafka.TopicAlerts, a.Type, a); err != nil {
		return errors.Wrap(err, "failed to publish alert event")
	}
	return nil
}

// Notify implements the alerting notifier over the alert topic.
func (p *Publisher) Notify(ctx context.Context, a *alert.Alert) error {
	return p.PublishAlert(ctx, a)
}
