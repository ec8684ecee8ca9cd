package kafka

// Topic definitions for event streaming
const (
	// Telemetry events
	TopicRequests = "telemetry.requests"

	// Alerting events
	TopicAlerts = "telemetry.alerts"
)
