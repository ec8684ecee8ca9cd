package alert

import "time"

// Alert types
const (
	TypeCost  = "cost_alert"
	TypeTrend = "cost_trend"
)

// Alert severities
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Alert is one triggered alerting event. Alerts are fire-and-forget:
// repeated checks over the same condition emit fresh alerts.
type Alert struct {
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
