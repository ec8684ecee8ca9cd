package workers

import (
	"context"
	"time"

	"argus/internal/services/alerting"
)

// AlertWorker periodically evaluates alert rules and dispatches
// whatever fires.
type AlertWorker struct {
	*BaseWorker
	alerts *alerting.Service
}

// NewAlertWorker creates the periodic alert check worker
func NewAlertWorker(alerts *alerting.Service, interval time.Duration, enabled bool) *AlertWorker {
	return &AlertWorker{
		BaseWorker: NewBaseWorker("alert_check", interval, enabled),
		alerts:     alerts,
	}
}

// Run evaluates all alert rules once
func (w *AlertWorker) Run(ctx context.Context) error {
	alerts, err := w.alerts.CheckAndDispatch(ctx)
	if err != nil {
		return err
	}
	if len(alerts) > 0 {
		w.Log().Infow("Alerts dispatched", "count", len(alerts))
	}
	return nil
}
