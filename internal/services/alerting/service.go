package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"argus/internal/domain/alert"
	"argus/internal/metrics"
	"argus/internal/services/analytics"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

// CostSource provides aggregated cost figures for a time window.
type CostSource interface {
	CostMetrics(ctx context.Context, start, end time.Time, model string) (*analytics.CostMetrics, error)
}

// Notifier delivers a triggered alert to an external channel.
type Notifier interface {
	Notify(ctx context.Context, a *alert.Alert) error
}

// Service evaluates alert rules against aggregated telemetry and fans
// triggered alerts out to the configured notifiers.
type Service struct {
	source    CostSource
	threshold float64
	trend     *TrendDetector
	notifiers []Notifier
	log       *logger.Logger
}

// NewService creates an alerting service. threshold is the daily USD
// budget for the cost rule; trend may be nil to disable spike detection.
func NewService(source CostSource, threshold float64, trend *TrendDetector, log *logger.Logger, notifiers ...Notifier) *Service {
	return &Service{
		source:    source,
		threshold: threshold,
		trend:     trend,
		notifiers: notifiers,
		log:       log.With("service", "alerting"),
	}
}

// CheckCostAlerts compares spend over the trailing 24 hours against the
// daily threshold. Spend exactly at the threshold does not trigger.
func (s *Service) CheckCostAlerts(ctx context.Context) ([]*alert.Alert, error) {
	now := time.Now().UTC()
	costs, err := s.source.CostMetrics(ctx, now.Add(-24*time.Hour), now, "")
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate trailing daily cost")
	}

	if costs.TotalCostUSD <= s.threshold {
		return nil, nil
	}

	a := &alert.Alert{
		Type:     alert.TypeCost,
		Severity: alert.SeverityHigh,
		Message: fmt.Sprintf("Daily cost (%s USD) above threshold (%s USD)",
			humanize.CommafWithDigits(costs.TotalCostUSD, 2),
			humanize.CommafWithDigits(s.threshold, 2)),
		Timestamp: now,
	}
	metrics.RecordAlert(a.Type, a.Severity)
	s.log.Warnw("Cost alert triggered",
		"total_cost", costs.TotalCostUSD,
		"threshold", s.threshold,
		"requests", costs.RequestsCount)

	return []*alert.Alert{a}, nil
}

// Check runs all configured alert rules once. A failing trend check is
// logged but does not discard cost alerts already gathered.
func (s *Service) Check(ctx context.Context) ([]*alert.Alert, error) {
	alerts, err := s.CheckCostAlerts(ctx)
	if err != nil {
		return nil, err
	}

	if s.trend != nil {
		trendAlerts, err := s.trend.Check(ctx)
		if err != nil {
			s.log.Errorw("Trend check failed", "error", err)
		} else {
			alerts = append(alerts, trendAlerts...)
		}
	}

	return alerts, nil
}

// Dispatch delivers an alert to every notifier. Delivery failures are
// logged and do not stop the fanout.
func (s *Service) Dispatch(ctx context.Context, a *alert.Alert) {
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, a); err != nil {
			s.log.Errorw("Failed to deliver alert",
				"type", a.Type,
				"severity", a.Severity,
				"error", err)
		}
	}
}

// CheckAndDispatch runs the rules and pushes every triggered alert to
// the notifiers. Used by the periodic alert worker.
func (s *Service) CheckAndDispatch(ctx context.Context) ([]*alert.Alert, error) {
	alerts, err := s.Check(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range alerts {
		s.Dispatch(ctx, a)
	}
	return alerts, nil
}
