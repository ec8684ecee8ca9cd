package workers

import (
	"context"
	"sync"
	"time"

	"argus/internal/services/analytics"
)

// DailyReport bundles the aggregates for one finished day.
type DailyReport struct {
	Day         string                        `json:"day"`
	Costs       *analytics.CostMetrics        `json:"costs"`
	Performance *analytics.PerformanceMetrics `json:"performance"`
	Errors      *analytics.ErrorSummary       `json:"errors"`
	GeneratedAt time.Time                     `json:"generated_at"`
}

// ReportWorker summarizes the previous day's traffic shortly after
// midnight UTC. The cron spec drives scheduling; the interval only
// applies when the spec fails to parse.
type ReportWorker struct {
	*BaseWorker
	analytics *analytics.Service
	spec      string

	mu   sync.RWMutex
	last *DailyReport
}

// NewReportWorker creates the daily report worker. An empty spec
// defaults to five past midnight UTC.
func NewReportWorker(analyticsService *analytics.Service, spec string, enabled bool) *ReportWorker {
	if spec == "" {
		spec = "5 0 * * *"
	}
	return &ReportWorker{
		BaseWorker: NewBaseWorker("daily_report", 24*time.Hour, enabled),
		analytics:  analyticsService,
		spec:       spec,
	}
}

// CronSpec returns the cron expression driving this worker
func (w *ReportWorker) CronSpec() string {
	return w.spec
}

// Run aggregates yesterday's cost, performance and error figures
func (w *ReportWorker) Run(ctx context.Context) error {
	now := time.Now().UTC()
	dayEnd := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayStart := dayEnd.AddDate(0, 0, -1)

	costs, err := w.analytics.CostMetrics(ctx, dayStart, dayEnd, "")
	if err != nil {
		return err
	}
	performance, err := w.analytics.PerformanceMetrics(ctx, dayStart, dayEnd, "")
	if err != nil {
		return err
	}
	errorSummary, err := w.analytics.ErrorSummary(ctx, dayStart, dayEnd)
	if err != nil {
		return err
	}

	report := &DailyReport{
		Day:         dayStart.Format("2006-01-02"),
		Costs:       costs,
		Performance: performance,
		Errors:      errorSummary,
		GeneratedAt: now,
	}

	w.mu.Lock()
	w.last = report
	w.mu.Unlock()

	w.Log().Infow("Daily report generated",
		"day", report.Day,
		"requests", costs.RequestsCount,
		"total_cost_usd", costs.TotalCostUSD,
		"success_rate", performance.SuccessRate,
		"errors", errorSummary.TotalErrors)

	return nil
}

// LastReport returns the most recently generated report, nil before
// the first run.
func (w *ReportWorker) LastReport() *DailyReport {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}
