package analytics

import (
	"context"
	"sort"
	"time"

	"argus/internal/domain/telemetry"
	telemetrysvc "argus/internal/services/telemetry"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

// RecordSource walks stored request records for a reporting window
type RecordSource interface {
	Scan(ctx context.Context, start, end time.Time, model string, fn func(*telemetry.Record) bool) (telemetrysvc.ScanStats, error)
}

// CostMetrics summarizes spend over a reporting window
type CostMetrics struct {
	TotalCostUSD   float64   `json:"total_cost_usd"`
	CostPerRequest float64   `json:"cost_per_request"`
	CostPerToken   float64   `json:"cost_per_token"`
	RequestsCount  int       `json:"requests_count"`
	TokensCount    int       `json:"tokens_count"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
}

// PerformanceMetrics summarizes latency and reliability over a window
type PerformanceMetrics struct {
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	SuccessRate     float64 `json:"success_rate"`
	RequestsPerHour float64 `json:"requests_per_hour"`
	TotalRequests   int     `json:"total_requests"`
	MinLatencyMs    float64 `json:"min_latency_ms"`
	MaxLatencyMs    float64 `json:"max_latency_ms"`
	P95LatencyMs    float64 `json:"p95_latency_ms"`
}

// ErrorSummary summarizes failed requests over a window
type ErrorSummary struct {
	TotalErrors int            `json:"total_errors"`
	ErrorRate   float64        `json:"error_rate"`
	ErrorTypes  map[string]int `json:"error_types"`
}

// Service aggregates stored request records into reporting metrics
type Service struct {
	source RecordSource
	log    *logger.Logger
}

// NewService creates a new analytics service
func NewService(source RecordSource, log *logger.Logger) *Service {
	return &Service{
		source: source,
		log:    log.With("service", "analytics"),
	}
}

// CostMetrics sums cost and token usage over [start, end).
// Sums whole day buckets without re-filtering each record's timestamp,
// so the day indexes remain the unit of accounting.
func (s *Service) CostMetrics(ctx context.Context, start, end time.Time, model string) (*CostMetrics, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}

	metrics := &CostMetrics{
		PeriodStart: start,
		PeriodEnd:   end,
	}

	_, err := s.source.Scan(ctx, start, end, model, func(r *telemetry.Record) bool {
		metrics.TotalCostUSD += r.CostUSD
		metrics.RequestsCount++
		metrics.TokensCount += r.TotalTokens()
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate cost metrics")
	}

	if metrics.RequestsCount > 0 {
		metrics.CostPerRequest = metrics.TotalCostUSD / float64(metrics.RequestsCount)
	}
	if metrics.TokensCount > 0 {
		metrics.CostPerToken = metrics.TotalCostUSD / float64(metrics.TokensCount)
	}

	s.log.Debugw("Cost metrics aggregated",
		"model", model,
		"requests", metrics.RequestsCount,
		"total_cost_usd", metrics.TotalCostUSD,
	)

	return metrics, nil
}

// PerformanceMetrics computes latency and reliability stats for records
// whose timestamp falls in [start, end). An empty window yields a zero
// result, not an error.
func (s *Service) PerformanceMetrics(ctx context.Context, start, end time.Time, model string) (*PerformanceMetrics, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}

	var (
		latencies []float64
		successes int
	)

	_, err := s.source.Scan(ctx, start, end, model, func(r *telemetry.Record) bool {
		if !inWindow(r.Timestamp, start, end) {
			return true
		}
		latencies = append(latencies, r.LatencyMs)
		if r.Success {
			successes++
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate performance metrics")
	}

	if len(latencies) == 0 {
		return &PerformanceMetrics{}, nil
	}

	total := len(latencies)

	var sum float64
	for _, l := range latencies {
		sum += l
	}

	sorted := make([]float64, total)
	copy(sorted, latencies)
	sort.Float64s(sorted)

	metrics := &PerformanceMetrics{
		AvgLatencyMs:  sum / float64(total),
		SuccessRate:   float64(successes) / float64(total),
		TotalRequests: total,
		MinLatencyMs:  sorted[0],
		MaxLatencyMs:  sorted[total-1],
		P95LatencyMs:  sorted[int(float64(total)*0.95)],
	}

	if hours := end.Sub(start).Hours(); hours > 0 {
		metrics.RequestsPerHour = float64(total) / hours
	}

	return metrics, nil
}

// ErrorSummary tallies failed requests in [start, end) across all models.
// The error rate keeps the historical estimate against an assumed baseline
// of 100 requests.
func (s *Service) ErrorSummary(ctx context.Context, start, end time.Time) (*ErrorSummary, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}

	summary := &ErrorSummary{
		ErrorTypes: make(map[string]int),
	}

	_, err := s.source.Scan(ctx, start, end, "", func(r *telemetry.Record) bool {
		if r.Success || !inWindow(r.Timestamp, start, end) {
			return true
		}

		summary.TotalErrors++

		msg := r.ErrorMessage
		if msg == "" {
			msg = "unknown"
		}
		summary.ErrorTypes[msg]++
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate error summary")
	}

	summary.ErrorRate = float64(summary.TotalErrors) / float64(summary.TotalErrors+100)

	return summary, nil
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return errors.Wrapf(errors.ErrInvalidInput, "window bounds must be set")
	}
	if end.Before(start) {
		return errors.Wrapf(errors.ErrInvalidInput, "window end %s before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return nil
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
