package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	talib "github.com/markcheno/go-talib"

	"argus/internal/domain/alert"
	"argus/internal/metrics"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

const (
	defaultTrendWindowDays = 7
	defaultSpikeFactor     = 2.0
	minBaselineDays        = 2
)

// TrendDetector compares today's spend against a moving average of the
// preceding days and flags sudden spikes before the absolute daily
// threshold is reached.
type TrendDetector struct {
	source      CostSource
	windowDays  int
	spikeFactor float64
	log         *logger.Logger
}

// NewTrendDetector creates a spike detector over the last windowDays
// daily cost buckets. Today counts as one bucket, the rest form the
// baseline.
func NewTrendDetector(source CostSource, windowDays int, spikeFactor float64, log *logger.Logger) *TrendDetector {
	if windowDays <= minBaselineDays {
		windowDays = defaultTrendWindowDays
	}
	if spikeFactor <= 1 {
		spikeFactor = defaultSpikeFactor
	}
	return &TrendDetector{
		source:      source,
		windowDays:  windowDays,
		spikeFactor: spikeFactor,
		log:         log.With("service", "alerting.trend"),
	}
}

// Check builds the daily cost series and fires a medium severity alert
// when today exceeds the baseline average by the spike factor. Quiet
// baselines (zero average) never trigger.
func (d *TrendDetector) Check(ctx context.Context) ([]*alert.Alert, error) {
	now := time.Now().UTC()
	series, err := d.dailySeries(ctx, now)
	if err != nil {
		return nil, err
	}

	baseline := series[:len(series)-1]
	today := series[len(series)-1]
	if len(baseline) < minBaselineDays {
		return nil, nil
	}

	sma := talib.Sma(baseline, len(baseline))
	avg := sma[len(sma)-1]
	if avg <= 0 || today <= avg*d.spikeFactor {
		return nil, nil
	}

	a := &alert.Alert{
		Type:     alert.TypeTrend,
		Severity: alert.SeverityMedium,
		Message: fmt.Sprintf("Cost spike detected: today %s USD vs %s USD average over the previous %d days",
			humanize.CommafWithDigits(today, 2),
			humanize.CommafWithDigits(avg, 2),
			len(baseline)),
		Timestamp: now,
	}
	metrics.RecordAlert(a.Type, a.Severity)
	d.log.Warnw("Cost trend alert triggered",
		"today_cost", today,
		"baseline_avg", avg,
		"spike_factor", d.spikeFactor)

	return []*alert.Alert{a}, nil
}

// dailySeries returns one total cost per day for the trailing window,
// oldest first, with today as the final element.
func (d *TrendDetector) dailySeries(ctx context.Context, now time.Time) ([]float64, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	series := make([]float64, 0, d.windowDays)
	for i := d.windowDays - 1; i >= 0; i-- {
		dayStart := midnight.AddDate(0, 0, -i)
		dayEnd := dayStart.AddDate(0, 0, 1)

		costs, err := d.source.CostMetrics(ctx, dayStart, dayEnd, "")
		if err != nil {
			return nil, errors.Wrapf(err, "failed to aggregate daily cost: day=%s", dayStart.Format("2006-01-02"))
		}
		series = append(series, costs.TotalCostUSD)
	}
	return series, nil
}
