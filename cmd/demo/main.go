package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"

	"argus/internal/domain/telemetry"
	"argus/internal/kv"
	"argus/internal/pricing"
	"argus/internal/repository/kvstore"
	alertingsvc "argus/internal/services/alerting"
	analyticssvc "argus/internal/services/analytics"
	evaluationsvc "argus/internal/services/evaluation"
	experimentsvc "argus/internal/services/experiment"
	modelsvc "argus/internal/services/models"
	promptsvc "argus/internal/services/prompts"
	telemetrysvc "argus/internal/services/telemetry"
	"argus/pkg/logger"
)

// The demo runs the whole platform in-process against the in-memory
// store: it registers models, versions prompts, routes experiment
// traffic, ingests a week of synthetic requests and then reports what
// the analytics and alerting layers make of it.
func main() {
	days := flag.Int("days", 7, "Days of synthetic history to simulate")
	perDay := flag.Int("per-day", 150, "Baseline requests per simulated day")
	threshold := flag.Float64("threshold", 2.0, "Daily cost alert threshold in USD")
	seed := flag.Int64("seed", 7, "Random seed for reproducible traffic")
	flag.Parse()

	// Keep service chatter out of the report
	if err := logger.Init("warn", "production"); err != nil {
		fmt.Println("Error: failed to init logger:", err)
		os.Exit(1)
	}
	log := logger.Get()

	d := newDemo(log, *seed)
	ctx := context.Background()

	fmt.Println("argus demo: LLM ops walkthrough (in-memory store)")
	fmt.Println()

	d.registerModels()
	if err := d.seedPrompts(ctx); err != nil {
		fatal("seed prompts", err)
	}
	if err := d.startExperiment(ctx); err != nil {
		fatal("start experiment", err)
	}
	if err := d.simulateTraffic(ctx, *days, *perDay); err != nil {
		fatal("simulate traffic", err)
	}
	if err := d.runEvaluation(ctx); err != nil {
		fatal("run evaluation", err)
	}
	if err := d.report(ctx, *days, *threshold); err != nil {
		fatal("report", err)
	}
}

func fatal(stage string, err error) {
	fmt.Printf("Error: %s: %v\n", stage, err)
	os.Exit(1)
}

// demo wires the full service stack over a single in-memory store.
type demo struct {
	rates       *pricing.Table
	models      *modelsvc.Service
	prompts     *promptsvc.Service
	experiments *experimentsvc.Service
	telemetry   *telemetrysvc.Service
	analytics   *analyticssvc.Service
	evaluator   *evaluationsvc.Service

	rng         *rand.Rand
	chatPrompts []string
}

func newDemo(log *logger.Logger, seed int64) *demo {
	store := kv.NewMemoryStore()
	rates := pricing.NewTable()

	// Generous record TTL so the whole simulated window stays scannable
	telemetryService := telemetrysvc.NewService(
		kvstore.NewTelemetryRepository(store, 31*24*time.Hour, 31*24*time.Hour),
		rates,
		500,
		log,
	)
	promptService := promptsvc.NewService(kvstore.NewPromptRepository(store), log)

	return &demo{
		rates:       rates,
		models:      modelsvc.NewService(rates, log),
		prompts:     promptService,
		experiments: experimentsvc.NewService(kvstore.NewExperimentRepository(store, 24*time.Hour), promptService, log),
		telemetry:   telemetryService,
		analytics:   analyticssvc.NewService(telemetryService, log),
		evaluator:   evaluationsvc.NewService(rates, telemetryService, log),
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (d *demo) registerModels() {
	fmt.Println("── Model registry ──")
	registrations := []struct {
		name, provider, description string
	}{
		{"gpt-4", "openai", "Flagship general model"},
		{"gpt-3.5-turbo", "openai", "Fast default for chat"},
		{"claude-3-opus", "anthropic", "Deep reasoning model"},
		{"claude-3-sonnet", "anthropic", "Balanced cost and quality"},
	}
	for _, reg := range registrations {
		meta, err := d.models.Register(reg.name, reg.provider, nil, reg.description)
		if err != nil {
			continue
		}
		fmt.Printf("  %-16s %-10s $%.4f per 1k tokens\n", meta.Name, reg.provider, meta.CostPer1KTokens)
	}
	fmt.Println()
}

func (d *demo) seedPrompts(ctx context.Context) error {
	fmt.Println("── Prompt versions ──")

	baseline, err := d.prompts.Create(ctx,
		"support-chat",
		"You are a concise support assistant.\n\nContext: {context}\n\nQuestion: {question}",
		"Baseline support assistant prompt")
	if err != nil {
		return err
	}
	if _, err := d.prompts.Activate(ctx, baseline.ID); err != nil {
		return err
	}

	candidate, err := d.prompts.Create(ctx,
		"support-chat",
		"You are a friendly support assistant. Keep answers short and warm.\n\nContext: {context}\n\nQuestion: {question}",
		"Warmer tone candidate")
	if err != nil {
		return err
	}

	d.chatPrompts = []string{baseline.ID, candidate.ID}
	fmt.Printf("  support-chat v%d (active)  %s\n", baseline.Version, baseline.ID)
	fmt.Printf("  support-chat v%d (draft)   %s\n", candidate.Version, candidate.ID)
	fmt.Println()
	return nil
}

func (d *demo) startExperiment(ctx context.Context) error {
	fmt.Println("── Experiment: support-chat-tone (30% to variant B) ──")

	if _, err := d.experiments.Start(ctx, "support-chat-tone", d.chatPrompts[0], d.chatPrompts[1], 0.3); err != nil {
		return err
	}

	// The same user keeps landing on the same variant
	for _, userID := range []string{"user-007", "user-013"} {
		first, err := d.experiments.Assign(ctx, "support-chat-tone", userID)
		if err != nil {
			return err
		}
		second, err := d.experiments.Assign(ctx, "support-chat-tone", userID)
		if err != nil {
			return err
		}
		fmt.Printf("  %s -> variant %s (repeat assignment: %s, sticky=%v)\n",
			userID, first.Variant, second.Variant, first.Variant == second.Variant)
	}
	fmt.Println()
	return nil
}

// simulateTraffic ingests a growing request load with a deliberate
// spike on the final day so the alerting layer has something to find.
func (d *demo) simulateTraffic(ctx context.Context, days, perDay int) error {
	models := []string{"gpt-4", "gpt-3.5-turbo", "claude-3-opus", "claude-3-sonnet"}
	errorMessages := []string{"rate limit exceeded", "upstream timeout", "context length exceeded"}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	total := 0

	for dayOffset := days - 1; dayOffset >= 0; dayOffset-- {
		dayStart := today.AddDate(0, 0, -dayOffset)

		count := perDay + d.rng.Intn(perDay/4+1)
		if dayOffset == 0 {
			count *= 3 // the spike the trend detector should flag
		}

		for i := 0; i < count; i++ {
			userID := fmt.Sprintf("user-%03d", d.rng.Intn(40))

			selection, err := d.experiments.Assign(ctx, "support-chat-tone", userID)
			if err != nil {
				return err
			}

			success := d.rng.Float64() > 0.06
			record := &telemetry.Record{
				ModelName:   models[d.rng.Intn(len(models))],
				PromptID:    selection.Prompt.ID,
				UserID:      userID,
				Timestamp:   dayStart.Add(time.Duration(d.rng.Intn(86400)) * time.Second),
				InputTokens: 50 + d.rng.Intn(900),
				LatencyMs:   float64(80 + d.rng.Intn(1500)),
				Success:     success,
			}
			if success {
				record.OutputTokens = 20 + d.rng.Intn(600)
			} else {
				record.ErrorMessage = errorMessages[d.rng.Intn(len(errorMessages))]
			}
			if record.Timestamp.After(now) {
				record.Timestamp = now.Add(-time.Duration(d.rng.Intn(3600)) * time.Second)
			}

			if _, err := d.telemetry.Ingest(ctx, record); err != nil {
				return err
			}
			total++
		}
	}

	fmt.Printf("── Traffic ──\n  ingested %s synthetic requests over %d days\n\n",
		humanize.Comma(int64(total)), days)
	return nil
}

func (d *demo) runEvaluation(ctx context.Context) error {
	fmt.Println("── Evaluation: gpt-4 on the built-in suite ──")

	report, err := d.evaluator.EvaluateModel(ctx,
		"gpt-4", "",
		"Context: {context}\n\nQuestion: {question}",
		[]string{"chat_001", "complex_001"},
		"eval-runner")
	if err != nil {
		return err
	}

	fmt.Printf("  cases=%d passed=%d accuracy=%.2f avg_latency=%.0fms cost=$%.4f\n\n",
		report.TotalTests, report.SuccessfulTests, report.AvgAccuracy,
		report.AvgLatencyMs, report.TotalCostUSD)
	return nil
}

func (d *demo) report(ctx context.Context, days int, threshold float64) error {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	windowStart := today.AddDate(0, 0, -(days - 1))
	windowEnd := today.AddDate(0, 0, 1)

	costs, err := d.analytics.CostMetrics(ctx, windowStart, windowEnd, "")
	if err != nil {
		return err
	}
	performance, err := d.analytics.PerformanceMetrics(ctx, windowStart, windowEnd, "")
	if err != nil {
		return err
	}
	errorSummary, err := d.analytics.ErrorSummary(ctx, windowStart, windowEnd)
	if err != nil {
		return err
	}

	fmt.Println("── Cost ──")
	fmt.Printf("  requests=%d tokens=%s total=$%s avg/request=$%.5f\n",
		costs.RequestsCount,
		humanize.Comma(int64(costs.TokensCount)),
		humanize.CommafWithDigits(costs.TotalCostUSD, 2),
		costs.CostPerRequest)

	fmt.Println("── Performance ──")
	fmt.Printf("  success=%.1f%% latency avg=%.0fms p95=%.0fms range=[%.0fms, %.0fms]\n",
		performance.SuccessRate*100,
		performance.AvgLatencyMs,
		performance.P95LatencyMs,
		performance.MinLatencyMs,
		performance.MaxLatencyMs)

	fmt.Println("── Errors ──")
	fmt.Printf("  total=%d rate=%.4f\n", errorSummary.TotalErrors, errorSummary.ErrorRate)
	for errType, count := range errorSummary.ErrorTypes {
		fmt.Printf("    %-26s %d\n", errType, count)
	}
	fmt.Println()

	// Daily spend sparkline
	series := make([]float64, 0, days)
	for dayOffset := days - 1; dayOffset >= 0; dayOffset-- {
		dayStart := today.AddDate(0, 0, -dayOffset)
		dayCosts, err := d.analytics.CostMetrics(ctx, dayStart, dayStart.AddDate(0, 0, 1), "")
		if err != nil {
			return err
		}
		series = append(series, dayCosts.TotalCostUSD)
	}
	fmt.Println(asciigraph.Plot(series,
		asciigraph.Height(8),
		asciigraph.Width(8*days),
		asciigraph.Caption(fmt.Sprintf("Daily spend, USD (last %d days)", days))))
	fmt.Println()

	// Alerting over the simulated spend
	trend := alertingsvc.NewTrendDetector(d.analytics, days, 2.0, logger.Get())
	alerting := alertingsvc.NewService(d.analytics, threshold, trend, logger.Get())

	alerts, err := alerting.Check(ctx)
	if err != nil {
		return err
	}

	fmt.Println("── Alerts ──")
	if len(alerts) == 0 {
		fmt.Println("  none fired")
	}
	for _, a := range alerts {
		fmt.Printf("  [%s/%s] %s\n", a.Type, a.Severity, a.Message)
	}

	return nil
}
