package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"argus/internal/adapters/config"
	redisclient "argus/internal/adapters/redis"
	"argus/internal/domain/telemetry"
	"argus/internal/kv"
	"argus/internal/pricing"
	"argus/internal/repository/kvstore"
	experimentsvc "argus/internal/services/experiment"
	promptsvc "argus/internal/services/prompts"
	telemetrysvc "argus/internal/services/telemetry"
	"argus/pkg/logger"
)

// seedEnv carries the services every seed step works against.
type seedEnv struct {
	prompts     *promptsvc.Service
	experiments *experimentsvc.Service
	telemetry   *telemetrysvc.Service

	days        int
	perDay      int
	rng         *rand.Rand
	chatPrompts []string // prompt ids created by seedPrompts, variants for the experiment
}

type seedStep struct {
	name string
	run  func(ctx context.Context, env *seedEnv) error
}

func main() {
	days := flag.Int("days", 7, "Days of synthetic request history to backfill")
	perDay := flag.Int("per-day", 120, "Synthetic requests per day")
	seed := flag.Int64("seed", 42, "Random seed for reproducible data")
	dryRun := flag.Bool("dry-run", false, "List seed steps without executing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	log := logger.Get()
	log.Infow("Starting seeder",
		"days", *days,
		"per_day", *perDay,
		"dry_run", *dryRun,
		"redis", cfg.Redis.Addr(),
	)

	steps := []seedStep{
		{"prompts", seedPrompts},
		{"experiment", seedExperiment},
		{"telemetry", seedTelemetry},
	}

	if *dryRun {
		for i, step := range steps {
			log.Infow("Seed step", "step", i+1, "name", step.name)
		}
		log.Info("✅ Dry-run mode: seed steps validated")
		return
	}

	// Connect to Redis
	redisClient, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Successfully connected to redis")

	store := kv.NewRedisStore(redisClient.Client(), cfg.Telemetry.OpTimeout)
	rates := pricing.NewTable()

	promptService := promptsvc.NewService(kvstore.NewPromptRepository(store), log)
	env := &seedEnv{
		prompts: promptService,
		experiments: experimentsvc.NewService(
			kvstore.NewExperimentRepository(store, cfg.Experiments.ConfigTTL),
			promptService,
			log,
		),
		telemetry: telemetrysvc.NewService(
			kvstore.NewTelemetryRepository(store, cfg.Telemetry.RecordTTL, cfg.Telemetry.IndexTTL),
			rates,
			cfg.Telemetry.ScanPageSize,
			log,
		),
		days:   *days,
		perDay: *perDay,
		rng:    rand.New(rand.NewSource(*seed)),
	}

	ctx := context.Background()
	for i, step := range steps {
		log.Infow("Executing seed", "step", i+1, "total", len(steps), "name", step.name)

		if err := step.run(ctx, env); err != nil {
			log.Errorw("Failed to execute seed",
				"step", i+1,
				"name", step.name,
				"error", err,
			)
			return
		}

		log.Infow("✅ Seed completed", "step", i+1, "name", step.name)
	}

	log.Info("✅ All seeds applied successfully")
}

// seedPrompts creates the starter prompt families and activates one
// version per family. The support-chat family gets a second draft
// version so the experiment step has two variants to split between.
func seedPrompts(ctx context.Context, env *seedEnv) error {
	log := logger.Get()

	starters := []struct {
		name        string
		text        string
		description string
		activate    bool
	}{
		{
			name:        "support-chat",
			text:        "You are a concise support assistant.\n\nContext: {context}\n\nQuestion: {question}",
			description: "Baseline support assistant prompt",
			activate:    true,
		},
		{
			name:        "support-chat",
			text:        "You are a friendly support assistant. Keep answers short and warm.\n\nContext: {context}\n\nQuestion: {question}",
			description: "Warmer tone candidate",
			activate:    false,
		},
		{
			name:        "summarization",
			text:        "Summarize the following text in three bullet points:\n\n{text}",
			description: "Bullet point summarizer",
			activate:    true,
		},
		{
			name:        "translation",
			text:        "Translate from {source_language} to {target_language}:\n\n{text}",
			description: "Direct translation prompt",
			activate:    true,
		},
	}

	for _, starter := range starters {
		tmpl, err := env.prompts.Create(ctx, starter.name, starter.text, starter.description)
		if err != nil {
			return err
		}
		if starter.activate {
			if _, err := env.prompts.Activate(ctx, tmpl.ID); err != nil {
				return err
			}
		}
		if starter.name == "support-chat" {
			env.chatPrompts = append(env.chatPrompts, tmpl.ID)
		}
		log.Infow("Prompt seeded",
			"name", starter.name,
			"prompt_id", tmpl.ID,
			"version", tmpl.Version,
			"active", starter.activate,
		)
	}

	return nil
}

// seedExperiment routes a slice of support-chat traffic to the warmer
// tone candidate created by seedPrompts.
func seedExperiment(ctx context.Context, env *seedEnv) error {
	if len(env.chatPrompts) < 2 {
		return fmt.Errorf("expected two support-chat prompt versions, got %d", len(env.chatPrompts))
	}

	assignment, err := env.experiments.Start(ctx, "support-chat-tone", env.chatPrompts[0], env.chatPrompts[1], 0.3)
	if err != nil {
		return err
	}

	logger.Get().Infow("Experiment seeded",
		"name", assignment.ExperimentName,
		"variant_a", assignment.VariantAID,
		"variant_b", assignment.VariantBID,
		"traffic_split", assignment.TrafficSplit,
	)
	return nil
}

// seedTelemetry backfills synthetic request history across the
// configured day window. Records go through the regular ingest path so
// cost derivation and day indexing behave exactly like live traffic.
func seedTelemetry(ctx context.Context, env *seedEnv) error {
	models := []string{"gpt-4", "gpt-3.5-turbo", "claude-3-opus", "claude-3-sonnet"}
	errorMessages := []string{"rate limit exceeded", "upstream timeout", "context length exceeded"}

	now := time.Now().UTC()
	total := 0

	for dayOffset := env.days - 1; dayOffset >= 0; dayOffset-- {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -dayOffset)

		for i := 0; i < env.perDay; i++ {
			model := models[env.rng.Intn(len(models))]
			record := newSyntheticRecord(env.rng, model, dayStart, errorMessages)

			if dayOffset == 0 && record.Timestamp.After(now) {
				// Keep today's traffic in the past
				record.Timestamp = now.Add(-time.Duration(env.rng.Intn(3600)) * time.Second)
			}

			if _, err := env.telemetry.Ingest(ctx, record); err != nil {
				return err
			}
			total++
		}
	}

	logger.Get().Infow("Telemetry backfilled", "records", total, "days", env.days)
	return nil
}

func newSyntheticRecord(rng *rand.Rand, model string, dayStart time.Time, errorMessages []string) *telemetry.Record {
	success := rng.Float64() > 0.06
	record := &telemetry.Record{
		ModelName:   model,
		UserID:      fmt.Sprintf("user-%03d", rng.Intn(40)),
		Timestamp:   dayStart.Add(time.Duration(rng.Intn(86400)) * time.Second),
		InputTokens: 50 + rng.Intn(900),
		LatencyMs:   float64(80 + rng.Intn(1500)),
		Success:     success,
	}
	if success {
		record.OutputTokens = 20 + rng.Intn(600)
	} else {
		record.ErrorMessage = errorMessages[rng.Intn(len(errorMessages))]
	}
	return record
}
