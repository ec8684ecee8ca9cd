package main

// Backfills synthetic request history straight into the ClickHouse
// archive, reaching further back than the Redis retention window.
// Useful for exercising long-horizon dashboards without waiting for
// the archive to fill up naturally.
//
// Usage:
//   go run scripts/backfill_archive.go --days 90 --per-day 500

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	chclient "argus/internal/adapters/clickhouse"
	"argus/internal/adapters/config"
	"argus/internal/domain/telemetry"
	"argus/internal/pricing"
	chrepo "argus/internal/repository/clickhouse"
	"argus/pkg/logger"
)

func main() {
	days := flag.Int("days", 90, "Days of history to backfill")
	perDay := flag.Int("per-day", 500, "Requests per backfilled day")
	seed := flag.Int64("seed", 1, "Random seed for reproducible data")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error: failed to load config:", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		fmt.Println("Error: failed to init logger:", err)
		os.Exit(1)
	}
	log := logger.Get()

	if !cfg.ClickHouse.Enabled {
		fmt.Println("Error: CLICKHOUSE_ENABLED must be true to backfill the archive")
		os.Exit(1)
	}

	fmt.Println("Archive Backfill Tool")
	fmt.Println("=====================")
	fmt.Printf("ClickHouse: %s:%d/%s\n", cfg.ClickHouse.Host, cfg.ClickHouse.Port, cfg.ClickHouse.Database)
	fmt.Printf("Window:     last %d days\n", *days)
	fmt.Printf("Volume:     %d requests/day\n", *perDay)
	fmt.Println("")

	client, err := chclient.NewClient(cfg.ClickHouse)
	if err != nil {
		log.Fatalf("Failed to connect clickhouse: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	archive := chrepo.NewArchiveRepository(client.Conn())
	if err := archive.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure archive schema: %v", err)
	}

	archive.Start(ctx)

	rng := rand.New(rand.NewSource(*seed))
	rates := pricing.NewTable()
	models := []string{"gpt-4", "gpt-3.5-turbo", "claude-3-opus", "claude-3-sonnet"}
	errorMessages := []string{"rate limit exceeded", "upstream timeout", "context length exceeded"}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	total := 0

	for dayOffset := *days; dayOffset > 0; dayOffset-- {
		dayStart := today.AddDate(0, 0, -dayOffset)

		for i := 0; i < *perDay; i++ {
			model := models[rng.Intn(len(models))]
			success := rng.Float64() > 0.06

			record := &telemetry.Record{
				RequestID:   uuid.New().String(),
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
			record.CostUSD = rates.Cost(record.ModelName, record.InputTokens, record.OutputTokens)

			if err := archive.Store(ctx, record); err != nil {
				log.Fatalf("Failed to buffer record: %v", err)
			}
			total++
		}

		if dayOffset%30 == 0 {
			fmt.Printf("  ... %d days remaining (%d records buffered)\n", dayOffset, total)
		}
	}

	// Drain whatever the batch writer still holds
	drainCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := archive.Stop(drainCtx); err != nil {
		log.Fatalf("Failed to drain archive buffer: %v", err)
	}

	fmt.Printf("\n✅ Backfilled %d records across %d days\n", total, *days)
}
