package testsupport

import (
	"fmt"
	"os"
	"testing"

	"argus/internal/adapters/config"
)

// StoreConfigs bundles config sections required for integration tests.
type StoreConfigs struct {
	Redis      config.RedisConfig
	ClickHouse config.ClickHouseConfig
}

// LoadStoreConfigsFromEnv reads minimal configuration for integration tests.
// Tests are skipped when required environment variables are missing.
func LoadStoreConfigsFromEnv(t *testing.T) StoreConfigs {
	t.Helper()

	required := []string{"REDIS_HOST"}

	missing := make([]string, 0)
	for _, key := range required {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		t.Skipf("integration environment missing, set %v to run", missing)
	}

	return StoreConfigs{
		Redis: config.RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     intValue("REDIS_PORT", 6379),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       intValue("REDIS_DB", 0),
		},
		ClickHouse: clickHouseConfigFromEnv(),
	}
}

// LoadClickHouseConfigFromEnv reads ClickHouse configuration for integration
// tests that do not need Redis. Skipped unless CLICKHOUSE_HOST is set.
func LoadClickHouseConfigFromEnv(t *testing.T) config.ClickHouseConfig {
	t.Helper()

	RequireClickHouseEnv(t)

	return clickHouseConfigFromEnv()
}

// RequireClickHouseEnv skips the test unless ClickHouse env vars are set.
func RequireClickHouseEnv(t *testing.T) {
	t.Helper()

	if os.Getenv("CLICKHOUSE_HOST") == "" {
		t.Skip("integration environment missing, set CLICKHOUSE_HOST to run")
	}
}

func clickHouseConfigFromEnv() config.ClickHouseConfig {
	return config.ClickHouseConfig{
		Host:     valueWithDefault("CLICKHOUSE_HOST", "localhost"),
		Port:     intValue("CLICKHOUSE_PORT", 9000),
		User:     valueWithDefault("CLICKHOUSE_USER", "default"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Database: valueWithDefault("CLICKHOUSE_DB", "llmops"),
	}
}

func valueWithDefault(key string, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func intValue(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		_, err := fmt.Sscanf(val, "%d", &parsed)
		if err == nil {
			return parsed
		}
	}

	return fallback
}
