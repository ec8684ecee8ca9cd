package testsupport

import (
	"context"
	"fmt"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"argus/internal/adapters/config"
)

// NewClickHouseConn opens a ClickHouse connection for integration tests
// and ensures it is closed when the test finishes.
func NewClickHouseConn(t *testing.T, cfg config.ClickHouseConfig) driver.Conn {
	t.Helper()

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
	})
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		t.Fatalf("failed to ping clickhouse: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

// TruncateTable empties a ClickHouse table so tests start from a clean slate.
func TruncateTable(t *testing.T, conn driver.Conn, table string) {
	t.Helper()

	query := fmt.Sprintf("TRUNCATE TABLE IF EXISTS %s", table)
	if err := conn.Exec(context.Background(), query); err != nil {
		t.Fatalf("failed to truncate %s: %v", table, err)
	}
}
