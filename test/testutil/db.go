package testutil

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/ragbase/internal/db"
)

const TestDimension = 3

// PostgresConfig returns connection settings for the integration database.
// Tests calling it are skipped unless TEST_DB_HOST is set.
func PostgresConfig(t *testing.T) db.Config {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	port := 5432
	if v := os.Getenv("TEST_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}
	return db.Config{
		Host:     host,
		Port:     port,
		User:     envOr("TEST_DB_USER", "postgres"),
		Password: envOr("TEST_DB_PASSWORD", "postgres"),
		DBName:   envOr("TEST_DB_NAME", "ragbase_test"),
		SSLMode:  "disable",
	}
}

func OpenTestDB(t *testing.T) (*sqlx.DB, func()) {
	t.Helper()
	conn, err := db.Open(PostgresConfig(t))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	ctx := context.Background()
	if _, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS documents"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := db.ApplyMigrations(ctx, conn, TestDimension); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_, _ = conn.ExecContext(ctx, "DROP TABLE IF EXISTS documents")
		_ = conn.Close()
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
