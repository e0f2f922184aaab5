// Package tests holds integration tests that run against a real Postgres.
// They skip when DATABASE_URL is not set.
package tests

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/dailydrop/server/internal/db"
)

// appTables lists every table the application writes, children first
var appTables = []string{
	"notifications", "messages", "chat_participants", "chats",
	"user_devices", "users", "subscriptions",
}

// OpenTestDB connects to DATABASE_URL and applies migrations, or skips t.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	database, err := db.Open(context.Background(), url)
	if err != nil {
		t.Fatalf("database open must succeed; check DATABASE_URL and that test DB exists: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrations must run successfully: %v", err)
	}
	return database
}

// TruncateTables empties every application table for a clean test state.
func TruncateTables(ctx context.Context, database *sql.DB) error {
	for _, table := range appTables {
		if _, err := database.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}
