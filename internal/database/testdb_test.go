package database

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// openTestDB connects to TEST_DATABASE_URL and applies the embedded migrations.
// Tests using it are skipped when the variable is unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres-backed test")
	}

	db, err := New(url)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// seedUser inserts a free-plan user with a unique email
func seedUser(t *testing.T, db *DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO users (id, email, created_at, updated_at) VALUES ($1, $2, $3, $3)`,
		id, fmt.Sprintf("%s@example.com", id), time.Now())
	if err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return id
}

// uniqueVideoID returns an ID that no other test run uses
func uniqueVideoID() string {
	return "t" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}
