package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/alexanderramin/wbsledger/internal/db"
	"github.com/alexanderramin/wbsledger/internal/domain"
)

// Now is the fixed instant used by fixtures and TestClock.
var Now = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

// NewTestDB creates an in-memory SQLite database with all migrations applied.
// The database is closed when the test completes.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenDB(db.MemoryPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}

// NewTestUoW creates a UnitOfWork backed by the given test database.
func NewTestUoW(database *sql.DB) db.UnitOfWork {
	return db.NewSQLiteUnitOfWork(database)
}

// TestClock returns a clock frozen at Now.
func TestClock() domain.FixedClock {
	return domain.FixedClock{At: Now}
}
