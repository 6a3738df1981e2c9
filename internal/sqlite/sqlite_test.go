package sqlite_test

import (
	"testing"

	"github.com/myrjola/petrcoach/internal/sqlite"
	"github.com/myrjola/petrcoach/internal/testhelpers"
)

func TestNewDatabase(t *testing.T) {
	ctx := t.Context()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))

	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() {
		if err = db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	if _, err = db.ReadWrite.ExecContext(ctx,
		"INSERT INTO users (id, timezone) VALUES (1, 'Europe/Helsinki')"); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	var tz string
	if err = db.ReadOnly.QueryRowContext(ctx, "SELECT timezone FROM users WHERE id = 1").Scan(&tz); err != nil {
		t.Fatalf("read pool does not see written row: %v", err)
	}
	if tz != "Europe/Helsinki" {
		t.Errorf("timezone = %q, want Europe/Helsinki", tz)
	}

	if _, err = db.ReadOnly.ExecContext(ctx, "DELETE FROM users"); err == nil {
		t.Error("expected the read-only pool to reject writes")
	}

	var tables int
	if err = db.ReadOnly.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_schema WHERE type = 'table'").Scan(&tables); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if want := 11; tables != want {
		t.Errorf("tables = %d, want %d", tables, want)
	}
}

func TestNewDatabase_SeparateInMemoryDatabases(t *testing.T) {
	ctx := t.Context()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))

	first, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	second, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}

	if _, err = first.ReadWrite.ExecContext(ctx, "INSERT INTO users (id) VALUES (1)"); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	var count int
	if err = second.ReadOnly.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 0 {
		t.Errorf("second database sees %d users, want 0", count)
	}
}
