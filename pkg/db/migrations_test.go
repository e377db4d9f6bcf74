package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close database: %v", err)
		}
	})
	return db
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	migrations, err := GetEmbeddedMigrations()
	if err != nil {
		t.Fatalf("GetEmbeddedMigrations failed: %v", err)
	}
	if len(migrations) < 3 {
		t.Fatalf("expected at least 3 migrations, got %d", len(migrations))
	}
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration %d has version %d", i, m.Version)
		}
		if m.SQL == "" {
			t.Errorf("migration %d (%s) is empty", m.Version, m.Name)
		}
	}
	if migrations[0].Name != "catalog" {
		t.Errorf("first migration name = %q", migrations[0].Name)
	}
}

func TestInitializeDatabaseIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InitializeDatabase(ctx, db); err != nil {
		t.Fatalf("InitializeDatabase failed: %v", err)
	}
	if err := InitializeDatabase(ctx, db); err != nil {
		t.Fatalf("second InitializeDatabase failed: %v", err)
	}

	for _, table := range []string{"cards", "cards_fts", "collection_items", "wishlist_items", "import_runs"} {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE name = ?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	status, err := NewMigrationManager(db).GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if len(status.Pending) != 0 {
		t.Errorf("expected no pending migrations, got %d", len(status.Pending))
	}
	for _, m := range status.Applied {
		if m.AppliedAt == nil {
			t.Errorf("migration %d has no applied_at", m.Version)
		}
	}
}

func TestMigrationsFromPath(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"001_first.sql":  "CREATE TABLE a (id INTEGER);",
		"002_second.sql": "CREATE TABLE b (id INTEGER);",
		"notes.txt":      "ignored",
		"bad_name.sql":   "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	db := openTestDB(t)
	ctx := context.Background()
	mm := NewMigrationManagerFromPath(db, dir)

	if err := mm.EnsureMigrationsTable(ctx); err != nil {
		t.Fatal(err)
	}
	pending, err := mm.GetPendingMigrations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending migrations, got %d", len(pending))
	}

	n, err := mm.ApplyPendingMigrations(ctx)
	if err != nil || n != 2 {
		t.Fatalf("ApplyPendingMigrations = %d, %v", n, err)
	}
	n, err = mm.ApplyPendingMigrations(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second ApplyPendingMigrations = %d, %v", n, err)
	}
}

func TestFailedMigrationRollsBack(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_broken.sql"), []byte("CREATE TABLE ok (id INTEGER); NOT SQL;"), 0o644); err != nil {
		t.Fatal(err)
	}

	db := openTestDB(t)
	ctx := context.Background()
	mm := NewMigrationManagerFromPath(db, dir)

	if _, err := mm.ApplyPendingMigrations(ctx); err == nil {
		t.Fatal("expected broken migration to fail")
	}
	applied, err := mm.GetAppliedMigrations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 0 {
		t.Errorf("broken migration recorded as applied: %v", applied)
	}
}
