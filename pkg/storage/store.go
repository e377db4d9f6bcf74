// Package storage is the cardex entity store: the immutable card catalog
// plus the two small mutable join sets (collection and wishlist), kept in a
// single SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rubiojr/cardex/pkg/db"
	"github.com/rubiojr/cardex/pkg/log"
)

var (
	// ErrCardNotFound is returned when a card id is not in the catalog.
	ErrCardNotFound = errors.New("card not found")
)

var logger = log.ForService("storage")

// nowMillis is the clock for updated_at/added_at columns.
var nowMillis = func() int64 {
	return time.Now().UnixMilli()
}

// Store is a long-lived, concurrency-safe handle on the catalog database.
// database/sql pools the underlying connections; callers never open or
// close connections per request.
type Store struct {
	db   *sql.DB
	path string
}

// connection pragmas travel in the DSN so every pooled connection gets them
var connPragmas = []string{
	"busy_timeout(30000)",
	"foreign_keys(1)",
	"journal_mode(wal)",
	"synchronous(normal)",
	"temp_store(memory)",
	"cache_size(-64000)",
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	q.Set("_txlock", "immediate")
	return "file:" + filepath.ToSlash(path) + "?" + q.Encode()
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	s, err := OpenWithoutMigrations(path)
	if err != nil {
		return nil, err
	}
	if err := db.InitializeDatabase(ctx, s.db); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return s, nil
}

// OpenWithoutMigrations opens the database as is. The migrate command uses it
// to report status before touching the schema.
func OpenWithoutMigrations(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	return &Store{db: sqlDB, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying pool for the text index and migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// withTx runs fn inside a write transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				logger.Warnf("failed to rollback transaction: %v", err)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return nil
}

func cardExists(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, id string) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM cards WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("looking up card %s: %w", id, err)
	}
	return nil
}

// Stats summarizes the store contents.
type Stats struct {
	Cards       int        `json:"cards"`
	Sets        int        `json:"sets"`
	Owned       int        `json:"owned"`
	OwnedCopies int        `json:"owned_copies"`
	Wishlisted  int        `json:"wishlisted"`
	LastImport  *ImportRun `json:"last_import,omitempty"`
}

func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT set_id) FROM cards",
	).Scan(&stats.Cards, &stats.Sets)
	if err != nil {
		return nil, fmt.Errorf("counting cards: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(qty), 0) FROM collection_items",
	).Scan(&stats.Owned, &stats.OwnedCopies)
	if err != nil {
		return nil, fmt.Errorf("counting collection: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM wishlist_items").Scan(&stats.Wishlisted)
	if err != nil {
		return nil, fmt.Errorf("counting wishlist: %w", err)
	}

	run, err := s.LastImportRun(ctx)
	if err != nil {
		return nil, err
	}
	stats.LastImport = run

	return stats, nil
}

func (s *Store) Optimize(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA optimize")
	return err
}

func (s *Store) Analyze(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "ANALYZE")
	return err
}

func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

func (s *Store) WALCheckpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// IntegrityCheck runs PRAGMA integrity_check and fails unless it reports ok.
func (s *Store) IntegrityCheck(ctx context.Context) error {
	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("running integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
