package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ImportRun records one catalog import.
type ImportRun struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Cards      int        `json:"cards"`
	Skipped    int        `json:"skipped"`
}

func (s *Store) BeginImportRun(ctx context.Context, id, source string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO import_runs (id, source, started_at) VALUES (?, ?, ?)",
		id, source, startedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("recording import run %s: %w", id, err)
	}
	return nil
}

func (s *Store) FinishImportRun(ctx context.Context, id string, cards, skipped int, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE import_runs SET finished_at = ?, cards = ?, skipped = ? WHERE id = ?",
		finishedAt.UnixMilli(), cards, skipped, id,
	)
	if err != nil {
		return fmt.Errorf("finishing import run %s: %w", id, err)
	}
	return nil
}

// LastImportRun returns the most recent import, or nil if none ran yet.
func (s *Store) LastImportRun(ctx context.Context) (*ImportRun, error) {
	var (
		run        ImportRun
		startedAt  int64
		finishedAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, started_at, finished_at, cards, skipped
		FROM import_runs
		ORDER BY started_at DESC
		LIMIT 1
	`).Scan(&run.ID, &run.Source, &startedAt, &finishedAt, &run.Cards, &run.Skipped)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last import run: %w", err)
	}

	run.StartedAt = time.UnixMilli(startedAt)
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64)
		run.FinishedAt = &t
	}
	return &run, nil
}
