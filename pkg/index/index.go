// Package index maintains the cards_fts full text index and answers ranked
// prefix-token queries against it.
//
// The index is derived from the cards table and is only ever rebuilt in
// full, after an import. Queries always join back through cards so entries
// whose card has gone are never returned.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/rubiojr/cardex/pkg/log"
)

var logger = log.ForService("index")

// per-column bm25 weights: id, name, set_name, number, rarity
const bm25Weights = "0.0, 10.0, 4.0, 2.0, 1.0"

// Name position bonuses added on top of bm25.
const (
	namePrefixBonus = 3.0
	nameWordBonus   = 1.5
)

// Index is a handle on the full text index stored alongside the catalog.
type Index struct {
	db *sql.DB
}

func New(db *sql.DB) *Index {
	return &Index{db: db}
}

// Candidate is a ranked search hit.
type Candidate struct {
	ID    string
	Score float64
}

// ScoreExpression returns a SQL expression ranking a cards_fts match joined
// to cards c, higher is better, together with its bind arguments. The score
// is the negated bm25 rank plus a bonus for every token that starts the card
// name or one of its words.
func ScoreExpression(tokens []string) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("(-bm25(cards_fts, " + bm25Weights + ")")
	for _, tok := range tokens {
		fmt.Fprintf(&sb,
			" + CASE WHEN c.name LIKE ? THEN %.1f WHEN c.name LIKE ? THEN %.1f ELSE 0 END",
			namePrefixBonus, nameWordBonus)
		args = append(args, tok+"%", "% "+tok+"%")
	}
	sb.WriteString(")")
	return sb.String(), args
}

// Rebuild replaces the whole index with one entry per card and returns the
// number of entries written.
func (ix *Index) Rebuild(ctx context.Context) (int, error) {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				logger.Warnf("failed to rollback index rebuild: %v", err)
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cards_fts"); err != nil {
		return 0, fmt.Errorf("clearing index: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO cards_fts (id, name, set_name, number, rarity)
		SELECT
			id,
			name,
			COALESCE(set_name, ''),
			COALESCE(number, ''),
			COALESCE(rarity, '')
		FROM cards
	`)
	if err != nil {
		return 0, fmt.Errorf("populating index: %w", err)
	}
	written, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting index entries: %w", err)
	}

	var cards int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM cards").Scan(&cards); err != nil {
		return 0, fmt.Errorf("counting cards: %w", err)
	}
	if written != cards {
		return 0, fmt.Errorf("index has %d entries for %d cards", written, cards)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing index rebuild: %w", err)
	}
	committed = true

	logger.Debugf("rebuilt index with %d entries", written)
	return int(written), nil
}

// Count returns the number of index entries.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cards_fts").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting index entries: %w", err)
	}
	return n, nil
}

// IntegrityCheck asks FTS5 to verify the index structure.
func (ix *Index) IntegrityCheck(ctx context.Context) error {
	if _, err := ix.db.ExecContext(ctx, "INSERT INTO cards_fts(cards_fts) VALUES('integrity-check')"); err != nil {
		return fmt.Errorf("index integrity check: %w", err)
	}
	return nil
}

// Optimize merges the index b-trees into one.
func (ix *Index) Optimize(ctx context.Context) error {
	if _, err := ix.db.ExecContext(ctx, "INSERT INTO cards_fts(cards_fts) VALUES('optimize')"); err != nil {
		return fmt.Errorf("optimizing index: %w", err)
	}
	return nil
}

// Candidates returns up to limit card ids matching text, best first. The
// sequence is lazy: rows are read as the caller ranges over it, and stopping
// early releases the query. Text that tokenizes to nothing yields nothing.
func (ix *Index) Candidates(ctx context.Context, text string, limit int) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		tokens := Tokenize(text)
		if len(tokens) == 0 || limit <= 0 {
			return
		}

		score, args := ScoreExpression(tokens)
		args = append(args, MatchExpression(tokens), limit)

		rows, err := ix.db.QueryContext(ctx, `
			SELECT c.id, `+score+` AS score
			FROM cards_fts
			JOIN cards c ON c.id = cards_fts.id
			WHERE cards_fts MATCH ?
			ORDER BY score DESC, c.name ASC, c.id ASC
			LIMIT ?`, args...)
		if err != nil {
			yield(Candidate{}, fmt.Errorf("querying index: %w", err))
			return
		}
		defer func() {
			if err := rows.Close(); err != nil {
				logger.Warnf("failed to close rows: %v", err)
			}
		}()

		for rows.Next() {
			var c Candidate
			if err := rows.Scan(&c.ID, &c.Score); err != nil {
				yield(Candidate{}, fmt.Errorf("scanning candidate: %w", err))
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Candidate{}, err)
		}
	}
}
