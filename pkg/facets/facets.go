// Package facets derives the filter vocabulary (sets, rarities and types)
// from the card catalog.
package facets

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rubiojr/cardex/pkg/log"
	"github.com/rubiojr/cardex/pkg/storage"
	"golang.org/x/sync/errgroup"
)

var logger = log.ForService("facets")

// Facets holds the distinct filter values, each trimmed, non-blank and
// sorted case-sensitively.
type Facets struct {
	Sets     []string `json:"sets"`
	Rarities []string `json:"rarities"`
	Types    []string `json:"types"`
}

// Aggregator computes facets from the store. It only reads.
type Aggregator struct {
	db *sql.DB
}

func NewAggregator(store *storage.Store) *Aggregator {
	return &Aggregator{db: store.DB()}
}

// Facets collects set names, rarities and types concurrently.
func (a *Aggregator) Facets(ctx context.Context) (*Facets, error) {
	f := &Facets{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sets, err := a.distinct(gctx, "set_name")
		if err != nil {
			return fmt.Errorf("collecting sets: %w", err)
		}
		f.Sets = sets
		return nil
	})
	g.Go(func() error {
		rarities, err := a.distinct(gctx, "rarity")
		if err != nil {
			return fmt.Errorf("collecting rarities: %w", err)
		}
		f.Rarities = rarities
		return nil
	})
	g.Go(func() error {
		types, err := a.types(gctx)
		if err != nil {
			return fmt.Errorf("collecting types: %w", err)
		}
		f.Types = types
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return f, nil
}

// distinct returns the cleaned distinct values of a cards text column.
func (a *Aggregator) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT DISTINCT %[1]s FROM cards WHERE %[1]s IS NOT NULL", column))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()

	values := newStringSet()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values.add(v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values.sorted(), nil
}

func (a *Aggregator) types(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT id, types_json FROM cards WHERE types_json IS NOT NULL AND TRIM(types_json) <> ''")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()

	values := newStringSet()
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}

		var parsed []any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			logger.Debugf("card %s: skipping malformed types %q: %v", id, raw, err)
			continue
		}
		for _, t := range parsed {
			if s, ok := t.(string); ok {
				values.add(s)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values.sorted(), nil
}

type stringSet map[string]struct{}

func newStringSet() stringSet {
	return stringSet{}
}

// add stores v trimmed, ignoring blanks.
func (s stringSet) add(v string) {
	if v = strings.TrimSpace(v); v != "" {
		s[v] = struct{}{}
	}
}

func (s stringSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
