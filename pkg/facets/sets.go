package facets

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

const DefaultSuggestLimit = 10

// SetSummary is one catalog set.
type SetSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Cards int    `json:"cards"`
}

type setSource []SetSummary

func (s setSource) String(i int) string {
	return s[i].Name
}

func (s setSource) Len() int {
	return len(s)
}

// Sets lists every set with its card count, ordered by name then id. Cards
// without a set id are left out.
func (a *Aggregator) Sets(ctx context.Context) ([]SetSummary, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT set_id, COALESCE(MAX(set_name), ''), COUNT(*)
		FROM cards
		WHERE set_id IS NOT NULL AND TRIM(set_id) <> ''
		GROUP BY set_id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing sets: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()

	sets := []SetSummary{}
	for rows.Next() {
		var (
			s    SetSummary
			name sql.NullString
		)
		if err := rows.Scan(&s.ID, &name, &s.Cards); err != nil {
			return nil, fmt.Errorf("scanning set: %w", err)
		}
		s.Name = strings.TrimSpace(name.String)
		if s.Name == "" {
			s.Name = s.ID
		}
		sets = append(sets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sets: %w", err)
	}

	sort.Slice(sets, func(i, j int) bool {
		if sets[i].Name != sets[j].Name {
			return sets[i].Name < sets[j].Name
		}
		return sets[i].ID < sets[j].ID
	})
	return sets, nil
}

// SuggestSets ranks sets whose name fuzzily matches query, best first. An
// id typed exactly is always the first suggestion. A blank query returns the
// first sets by name.
func (a *Aggregator) SuggestSets(ctx context.Context, query string, limit int) ([]SetSummary, error) {
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}

	sets, err := a.Sets(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return sets[:min(limit, len(sets))], nil
	}

	var out []SetSummary
	exact := -1
	for i, s := range sets {
		if strings.EqualFold(s.ID, query) {
			exact = i
			out = append(out, s)
			break
		}
	}

	// matches come back best first
	for _, m := range fuzzy.FindFrom(query, setSource(sets)) {
		if len(out) >= limit {
			break
		}
		if m.Index == exact {
			continue
		}
		out = append(out, sets[m.Index])
	}

	if out == nil {
		out = []SetSummary{}
	}
	return out[:min(limit, len(out))], nil
}
