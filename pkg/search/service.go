package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rubiojr/cardex/pkg/index"
	"github.com/rubiojr/cardex/pkg/log"
	"github.com/rubiojr/cardex/pkg/storage"
)

var logger = log.ForService("search")

// SearchResults is one page of search output.
type SearchResults struct {
	Rows []storage.ProjectedCard
	// HasText reports whether the page was produced by a text search.
	HasText bool
	// HasMore is true when the page is full.
	HasMore bool
	Page    int
	Limit   int
	Offset  int
	Sort    string
}

// SearchService executes search plans against the store.
type SearchService struct {
	store *storage.Store
	index *index.Index
	cache *resultCache
}

// NewSearchService creates a search service over store. Results are not
// cached until EnableCache is called.
func NewSearchService(store *storage.Store) *SearchService {
	return &SearchService{
		store: store,
		index: index.New(store.DB()),
	}
}

// EnableCache caches up to size result pages for ttl. A zero ttl leaves
// caching off.
func (s *SearchService) EnableCache(ttl time.Duration, size int) error {
	if ttl <= 0 {
		s.cache = nil
		return nil
	}
	cache, err := newResultCache(ttl, size)
	if err != nil {
		return fmt.Errorf("creating result cache: %w", err)
	}
	s.cache = cache
	return nil
}

// InvalidateCache drops every cached page. Call it after mutating ownership
// or wishlist state.
func (s *SearchService) InvalidateCache() {
	if s.cache != nil {
		s.cache.purge()
	}
}

// Search plans and executes params.
func (s *SearchService) Search(ctx context.Context, params SearchParams) (*SearchResults, error) {
	return s.Execute(ctx, NewPlan(params))
}

// Execute runs plan, serving it from the cache when enabled.
func (s *SearchService) Execute(ctx context.Context, plan Plan) (*SearchResults, error) {
	if s.cache == nil {
		return s.execute(ctx, plan)
	}
	return s.cache.load(ctx, plan.Key(), func(loadCtx context.Context) (*SearchResults, error) {
		return s.execute(loadCtx, plan)
	})
}

func (s *SearchService) execute(ctx context.Context, plan Plan) (*SearchResults, error) {
	results := &SearchResults{
		Rows:    []storage.ProjectedCard{},
		HasText: plan.HasText(),
		Page:    plan.Page,
		Limit:   plan.Limit,
		Offset:  plan.Offset,
		Sort:    plan.Sort,
	}

	if plan.MatchesNothing() {
		logger.Debugf("text %q has no searchable tokens", plan.Text)
		return results, nil
	}

	query, args := buildQuery(plan)
	logger.Debugf("executing plan sort=%s page=%d limit=%d predicates=%d text=%t",
		plan.Sort, plan.Page, plan.Limit, len(plan.Predicates), plan.HasText())

	rows, err := s.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing search: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			card storage.ProjectedCard
			err  error
		)
		if plan.HasText() {
			var score float64
			card, err = storage.ScanProjected(rows, &score)
		} else {
			card, err = storage.ScanProjected(rows)
		}
		if err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		results.Rows = append(results.Rows, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}

	results.HasMore = len(results.Rows) == plan.Limit
	return results, nil
}

// buildQuery renders the plan as one SELECT. With text, the FTS match and the
// predicates are combined in a single WHERE so filtering happens before
// pagination.
func buildQuery(plan Plan) (string, []any) {
	var (
		sb    strings.Builder
		args  []any
		where []string
	)

	sb.WriteString("SELECT" + storage.ProjectionColumns)
	if plan.HasText() {
		score, scoreArgs := index.ScoreExpression(plan.Tokens)
		sb.WriteString(",\n\t" + score + " AS score")
		args = append(args, scoreArgs...)
		sb.WriteString("\nFROM cards_fts\nJOIN cards c ON c.id = cards_fts.id")
		where = append(where, "cards_fts MATCH ?")
		args = append(args, index.MatchExpression(plan.Tokens))
	} else {
		sb.WriteString("\nFROM cards c")
	}
	sb.WriteString(storage.ProjectionJoins)

	for _, pred := range plan.Predicates {
		where = append(where, pred.SQL)
		args = append(args, pred.Args...)
	}
	if len(where) > 0 {
		sb.WriteString("\nWHERE " + strings.Join(where, "\n\tAND "))
	}

	sb.WriteString("\nORDER BY " + plan.OrderBy())
	sb.WriteString("\nLIMIT ? OFFSET ?")
	args = append(args, plan.Limit, plan.Offset)

	return sb.String(), args
}
