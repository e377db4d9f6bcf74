package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/rubiojr/cardex/pkg/storage"
)

const (
	DefaultSuggestLimit = 8
	MaxSuggestLimit     = 20
)

// Suggest returns the best ranked cards for text, ignoring filters, for
// typeahead. Short or empty text yields nothing.
func (s *SearchService) Suggest(ctx context.Context, text string, limit int) ([]storage.ProjectedCard, error) {
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	limit = min(limit, MaxSuggestLimit)

	plan := NewPlan(SearchParams{Text: text})
	if !plan.HasText() || plan.MatchesNothing() {
		return []storage.ProjectedCard{}, nil
	}

	var ids []string
	for candidate, err := range s.index.Candidates(ctx, plan.Text, limit) {
		if err != nil {
			return nil, fmt.Errorf("suggesting cards: %w", err)
		}
		ids = append(ids, candidate.ID)
	}

	cards := make([]storage.ProjectedCard, 0, len(ids))
	for _, id := range ids {
		card, err := s.store.GetCard(ctx, id)
		if errors.Is(err, storage.ErrCardNotFound) {
			// card went away between the two queries
			continue
		}
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, nil
}
