package search

import (
	"context"
	"testing"
)

func TestHostileInputIsInert(t *testing.T) {
	svc, store := createTestService(t, catalogCards)
	ctx := context.Background()

	attempts := []struct {
		name   string
		params SearchParams
	}{
		{"basic injection in text", SearchParams{Text: "'; DROP TABLE cards; --"}},
		{"union select in text", SearchParams{Text: "' UNION SELECT * FROM sqlite_master; --"}},
		{"fts operators", SearchParams{Text: `char* OR NEAR(pika mew) NOT "`}},
		{"column filter syntax", SearchParams{Text: "name:charizard"}},
		{"unbalanced quotes", SearchParams{Text: `"charizard`}},
		{"injection in set", SearchParams{Set: "base1' OR '1'='1"}},
		{"like wildcards in set", SearchParams{Set: "%_%"}},
		{"injection in rarity", SearchParams{Rarity: "Common' OR 1=1 --"}},
		{"injection in type", SearchParams{Type: `Fire"]') OR 1=1 --`}},
		{"injection in sort", SearchParams{Sort: "name; DROP TABLE cards"}},
	}

	for _, tt := range attempts {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Search(ctx, tt.params); err != nil {
				t.Errorf("Expected hostile input to be treated as data, got error: %v", err)
			}
		})
	}

	n, err := store.CountCards(ctx)
	if err != nil {
		t.Fatalf("CountCards failed: %v", err)
	}
	if n != len(catalogCards) {
		t.Errorf("Expected catalog to be intact with %d cards, got %d", len(catalogCards), n)
	}
}

func TestHostileSetFilterMatchesNothing(t *testing.T) {
	svc, _ := createTestService(t, catalogCards)

	for _, set := range []string{"base1' OR '1'='1", "%", "_", `\`} {
		res, err := svc.Search(context.Background(), SearchParams{Set: set})
		if err != nil {
			t.Fatalf("Search(set=%q) failed: %v", set, err)
		}
		if len(res.Rows) != 0 {
			t.Errorf("Expected set %q to match nothing, got %d rows", set, len(res.Rows))
		}
	}
}
