package facets

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rubiojr/cardex/pkg/storage"
)

func strPtr(s string) *string { return &s }

func createTestAggregator(t *testing.T) (*Aggregator, *storage.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := storage.Open(ctx, filepath.Join(t.TempDir(), "cardex.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("Warning: failed to close store: %v", err)
		}
	})

	cards := []storage.Card{
		{ID: "base1-4", Name: "Charizard", SetID: strPtr("base1"), SetName: strPtr("Base Set"), Rarity: strPtr("Rare Holo"), Types: []string{"Fire"}},
		{ID: "base1-2", Name: "Blastoise", SetID: strPtr("base1"), SetName: strPtr("Base Set"), Rarity: strPtr("Rare Holo"), Types: []string{"Water"}},
		{ID: "sv3pt5-6", Name: "Charizard ex", SetID: strPtr("sv3pt5"), SetName: strPtr(" Scarlet & Violet: 151 "), Rarity: strPtr("Double Rare"), Types: []string{"Fire", " Dragon "}},
		{ID: "sm1-1", Name: "Dark Charizard", SetID: strPtr("sm1"), SetName: strPtr("Team Rocket"), Rarity: strPtr("   "), Types: []string{""}},
		{ID: "xy1-1", Name: "Venusaur-EX", SetID: strPtr("xy1"), SetName: strPtr("XY"), Rarity: strPtr("rare holo"), Types: []string{"Grass"}},
		{ID: "promo-1", Name: "Pikachu"},
	}
	if _, err := store.UpsertCards(ctx, cards); err != nil {
		t.Fatalf("Failed to seed cards: %v", err)
	}
	return NewAggregator(store), store
}

func TestFacets(t *testing.T) {
	a, _ := createTestAggregator(t)

	f, err := a.Facets(context.Background())
	if err != nil {
		t.Fatalf("Facets failed: %v", err)
	}

	wantSets := []string{"Base Set", "Scarlet & Violet: 151", "Team Rocket", "XY"}
	if !reflect.DeepEqual(f.Sets, wantSets) {
		t.Errorf("sets = %v, want %v", f.Sets, wantSets)
	}
	// case-sensitive: uppercase sorts before lowercase
	wantRarities := []string{"Double Rare", "Rare Holo", "rare holo"}
	if !reflect.DeepEqual(f.Rarities, wantRarities) {
		t.Errorf("rarities = %v, want %v", f.Rarities, wantRarities)
	}
	wantTypes := []string{"Dragon", "Fire", "Grass", "Water"}
	if !reflect.DeepEqual(f.Types, wantTypes) {
		t.Errorf("types = %v, want %v", f.Types, wantTypes)
	}
}

func TestFacetsSkipMalformedTypes(t *testing.T) {
	a, store := createTestAggregator(t)
	ctx := context.Background()

	updates := map[string]string{
		"base1-2": `{broken`,
		"xy1-1":   `"Grass"`,
		"sm1-1":   `["Darkness", 7, null]`,
	}
	for id, raw := range updates {
		if _, err := store.DB().ExecContext(ctx, "UPDATE cards SET types_json = ? WHERE id = ?", raw, id); err != nil {
			t.Fatal(err)
		}
	}

	f, err := a.Facets(ctx)
	if err != nil {
		t.Fatalf("malformed rows should not fail aggregation: %v", err)
	}
	want := []string{"Darkness", "Dragon", "Fire"}
	if !reflect.DeepEqual(f.Types, want) {
		t.Errorf("types = %v, want %v", f.Types, want)
	}
}

func TestFacetsEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(ctx, filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	f, err := NewAggregator(store).Facets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if f.Sets == nil || f.Rarities == nil || f.Types == nil {
		t.Error("empty facets should be empty lists, not nil")
	}
}

func TestSets(t *testing.T) {
	a, _ := createTestAggregator(t)

	sets, err := a.Sets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sets) != 4 {
		t.Fatalf("expected 4 sets, got %+v", sets)
	}
	if sets[0].ID != "base1" || sets[0].Cards != 2 {
		t.Errorf("first set = %+v", sets[0])
	}
	if sets[1].Name != "Scarlet & Violet: 151" {
		t.Errorf("set name should be trimmed, got %q", sets[1].Name)
	}
}

func TestSuggestSets(t *testing.T) {
	a, _ := createTestAggregator(t)
	ctx := context.Background()

	tests := []struct {
		query     string
		wantFirst string
	}{
		{"rocket", "sm1"},
		{"scvi", "sv3pt5"},
		{"sm1", "sm1"},
		{"BASE1", "base1"},
	}
	for _, tt := range tests {
		got, err := a.SuggestSets(ctx, tt.query, 5)
		if err != nil {
			t.Fatalf("SuggestSets(%q) failed: %v", tt.query, err)
		}
		if len(got) == 0 || got[0].ID != tt.wantFirst {
			t.Errorf("SuggestSets(%q) = %+v, want %s first", tt.query, got, tt.wantFirst)
		}
	}

	got, err := a.SuggestSets(ctx, "zzzz", 5)
	if err != nil || len(got) != 0 {
		t.Errorf("unmatched query = %+v, %v", got, err)
	}

	got, err = a.SuggestSets(ctx, "", 2)
	if err != nil || len(got) != 2 {
		t.Errorf("blank query should list the first 2 sets, got %+v, %v", got, err)
	}
}
