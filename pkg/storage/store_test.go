package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "cardex.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("Warning: failed to close store: %v", err)
		}
	})
	return s
}

func seedCards(t *testing.T, s *Store) {
	t.Helper()
	cards := []Card{
		{ID: "base1-4", Name: "Charizard", SetID: strPtr("base1"), SetName: strPtr("Base"), Number: strPtr("4"), Rarity: strPtr("Rare Holo"), Types: []string{"Fire"}},
		{ID: "base1-58", Name: "Pikachu", SetID: strPtr("base1"), SetName: strPtr("Base"), Number: strPtr("58"), Rarity: strPtr("Common"), Types: []string{"Lightning"}},
		{ID: "sv3pt5-25", Name: "Pikachu", SetID: strPtr("sv3pt5"), SetName: strPtr("151"), Number: strPtr("25"), Rarity: strPtr("Common")},
	}
	if _, err := s.UpsertCards(context.Background(), cards); err != nil {
		t.Fatalf("Failed to seed cards: %v", err)
	}
}

func TestUpsertAndGetCard(t *testing.T) {
	s := createTestStore(t)
	seedCards(t, s)
	ctx := context.Background()

	card, err := s.GetCard(ctx, "base1-4")
	if err != nil {
		t.Fatalf("GetCard failed: %v", err)
	}
	if card.Name != "Charizard" || *card.SetName != "Base" {
		t.Errorf("unexpected card: %+v", card)
	}
	if len(card.Types) != 1 || card.Types[0] != "Fire" {
		t.Errorf("expected types [Fire], got %v", card.Types)
	}
	if card.OwnedQty != 0 || card.Wishlisted {
		t.Errorf("fresh card should be unowned and not wishlisted: %+v", card)
	}

	card, err = s.GetCard(ctx, "sv3pt5-25")
	if err != nil {
		t.Fatalf("GetCard failed: %v", err)
	}
	if card.Types == nil || len(card.Types) != 0 {
		t.Errorf("missing types should project as empty list, got %#v", card.Types)
	}

	// upsert replaces in place
	if _, err := s.UpsertCards(ctx, []Card{{ID: "base1-4", Name: "Charizard", Rarity: strPtr("Rare")}}); err != nil {
		t.Fatalf("UpsertCards failed: %v", err)
	}
	card, _ = s.GetCard(ctx, "base1-4")
	if *card.Rarity != "Rare" || card.SetName != nil {
		t.Errorf("upsert did not replace card: %+v", card)
	}

	n, err := s.CountCards(ctx)
	if err != nil || n != 3 {
		t.Errorf("CountCards = %d, %v; want 3", n, err)
	}
}

func TestGetCardNotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetCard(context.Background(), "nope-1")
	if !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("expected ErrCardNotFound, got %v", err)
	}
}

func TestMalformedTypesDoNotFailProjection(t *testing.T) {
	s := createTestStore(t)
	seedCards(t, s)
	ctx := context.Background()

	if _, err := s.DB().ExecContext(ctx, "UPDATE cards SET types_json = '{broken' WHERE id = 'base1-58'"); err != nil {
		t.Fatalf("Failed to corrupt types: %v", err)
	}
	card, err := s.GetCard(ctx, "base1-58")
	if err != nil {
		t.Fatalf("GetCard failed: %v", err)
	}
	if len(card.Types) != 0 {
		t.Errorf("expected empty types for malformed value, got %v", card.Types)
	}
}

func TestDecodeTypes(t *testing.T) {
	tests := []struct {
		name    string
		raw     sql.NullString
		want    []string
		wantErr bool
	}{
		{"null", sql.NullString{}, []string{}, false},
		{"blank", sql.NullString{Valid: true}, []string{}, false},
		{"strings", sql.NullString{String: `["Fire","Darkness"]`, Valid: true}, []string{"Fire", "Darkness"}, false},
		{"mixed array keeps strings", sql.NullString{String: `["Fire",5,null,{"a":1}]`, Valid: true}, []string{"Fire"}, false},
		{"json null", sql.NullString{String: `null`, Valid: true}, []string{}, false},
		{"object", sql.NullString{String: `{"a":"Fire"}`, Valid: true}, nil, true},
		{"scalar", sql.NullString{String: `"Fire"`, Valid: true}, nil, true},
		{"broken", sql.NullString{String: `{broken`, Valid: true}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTypes(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeTypes(%q) error = %v, wantErr %v", tt.raw.String, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeTypes(%q) = %v, want %v", tt.raw.String, got, tt.want)
			}
		})
	}
}

func TestOwnershipLifecycle(t *testing.T) {
	s := createTestStore(t)
	seedCards(t, s)
	ctx := context.Background()

	for want := 1; want <= 2; want++ {
		qty, err := s.AddOwnership(ctx, "base1-4")
		if err != nil {
			t.Fatalf("AddOwnership failed: %v", err)
		}
		if qty != want {
			t.Errorf("AddOwnership qty = %d, want %d", qty, want)
		}
	}

	card, _ := s.GetCard(ctx, "base1-4")
	if card.OwnedQty != 2 {
		t.Errorf("owned_qty = %d, want 2", card.OwnedQty)
	}

	qty, err := s.RemoveOwnership(ctx, "base1-4")
	if err != nil || qty != 1 {
		t.Fatalf("RemoveOwnership = %d, %v; want 1", qty, err)
	}
	qty, err = s.RemoveOwnership(ctx, "base1-4")
	if err != nil || qty != 0 {
		t.Fatalf("RemoveOwnership = %d, %v; want 0", qty, err)
	}

	var rows int
	if err := s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM collection_items WHERE card_id = 'base1-4'").Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 0 {
		t.Errorf("record should be deleted when the last copy goes, found %d rows", rows)
	}

	// removing an unowned card is a no-op
	qty, err = s.RemoveOwnership(ctx, "base1-4")
	if err != nil || qty != 0 {
		t.Errorf("RemoveOwnership on unowned card = %d, %v; want 0, nil", qty, err)
	}
}

func TestAddOwnershipUnknownCard(t *testing.T) {
	s := createTestStore(t)
	_, err := s.AddOwnership(context.Background(), "missing-1")
	if !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("expected ErrCardNotFound, got %v", err)
	}
}

func TestConcurrentAddOwnership(t *testing.T) {
	s := createTestStore(t)
	seedCards(t, s)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AddOwnership(ctx, "base1-58"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent AddOwnership failed: %v", err)
	}

	qty, err := s.OwnedQty(ctx, "base1-58")
	if err != nil {
		t.Fatal(err)
	}
	if qty != workers {
		t.Errorf("qty = %d after %d concurrent adds", qty, workers)
	}
}

func TestUpdatedAtIsMonotonic(t *testing.T) {
	s := createTestStore(t)
	seedCards(t, s)
	ctx := context.Background()

	orig := nowMillis
	defer func() { nowMillis = orig }()
	nowMillis = func() int64 { return 1000 }

	if _, err := s.AddOwnership(ctx, "base1-4"); err != nil {
		t.Fatal(err)
	}
	// clock goes backwards
	nowMillis = func() int64 { return 500 }
	if _, err := s.AddOwnership(ctx, "base1-4"); err != nil {
		t.Fatal(err)
	}

	entries, err := s.ListCollection(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].UpdatedAt.UnixMilli(); got <= 1000 {
		t.Errorf("updated_at went backwards: %d", got)
	}
	if entries[0].Qty != 2 {
		t.Errorf("qty = %d, want 2", entries[0].Qty)
	}
}

func TestWishlist(t *testing.T) {
	s := createTestStore(t)
	seedCards(t, s)
	ctx := context.Background()

	high := 9
	entry, err := s.AddWishlist(ctx, "base1-4", &high, strPtr("holo please"))
	if err != nil {
		t.Fatalf("AddWishlist failed: %v", err)
	}
	if entry.Priority != MaxPriority {
		t.Errorf("priority = %d, want clamped %d", entry.Priority, MaxPriority)
	}

	if _, err := s.AddWishlist(ctx, "base1-58", nil, nil); err != nil {
		t.Fatalf("AddWishlist failed: %v", err)
	}

	card, _ := s.GetCard(ctx, "base1-4")
	if !card.Wishlisted {
		t.Error("card should be wishlisted")
	}

	entries, err := s.ListWishlist(ctx)
	if err != nil {
		t.Fatalf("ListWishlist failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 wishlist entries, got %d", len(entries))
	}
	byID := map[string]WishlistEntry{}
	for _, e := range entries {
		byID[e.ID] = e
	}
	if byID["base1-58"].Priority != DefaultPriority {
		t.Errorf("default priority = %d, want %d", byID["base1-58"].Priority, DefaultPriority)
	}
	if n := byID["base1-4"].Notes; n == nil || *n != "holo please" {
		t.Errorf("notes not stored: %v", n)
	}

	if err := s.RemoveWishlist(ctx, "base1-4"); err != nil {
		t.Fatal(err)
	}
	// idempotent
	if err := s.RemoveWishlist(ctx, "base1-4"); err != nil {
		t.Fatal(err)
	}
	card, _ = s.GetCard(ctx, "base1-4")
	if card.Wishlisted {
		t.Error("card should no longer be wishlisted")
	}

	if _, err := s.AddWishlist(ctx, "missing-1", nil, nil); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("expected ErrCardNotFound, got %v", err)
	}
}

func TestClampPriority(t *testing.T) {
	p := func(v int) *int { return &v }
	tests := []struct {
		in   *int
		want int
	}{
		{nil, 2},
		{p(0), 1},
		{p(-3), 1},
		{p(3), 3},
		{p(5), 5},
		{p(6), 5},
	}
	for _, tt := range tests {
		if got := ClampPriority(tt.in); got != tt.want {
			t.Errorf("ClampPriority(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestImportRunsAndStats(t *testing.T) {
	s := createTestStore(t)
	seedCards(t, s)
	ctx := context.Background()

	run, err := s.LastImportRun(ctx)
	if err != nil || run != nil {
		t.Fatalf("LastImportRun on empty store = %v, %v", run, err)
	}

	started := time.UnixMilli(1_700_000_000_000)
	if err := s.BeginImportRun(ctx, "run-1", "/tmp/data", started); err != nil {
		t.Fatal(err)
	}
	if err := s.FinishImportRun(ctx, "run-1", 3, 1, started.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddOwnership(ctx, "base1-4"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddOwnership(ctx, "base1-4"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddWishlist(ctx, "sv3pt5-25", nil, nil); err != nil {
		t.Fatal(err)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Cards != 3 || stats.Sets != 2 {
		t.Errorf("cards/sets = %d/%d, want 3/2", stats.Cards, stats.Sets)
	}
	if stats.Owned != 1 || stats.OwnedCopies != 2 || stats.Wishlisted != 1 {
		t.Errorf("unexpected tracker stats: %+v", stats)
	}
	if stats.LastImport == nil || stats.LastImport.ID != "run-1" || stats.LastImport.Skipped != 1 {
		t.Errorf("unexpected last import: %+v", stats.LastImport)
	}
	if stats.LastImport.FinishedAt == nil {
		t.Error("finished_at should be set")
	}
}

func TestMaintenance(t *testing.T) {
	s := createTestStore(t)
	seedCards(t, s)
	ctx := context.Background()

	for name, fn := range map[string]func(context.Context) error{
		"optimize":   s.Optimize,
		"analyze":    s.Analyze,
		"checkpoint": s.WALCheckpoint,
		"integrity":  s.IntegrityCheck,
		"vacuum":     s.Vacuum,
	} {
		if err := fn(ctx); err != nil {
			t.Errorf("%s failed: %v", name, err)
		}
	}
}
