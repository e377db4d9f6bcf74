package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rubiojr/cardex/pkg/index"
	"github.com/rubiojr/cardex/pkg/storage"
)

const setsJSON = `[
	{"id": "base1", "name": "Base"},
	{"id": "sv3pt5", "name": "Scarlet & Violet: 151"},
	{"id": "", "name": "ignored"},
	"junk"
]`

const base1JSON = `[
	{"id": "base1-4", "name": "Charizard", "number": "4", "rarity": "Rare Holo", "types": ["Fire"],
	 "images": {"small": "https://images.pokemontcg.io/base1/4.png", "large": "https://images.pokemontcg.io/base1/4_hires.png"}},
	{"id": "base1-2", "name": " Blastoise ", "number": "2", "types": ["Water", 3]},
	{"id": "base1-99", "name": ""},
	{"name": "No Id"},
	42
]`

const sv3pt5JSON = `{"data": [
	{"id": "sv3pt5-25", "name": "Pikachu", "number": "25", "rarity": "Common", "types": "Lightning"}
]}`

const promoJSON = `{"cards": [
	{"id": "-7", "name": "Mystery", "images": {"small": "https://images.pokemontcg.io/swshp/7.png"}}
]}`

func writeCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"sets/en.json":        setsJSON,
		"cards/en/base1.json":  base1JSON,
		"cards/en/sv3pt5.json": sv3pt5JSON,
		"cards/en/promo.JSON":  promoJSON,
		"cards/en/README.md":   "not a card file",
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func createTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "cardex.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("Warning: failed to close store: %v", err)
		}
	})
	return store
}

func TestInferSetID(t *testing.T) {
	img := func(s string) *string { return &s }
	tests := []struct {
		id     string
		images []*string
		want   string
	}{
		{"mcd14-5", nil, "mcd14"},
		{"base1-4", []*string{img("https://images.pokemontcg.io/other/4.png")}, "base1"},
		{"nohyphen", nil, "nohyphen"},
		{"-5", []*string{nil, img("https://IMAGES.pokemontcg.io/mcd14/5_hires.png")}, "mcd14"},
		{"-5", []*string{img("https://example.com/x.png")}, ""},
		{"", nil, ""},
	}
	for _, tt := range tests {
		if got := InferSetID(tt.id, tt.images...); got != tt.want {
			t.Errorf("InferSetID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestParseCards(t *testing.T) {
	names := map[string]string{"base1": "Base"}

	cards, skipped, err := ParseCards([]byte(base1JSON), names)
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 2 || skipped != 3 {
		t.Fatalf("got %d cards, %d skipped; want 2, 3", len(cards), skipped)
	}

	charizard := cards[0]
	if charizard.SetID == nil || *charizard.SetID != "base1" || *charizard.SetName != "Base" {
		t.Errorf("set not inferred: %+v", charizard)
	}
	if charizard.ImageLarge == nil || *charizard.ImageLarge != "https://images.pokemontcg.io/base1/4_hires.png" {
		t.Errorf("large image not read: %v", charizard.ImageLarge)
	}
	if cards[1].Name != "Blastoise" {
		t.Errorf("name not trimmed: %q", cards[1].Name)
	}
	if !reflect.DeepEqual(cards[1].Types, []string{"Water"}) {
		t.Errorf("non-string types should be dropped, got %v", cards[1].Types)
	}

	cards, _, err = ParseCards([]byte(sv3pt5JSON), names)
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 1 || cards[0].Types != nil || cards[0].SetName != nil {
		t.Errorf("unexpected data-wrapped card: %+v", cards)
	}

	if _, _, err := ParseCards([]byte("{nope"), names); err == nil {
		t.Error("expected parse error")
	}
	cards, _, err = ParseCards([]byte(`{"other": []}`), names)
	if err != nil || len(cards) != 0 {
		t.Errorf("unknown shape should yield no cards, got %v, %v", cards, err)
	}
}

func TestLoadSetNames(t *testing.T) {
	dir := writeCatalog(t)

	names, err := LoadSetNames(SetsPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"base1": "Base", "sv3pt5": "Scarlet & Violet: 151"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}

	names, err = LoadSetNames(filepath.Join(dir, "missing.json"))
	if err != nil || len(names) != 0 {
		t.Errorf("missing sets file = %v, %v; want empty map", names, err)
	}
}

func TestImport(t *testing.T) {
	dir := writeCatalog(t)
	store := createTestStore(t)
	ctx := context.Background()

	res, err := NewImporter(store).Import(ctx, dir)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.Files != 3 || res.Cards != 4 || res.Skipped != 3 || res.Indexed != 4 || res.Sets != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.RunID == "" {
		t.Error("run id not set")
	}

	card, err := store.GetCard(ctx, "sv3pt5-25")
	if err != nil {
		t.Fatal(err)
	}
	if *card.SetName != "Scarlet & Violet: 151" {
		t.Errorf("set name = %v", card.SetName)
	}

	mystery, err := store.GetCard(ctx, "-7")
	if err != nil {
		t.Fatal(err)
	}
	if mystery.SetID == nil || *mystery.SetID != "swshp" {
		t.Errorf("set id from image url = %v", mystery.SetID)
	}

	n, err := index.New(store.DB()).Count(ctx)
	if err != nil || n != 4 {
		t.Errorf("index count = %d, %v", n, err)
	}

	run, err := store.LastImportRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if run == nil || run.ID != res.RunID || run.Cards != 4 || run.FinishedAt == nil {
		t.Errorf("import run not recorded: %+v", run)
	}

	// importing again is an upsert
	if _, err := NewImporter(store).Import(ctx, dir); err != nil {
		t.Fatal(err)
	}
	if total, _ := store.CountCards(ctx); total != 4 {
		t.Errorf("re-import changed card count to %d", total)
	}
}

func TestImportMissingCardsDir(t *testing.T) {
	store := createTestStore(t)

	_, err := NewImporter(store).Import(context.Background(), t.TempDir())
	if !errors.Is(err, ErrNoCardsDir) {
		t.Fatalf("expected ErrNoCardsDir, got %v", err)
	}
}

func TestImportBadFileLeavesStoreUntouched(t *testing.T) {
	dir := writeCatalog(t)
	if err := os.WriteFile(filepath.Join(CardsDir(dir), "zzz.json"), []byte("[{"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := createTestStore(t)
	ctx := context.Background()

	if _, err := NewImporter(store).Import(ctx, dir); err == nil {
		t.Fatal("expected import to fail on a malformed file")
	}
	if n, _ := store.CountCards(ctx); n != 0 {
		t.Errorf("failed import stored %d cards", n)
	}
}

func TestWatchReimports(t *testing.T) {
	dir := writeCatalog(t)
	store := createTestStore(t)
	im := NewImporter(store)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results := make(chan *Result, 4)
	done := make(chan error, 1)
	go func() {
		done <- im.Watch(ctx, dir, 50*time.Millisecond, func(res *Result, err error) {
			if err != nil {
				return
			}
			select {
			case results <- res:
			default:
			}
		})
	}()

	// give the watcher time to register
	time.Sleep(200 * time.Millisecond)
	extra := `[{"id": "neo1-1", "name": "Ampharos"}]`
	if err := os.WriteFile(filepath.Join(CardsDir(dir), "neo1.json"), []byte(extra), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case res := <-results:
		if res.Cards != 5 {
			t.Errorf("re-import stored %d cards, want 5", res.Cards)
		}
	case <-ctx.Done():
		t.Fatal("watcher did not re-import")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}
