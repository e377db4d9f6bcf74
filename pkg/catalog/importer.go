package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rubiojr/cardex/pkg/index"
	"github.com/rubiojr/cardex/pkg/storage"
)

// Result summarizes one import.
type Result struct {
	RunID    string
	Files    int
	Cards    int
	Skipped  int
	Sets     int
	Indexed  int
	Duration time.Duration
}

// Importer loads catalog checkouts into a store and rebuilds its text index.
type Importer struct {
	store *storage.Store
	index *index.Index
	now   func() time.Time
}

func NewImporter(store *storage.Store) *Importer {
	return &Importer{
		store: store,
		index: index.New(store.DB()),
		now:   time.Now,
	}
}

// Import reads every card file under dir, upserts the cards in a single
// transaction and rebuilds the text index in full. The run is recorded in
// the store whether or not it succeeds.
func (im *Importer) Import(ctx context.Context, dir string) (*Result, error) {
	started := im.now()
	res := &Result{RunID: uuid.NewString()}

	source, err := filepath.Abs(dir)
	if err != nil {
		source = dir
	}
	if err := im.store.BeginImportRun(ctx, res.RunID, source, started); err != nil {
		return nil, err
	}

	err = im.load(ctx, dir, res)

	if ferr := im.store.FinishImportRun(context.WithoutCancel(ctx), res.RunID, res.Cards, res.Skipped, im.now()); ferr != nil {
		logger.Warnf("failed to finish import run %s: %v", res.RunID, ferr)
	}
	if err != nil {
		return nil, err
	}

	res.Duration = im.now().Sub(started)
	logger.Infof("imported %d cards from %d files (%d skipped, %d indexed) in %s",
		res.Cards, res.Files, res.Skipped, res.Indexed, res.Duration.Round(time.Millisecond))
	return res, nil
}

func (im *Importer) load(ctx context.Context, dir string, res *Result) error {
	files, err := CardFiles(CardsDir(dir))
	if err != nil {
		return err
	}
	res.Files = len(files)

	setNames, err := LoadSetNames(SetsPath(dir))
	if err != nil {
		return err
	}
	res.Sets = len(setNames)
	logger.Debugf("found %d card files and %d sets in %s", len(files), len(setNames), dir)

	var cards []storage.Card
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}
		parsed, skipped, err := ParseCards(data, setNames)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", file, err)
		}
		if skipped > 0 {
			logger.Debugf("%s: skipped %d cards without id or name", filepath.Base(file), skipped)
		}
		res.Skipped += skipped
		cards = append(cards, parsed...)
	}

	written, err := im.store.UpsertCards(ctx, cards)
	if err != nil {
		return fmt.Errorf("storing cards: %w", err)
	}
	res.Cards = written

	indexed, err := im.index.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	res.Indexed = indexed

	return nil
}
