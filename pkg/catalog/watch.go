package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for a burst of file changes to
// settle before re-importing.
const DefaultDebounce = 2 * time.Second

// Watch re-imports dir whenever a card or set file changes, until ctx is
// done. Bursts of events (a git pull touching every set) collapse into one
// import once no event has arrived for debounce. onImport, if set, receives
// every import outcome; failed imports are logged and watching continues.
func (im *Importer) Watch(ctx context.Context, dir string, debounce time.Duration, onImport func(*Result, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating catalog watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Warnf("failed to close catalog watcher: %v", err)
		}
	}()

	for _, path := range []string{CardsDir(dir), filepath.Dir(SetsPath(dir))} {
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
	}
	logger.Infof("watching %s for catalog changes", dir)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			logger.Debugf("catalog file changed: %s (%s)", event.Name, event.Op)
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("catalog watcher error: %v", err)

		case <-timer.C:
			res, err := im.Import(ctx, dir)
			if err != nil {
				logger.Errorf("re-import failed: %v", err)
			}
			if onImport != nil {
				onImport(res, err)
			}
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)
}
