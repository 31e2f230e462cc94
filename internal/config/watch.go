package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes a config file and invokes a callback when it changes.
// Editors and config management tools often replace files rather than
// write in place, so the watcher monitors the parent directory and
// filters events for the target name.
type Watcher struct {
	path     string
	onChange func()
	logger   *slog.Logger

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher creates a watcher for the given config file path.
// onChange is called after each (debounced) modification.
func NewWatcher(path string, onChange func(), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, onChange: onChange, logger: logger}
}

// Run watches until ctx is cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return err
	}
	w.logger.Debug("watching config file", "path", w.path)

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("config file changed", "op", event.Op.String())
			w.fireDebounced()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

// fireDebounced collapses the bursts of events file replacement produces
// into a single callback.
func (w *Watcher) fireDebounced() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(100*time.Millisecond, w.onChange)
}
