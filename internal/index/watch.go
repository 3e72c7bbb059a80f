package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eeshansrivastava89/datascienceapps/internal/summary"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last summary
// change before rebuilding. A batch run writes many summaries in a burst.
const DefaultDebounce = 500 * time.Millisecond

// Watcher rebuilds index.json whenever a summary below the output directory
// is created, changed or removed.
type Watcher struct {
	outputDir string
	debounce  time.Duration
	logger    *slog.Logger

	// onRebuild is called after each rebuild, from the Run goroutine.
	onRebuild func(ix *Index, err error)
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets the quiet period before a rebuild.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets a custom logger for the watcher.
func WithWatchLogger(logger *slog.Logger) WatchOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithOnRebuild registers a callback invoked after every rebuild.
func WithOnRebuild(fn func(ix *Index, err error)) WatchOption {
	return func(w *Watcher) {
		w.onRebuild = fn
	}
}

// NewWatcher creates a watcher for outputDir.
func NewWatcher(outputDir string, opts ...WatchOption) *Watcher {
	w := &Watcher{
		outputDir: outputDir,
		debounce:  DefaultDebounce,
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = slog.Default()
	}

	return w
}

// Run writes the index once, then watches until ctx is done. It returns nil
// on cancellation and an error only if watching cannot start or fails.
// Rebuild errors are logged and passed to the callback; watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.outputDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck // nothing to do on shutdown

	if err := addTree(watcher.Add, w.outputDir); err != nil {
		return err
	}

	w.logger.Info("watching summaries", "dir", w.outputDir, "debounce", w.debounce)
	return w.loop(ctx, watcher.Events, watcher.Errors, watcher.Add)
}

// loop rebuilds once, then rebuilds after each debounced burst of events
// until ctx is done or a source channel closes. add starts watching a
// directory.
func (w *Watcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, add func(string) error) error {
	w.rebuild()

	// The timer is owned by this goroutine; pending is nil while idle.
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("summary watcher stopped")
			return nil

		case event, ok := <-events:
			if !ok {
				return nil
			}
			if !w.handle(add, event) {
				continue
			}
			timer.Reset(w.debounce)
			pending = timer.C

		case <-pending:
			pending = nil
			w.rebuild()

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were dropped; rebuild from disk.
				w.logger.Warn("watch events overflowed, rebuilding", "error", err)
				timer.Reset(w.debounce)
				pending = timer.C
				continue
			}
			return fmt.Errorf("watch %s: %w", w.outputDir, err)
		}
	}
}

// handle processes one event and reports whether it calls for a rebuild.
// New project directories are added to the watch list.
func (w *Watcher) handle(add func(string) error, event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addTree(add, event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
			}
			// Summaries may have been written before the watch was added.
			return true
		}
	}

	if !strings.HasSuffix(event.Name, summary.FileSuffix) {
		return false
	}
	if event.Op == fsnotify.Chmod {
		return false
	}

	w.logger.Debug("summary changed", "file", event.Name, "op", event.Op.String())
	return true
}

// rebuild writes the index and reports the result.
func (w *Watcher) rebuild() {
	ix, err := Write(w.outputDir)
	if err != nil {
		w.logger.Error("failed to rebuild index", "error", err)
	} else {
		w.logger.Info("index rebuilt",
			"projects", len(ix.Projects),
			"notebooks", ix.NotebookCount(),
		)
	}

	if w.onRebuild != nil {
		w.onRebuild(ix, err)
	}
}

// addTree watches dir and every directory below it. fsnotify is not
// recursive.
func addTree(add func(string) error, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
