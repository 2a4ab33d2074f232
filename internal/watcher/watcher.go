package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/avolkov/codetwin/internal/metrics"
	"github.com/avolkov/codetwin/pkg/treesitter"
)

// Reindexer is the slice of the indexing pipeline the watch loop drives.
// *indexer.Pipeline implements it.
type Reindexer interface {
	ProcessFile(ctx context.Context, root, rel string) error
	RemoveFile(ctx context.Context, rel string) error
}

type Config struct {
	Root       string
	Debounce   time.Duration
	IgnoreDirs []string
}

// Watcher keeps the graph in sync with a working tree. Editor save
// bursts for one file collapse into a single reindex via a per-path
// debounce timer; deletes apply immediately.
type Watcher struct {
	root      string
	reindexer Reindexer
	logger    *slog.Logger
	debounce  time.Duration
	ignore    map[string]struct{}

	fsw     *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]*time.Timer
}

func New(cfg Config, reindexer Reindexer, logger *slog.Logger) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ignore := make(map[string]struct{}, len(cfg.IgnoreDirs))
	for _, d := range cfg.IgnoreDirs {
		ignore[d] = struct{}{}
	}

	w := &Watcher{
		root:      cfg.Root,
		reindexer: reindexer,
		logger:    logger,
		debounce:  cfg.Debounce,
		ignore:    ignore,
		fsw:       fsw,
		pending:   make(map[string]*time.Timer),
	}
	if err := w.addRecursive(cfg.Root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if _, skip := w.ignore[info.Name()]; skip && path != dir {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Run blocks until ctx is cancelled or the event channel closes. Handler
// failures are logged and the loop keeps going; the failed file's hash
// never advances, so a later full pass retries it.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching for changes", "root", w.root, "debounce", w.debounce)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || w.ignored(rel) {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if _, skip := w.ignore[info.Name()]; !skip {
				if err := w.addRecursive(event.Name); err != nil {
					w.logger.Error("failed to watch new directory", "path", rel, "error", err)
				}
			}
			return
		}
		w.scheduleReindex(ctx, rel)

	case event.Op&fsnotify.Write != 0:
		w.scheduleReindex(ctx, rel)

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if !treesitter.Supported(filepath.Ext(rel)) {
			return
		}
		w.cancelPending(rel)
		metrics.WatchEvents.Inc()
		if err := w.reindexer.RemoveFile(ctx, rel); err != nil {
			w.logger.Error("failed to remove file from graph", "path", rel, "error", err)
			return
		}
		w.logger.Info("removed from graph", "path", rel)
	}
}

func (w *Watcher) scheduleReindex(ctx context.Context, rel string) {
	if !treesitter.Supported(filepath.Ext(rel)) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, exists := w.pending[rel]; exists {
		timer.Stop()
	}
	w.pending[rel] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, rel)
		w.mu.Unlock()

		// The file may be gone by the time the timer fires; the remove
		// event handles that case.
		if _, err := os.Stat(filepath.Join(w.root, rel)); err != nil {
			return
		}

		metrics.WatchEvents.Inc()
		if err := w.reindexer.ProcessFile(ctx, w.root, rel); err != nil {
			w.logger.Error("failed to reindex file", "path", rel, "error", err)
			return
		}
		w.logger.Info("reindexed", "path", rel)
	})
}

func (w *Watcher) cancelPending(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, exists := w.pending[rel]; exists {
		timer.Stop()
		delete(w.pending, rel)
	}
}

func (w *Watcher) ignored(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if _, skip := w.ignore[part]; skip {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, timer := range w.pending {
		timer.Stop()
	}
	w.pending = make(map[string]*time.Timer)
	return w.fsw.Close()
}
