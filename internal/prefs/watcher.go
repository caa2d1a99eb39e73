// internal/prefs/watcher.go
package prefs

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// DefaultDebounce is how long the watcher waits after the last change to the
// database files before reloading.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads the cache whenever the preference database changes on disk,
// including writes made by other processes sharing the file.
type Watcher struct {
	store    *Store
	cache    *Cache
	logger   *slog.Logger
	debounce time.Duration
	dir      string
	names    map[string]bool

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for store's database file. A debounce of zero
// uses DefaultDebounce.
func NewWatcher(store *Store, cache *Cache, logger *slog.Logger, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	dir := filepath.Dir(store.Path())
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	base := filepath.Base(store.Path())

	return &Watcher{
		store:    store,
		cache:    cache,
		logger:   logger,
		debounce: debounce,
		dir:      dir,
		names: map[string]bool{
			base:              true,
			base + "-wal":     true,
			base + "-journal": true,
		},
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	paths, errs, closeFn, err := w.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	w.logger.Info("preference watcher started", "dir", w.dir)

	reloadCh := make(chan struct{}, 1)
	defer w.stopTimer()

	for {
		select {
		case path, ok := <-paths:
			if !ok {
				return nil
			}
			if !w.relevant(path) {
				continue
			}
			w.schedule(reloadCh)

		case <-reloadCh:
			w.reload(ctx)

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			w.logger.Error("preference watcher error", "error", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) relevant(path string) bool {
	return w.names[filepath.Base(path)]
}

// schedule resets the debounce timer; when it fires a reload is queued.
func (w *Watcher) schedule(reloadCh chan<- struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case reloadCh <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// reload replaces the cache with the persisted allowlist. On failure the
// previous value stays in place.
func (w *Watcher) reload(ctx context.Context) {
	a, err := w.store.Load(ctx)
	if err != nil {
		w.logger.Warn("reloading allowlist failed, keeping previous value", "error", err)
		return
	}
	w.cache.Replace(a)
	w.logger.Debug("allowlist reloaded", "keys", a.Len())
}
