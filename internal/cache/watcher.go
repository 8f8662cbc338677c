package cache

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tryterra/static-analysis/internal/program"
)

// Watcher evicts cache entries for files that change on disk. It watches
// the directories of the current working set rather than the whole tree,
// and debounces bursts (editors write several events per save).
type Watcher struct {
	service  *Service
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	dirs    map[string]bool
	pending map[string]*time.Timer
}

// NewWatcher starts watching on behalf of service. Call Run to process
// events and Close to stop.
func NewWatcher(service *Service, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		service:  service,
		debounce: debounce,
		watcher:  fw,
		dirs:     make(map[string]bool),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Track registers path's directory for watching. The cache service calls
// it through SetTracker for every file entering the parsed tier. Repeated
// registrations for the same directory are no-ops.
func (w *Watcher) Track(path string) {
	dir := filepath.Dir(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirs[dir] {
		return
	}
	if err := w.watcher.Add(dir); err == nil {
		w.dirs[dir] = true
	}
}

// Run consumes file events until ctx is cancelled. Write and remove events
// schedule a debounced eviction for the touched path.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if _, supported := program.DetectLanguage(event.Name); !supported {
				continue
			}
			w.scheduleEvict(event.Name)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) scheduleEvict(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.service.Invalidate(path)
	})
}

// Close stops the watcher and cancels pending evictions.
func (w *Watcher) Close() error {
	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
