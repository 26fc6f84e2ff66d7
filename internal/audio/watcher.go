package audio

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher drops cached sounds when their files change on disk, so an edited
// sound is decoded again on its next play.
type Watcher struct {
	mu     sync.Mutex
	logger *slog.Logger
	player *Player

	paths map[string]bool
	dirs  map[string]int

	onChange func(path string)

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher that invalidates player's cache.
func NewWatcher(player *Player, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		logger: logger,
		player: player,
		paths:  make(map[string]bool),
		dirs:   make(map[string]int),
	}
}

// SetChangeCallback sets a callback invoked after a watched file changes.
func (w *Watcher) SetChangeCallback(callback func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = callback
}

// Watch adds a sound file. Its directory is watched so replaced files are seen.
func (w *Watcher) Watch(path string) error {
	if path == "" {
		return nil
	}
	path = filepath.Clean(expandHome(path))

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.paths[path] {
		return nil
	}
	w.paths[path] = true

	dir := filepath.Dir(path)
	w.dirs[dir]++
	if w.dirs[dir] == 1 && w.watcher != nil {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return nil
}

// Unwatch removes a sound file.
func (w *Watcher) Unwatch(path string) {
	path = filepath.Clean(expandHome(path))

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.paths[path] {
		return
	}
	delete(w.paths, path)

	dir := filepath.Dir(path)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if w.watcher != nil {
			_ = w.watcher.Remove(dir)
		}
	}
}

// UnwatchAll removes every sound file.
func (w *Watcher) UnwatchAll() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.paths))
	for p := range w.paths {
		paths = append(paths, p)
	}
	w.mu.Unlock()

	for _, p := range paths {
		w.Unwatch(p)
	}
}

// Start begins delivering change events.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	for dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			w.logger.Warn("failed to watch sound directory", "dir", dir, "error", err)
		}
	}

	w.watcher = fw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true

	go w.watchLoop(ctx, fw, w.stopCh, w.doneCh)

	w.logger.Debug("audio watcher started", "files", len(w.paths))
	return nil
}

// Stop stops the watcher and waits for its loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	fw, done := w.watcher, w.doneCh
	w.watcher = nil
	w.mu.Unlock()

	<-done
	_ = fw.Close()
	w.logger.Debug("audio watcher stopped")
}

func (w *Watcher) watchLoop(ctx context.Context, fw *fsnotify.Watcher, stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("audio watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	path := filepath.Clean(event.Name)
	w.mu.Lock()
	watched := w.paths[path]
	cb := w.onChange
	w.mu.Unlock()
	if !watched {
		return
	}

	w.player.InvalidateCache(path)
	w.logger.Debug("sound file changed, cache invalidated", "path", path)
	if cb != nil {
		cb(path)
	}
}
