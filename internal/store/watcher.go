package store

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reloads a History when another process writes its file.
type FileWatcher struct {
	mu      sync.Mutex
	logger  *slog.Logger
	history *History
	path    string

	watcher *fsnotify.Watcher
	done    chan struct{}
	exited  chan struct{}
	running bool
}

// NewFileWatcher creates a watcher for the history file at path.
func NewFileWatcher(h *History, path string, logger *slog.Logger) *FileWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileWatcher{
		logger:  logger,
		history: h,
		path:    path,
	}
}

// Start begins watching. The directory is watched so rewrites that replace
// the file are seen.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(fw.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(fw.path), err)
	}

	fw.watcher = w
	fw.done = make(chan struct{})
	fw.exited = make(chan struct{})
	fw.running = true
	go fw.watch(w, fw.done, fw.exited)
	return nil
}

func (fw *FileWatcher) watch(w *fsnotify.Watcher, done, exited chan struct{}) {
	defer close(exited)
	name := filepath.Base(fw.path)

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				fw.logger.Debug("history file changed, reloading", "file", fw.path)
				if err := fw.history.Hydrate(); err != nil {
					fw.logger.Warn("failed to reload history", "error", err)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("history watcher error", "error", err)
		case <-done:
			return
		}
	}
}

// Stop stops the watcher.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = false
	close(fw.done)
	w, exited := fw.watcher, fw.exited
	fw.mu.Unlock()

	<-exited
	return w.Close()
}
