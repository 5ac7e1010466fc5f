// Package watch monitors source directories and emits debounced change
// triggers for the rebuild loop.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/webbundler/internal/logfields"
)

// Watcher monitors a set of directories under a workspace root and coalesces
// rapid file events into single triggers on C.
type Watcher struct {
	root         string
	paths        []string
	watcher      *fsnotify.Watcher
	mu           sync.Mutex
	stopChan     chan struct{}
	changeChan   chan struct{}
	triggers     chan struct{}
	debounceTime time.Duration
	stopOnce     sync.Once
}

// New creates a watcher for the given directories (relative to root).
func New(root string, paths []string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}

	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	return &Watcher{
		root:         absRoot,
		paths:        paths,
		watcher:      fsw,
		stopChan:     make(chan struct{}),
		changeChan:   make(chan struct{}, 1),
		triggers:     make(chan struct{}, 1),
		debounceTime: debounce,
	}, nil
}

// C returns the channel on which debounced change triggers are delivered.
func (w *Watcher) C() <-chan struct{} { return w.triggers }

// Start begins monitoring. Directories are added recursively; directories
// created later are picked up as their create events arrive.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, p := range w.paths {
		dir := filepath.Join(w.root, p)
		if err := w.addRecursive(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	slog.Info("Starting source watcher",
		slog.String("root", w.root),
		slog.Int("dirs", len(w.paths)),
		slog.Duration("debounce", w.debounceTime))

	go w.watchLoop(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop stops the watcher and closes the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		slog.Info("Stopping source watcher")
		close(w.stopChan)
		if err := w.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", logfields.Error(err))
		}
	})
}

// addRecursive registers dir and all its subdirectories.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

// watchLoop forwards raw filesystem events into the change channel.
func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				// New directories must be added to the watch set.
				if err := w.maybeWatchNewDir(event.Name); err != nil {
					slog.Debug("Could not watch new path", logfields.Path(event.Name), logfields.Error(err))
				}
				slog.Debug("Source create detected", logfields.Path(event.Name))
				w.notifyChange()
			case event.Op&fsnotify.Write == fsnotify.Write:
				slog.Debug("Source write detected", logfields.Path(event.Name))
				w.notifyChange()
			case event.Op&fsnotify.Remove == fsnotify.Remove,
				event.Op&fsnotify.Rename == fsnotify.Rename:
				slog.Debug("Source remove/rename detected", logfields.Path(event.Name))
				w.notifyChange()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Source watcher error", logfields.Error(err))
		}
	}
}

// maybeWatchNewDir adds a newly created directory (and its children) to the
// watch set. Files are ignored.
func (w *Watcher) maybeWatchNewDir(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return err
	}
	return w.addRecursive(path)
}

// debounceLoop coalesces change notifications into triggers.
func (w *Watcher) debounceLoop(ctx context.Context) {
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.stopChan:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.changeChan:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounceTime, w.fire)
		}
	}
}

// notifyChange queues a change notification; already-pending is fine.
func (w *Watcher) notifyChange() {
	select {
	case w.changeChan <- struct{}{}:
	default:
	}
}

// fire delivers a trigger; drops it if one is already pending.
func (w *Watcher) fire() {
	select {
	case w.triggers <- struct{}{}:
	default:
	}
}
