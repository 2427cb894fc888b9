// Package watch reloads the served dataset when the cleaned file changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc is called after the watched file changes.
type ReloadFunc func(ctx context.Context) error

// Watcher monitors one file. It watches the parent directory rather than the
// file itself because the batch job replaces the file by rename, which drops
// a watch placed on the old inode.
type Watcher struct {
	path   string
	reload ReloadFunc
	logger *slog.Logger
}

// New creates a Watcher for path.
func New(path string, reload ReloadFunc, logger *slog.Logger) *Watcher {
	return &Watcher{path: filepath.Clean(path), reload: reload, logger: logger}
}

// Start registers the watch and processes events until ctx is cancelled.
// Bursts of events collapse into a single pending reload.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	pending := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !w.relevant(evt) {
					continue
				}
				select {
				case pending <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watcher error", "path", w.path, "error", err)
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pending:
				if err := w.reload(ctx); err != nil {
					w.logger.Error("dataset reload failed", "path", w.path, "error", err)
					continue
				}
				w.logger.Info("dataset reloaded", "path", w.path)
			}
		}
	}()
	return nil
}

func (w *Watcher) relevant(evt fsnotify.Event) bool {
	if filepath.Clean(evt.Name) != w.path {
		return false
	}
	return evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0
}
