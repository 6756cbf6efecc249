// Package watcher provides file system watching with debouncing for
// template and data files.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/tamis/internal/log"
	"github.com/zjrosen/tamis/internal/pubsub"
)

// Watcher monitors a set of files and publishes change events.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	paths     map[string]struct{}
	debounce  time.Duration
	broker    *pubsub.Broker[string]
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	// Paths lists the files to watch.
	Paths []string

	// Debounce coalesces bursts of events per file into one publish.
	Debounce time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(paths ...string) Config {
	return Config{
		Paths:    paths,
		Debounce: 200 * time.Millisecond,
	}
}

// New creates a watcher that publishes to broker. Events carry the watched
// file path as payload: ChangedEvent when the file was written or replaced,
// RemovedEvent when it is gone after the debounce window.
func New(cfg Config, broker *pubsub.Broker[string]) (*Watcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("no paths to watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	paths := make(map[string]struct{}, len(cfg.Paths))
	for _, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		paths[abs] = struct{}{}
	}

	return &Watcher{
		fsWatcher: fsw,
		paths:     paths,
		debounce:  cfg.Debounce,
		broker:    broker,
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the directories containing the configured files.
// Editors often replace a file by rename, which drops inode watches, so
// the parent directory is watched and events are filtered by path.
func (w *Watcher) Start() error {
	dirs := make(map[string]struct{})
	for p := range w.paths {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watching directory %s: %w", dir, err)
		}
	}

	go w.loop()

	return nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// loop processes file system events with debouncing. Paths accumulate
// until the timer fires, then each gets one published event.
func (w *Watcher) loop() {
	var timer *time.Timer
	pending := make(map[string]struct{})

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			path, relevant := w.relevantPath(event)
			if !relevant {
				continue
			}
			pending[path] = struct{}{}

			// Reset or start debounce timer
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					// Drain the timer channel if it already fired
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			for path := range pending {
				w.publish(path)
				delete(pending, path)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "watch error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// publish checks whether the file still exists and publishes the matching
// event. A remove followed by a create within the debounce window
// collapses into a single ChangedEvent.
func (w *Watcher) publish(path string) {
	if _, err := os.Stat(path); err != nil {
		log.Debug(log.CatWatcher, "watched file removed", "path", path)
		w.broker.Publish(pubsub.RemovedEvent, path)
		return
	}
	log.Debug(log.CatWatcher, "watched file changed", "path", path)
	w.broker.Publish(pubsub.ChangedEvent, path)
}

// relevantPath maps an fsnotify event to a watched file path.
func (w *Watcher) relevantPath(event fsnotify.Event) (string, bool) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", false
	}

	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return "", false
	}
	if _, ok := w.paths[abs]; !ok {
		return "", false
	}
	return abs, true
}
