// Package watcher provides file system watching with debouncing for the
// active session transcript.
package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"claude-alamode/internal/log"
	"claude-alamode/internal/pubsub"
)

// TranscriptChange is published when the watched session file settles after
// a burst of writes.
type TranscriptChange struct {
	Path string
}

// Watcher monitors a session transcript for changes and publishes debounced
// change events on its broker.
type Watcher struct {
	fsWatcher   *fsnotify.Watcher
	sessionPath string
	debounce    time.Duration
	broker      *pubsub.Broker[TranscriptChange]
	done        chan struct{}
	stopOnce    sync.Once
}

// Config holds watcher configuration options.
type Config struct {
	SessionPath string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher. The CLI appends
// several JSONL lines per turn; 200ms coalesces those into one refresh.
func DefaultConfig(sessionPath string) Config {
	return Config{
		SessionPath: sessionPath,
		DebounceDur: 200 * time.Millisecond,
	}
}

// New creates a transcript watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher:   fsw,
		sessionPath: cfg.SessionPath,
		debounce:    cfg.DebounceDur,
		broker:      pubsub.NewBroker[TranscriptChange](),
		done:        make(chan struct{}),
	}, nil
}

// Broker exposes the broker used for change notifications.
func (w *Watcher) Broker() *pubsub.Broker[TranscriptChange] {
	return w.broker
}

// Start begins watching the directory containing the session file. Watching
// the directory rather than the file survives the CLI replacing it.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.sessionPath)
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}

	go w.loop()

	log.Debug(log.CatWatcher, "Watching transcript", "path", w.sessionPath)
	return nil
}

// Stop terminates the watcher and releases resources. Safe to call twice.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
		w.broker.Close()
	})
	return err
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending bool
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if !w.isRelevantEvent(event) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				pending = true
			} else {
				if !timer.Stop() {
					// Drain the timer channel if it already fired
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
				pending = true
			}

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if pending {
				w.broker.Publish(pubsub.TranscriptChangedEvent, TranscriptChange{Path: w.sessionPath})
				pending = false
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "Watcher error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent checks if the event should trigger a refresh.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return filepath.Base(event.Name) == filepath.Base(w.sessionPath)
}
