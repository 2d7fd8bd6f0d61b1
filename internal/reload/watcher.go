// Package reload re-reads the daemon configuration when its file changes
// on disk or on demand (SIGHUP).
package reload

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const defaultPollInterval = 5 * time.Second

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// ConfigPath is the path to the configuration file to watch.
	ConfigPath string

	// PollInterval is how often to check for file changes.
	// Defaults to 5 seconds if zero.
	PollInterval time.Duration
}

func (c WatcherConfig) pollIntervalOrDefault() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return defaultPollInterval
}

// EventType describes the type of file change event.
type EventType string

const (
	// EventModified indicates the config file content changed.
	EventModified EventType = "modified"

	// EventCreated indicates the config file appeared after being absent.
	EventCreated EventType = "created"
)

// Event represents a file change notification.
type Event struct {
	Type       EventType
	ConfigPath string
}

// fingerprint identifies a file version. Size catches rewrites that land
// within the filesystem's mtime granularity.
type fingerprint struct {
	modTime time.Time
	size    int64
}

func (f fingerprint) missing() bool { return f.modTime.IsZero() }

func (f fingerprint) equal(o fingerprint) bool {
	return f.size == o.size && f.modTime.Equal(o.modTime)
}

// Watcher polls a configuration file for changes. Deleting the file does
// not emit an event: the daemon keeps its last good configuration.
type Watcher struct {
	cfg     WatcherConfig
	events  chan Event
	stop    chan struct{}
	stopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWatcher creates a new file watcher.
func NewWatcher(cfg WatcherConfig) *Watcher {
	return &Watcher{
		cfg:     cfg,
		events:  make(chan Event, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins polling. Only the first call starts the goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		// Baseline before returning so writes after Start are never missed.
		last := w.stat()
		go w.poll(ctx, last)
	})
}

// Events returns the channel of file change events. At most one event is
// buffered; bursts of writes collapse into it.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops the watcher. Safe to call multiple times and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if w.started.Load() {
		<-w.stopped
	}
}

func (w *Watcher) poll(ctx context.Context, last fingerprint) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.pollIntervalOrDefault())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			current := w.stat()
			if current.missing() {
				last = current
				continue
			}
			if current.equal(last) {
				continue
			}

			typ := EventModified
			if last.missing() {
				typ = EventCreated
			}
			last = current

			select {
			case w.events <- Event{Type: typ, ConfigPath: w.cfg.ConfigPath}:
			default:
				// A pending event already covers this change.
			}
		}
	}
}

func (w *Watcher) stat() fingerprint {
	info, err := os.Stat(w.cfg.ConfigPath)
	if err != nil {
		return fingerprint{}
	}
	return fingerprint{modTime: info.ModTime(), size: info.Size()}
}
