package load

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/meshview/internal/event"
	"github.com/dshills/meshview/internal/event/events"
	"github.com/dshills/meshview/internal/log"
)

// DefaultReloadDebounce absorbs the event bursts editors and exporters
// produce for a single save.
const DefaultReloadDebounce = 250 * time.Millisecond

// Watcher republishes load.requested for the current model file whenever
// it changes on disk, giving the viewer auto-reload. It follows the
// applied resource by subscribing to load.completed.
type Watcher struct {
	bus    *event.Bus
	logger *log.Logger
	fw     *fsnotify.Watcher

	mu       sync.Mutex
	path     string // watched file, absolute
	dir      string // watched parent directory
	lastFire time.Time

	debounce time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithReloadDebounce sets the event coalescing window.
func WithReloadDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates and starts a watcher.
func NewWatcher(bus *event.Bus, logger *log.Logger, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		bus:      bus,
		logger:   logger.WithComponent("watcher"),
		fw:       fw,
		debounce: DefaultReloadDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if _, err := bus.SubscribeFunc(events.TopicLoadCompleted, func(ctx context.Context, env event.Envelope) error {
		if done, ok := env.Payload.(events.LoadCompleted); ok {
			w.Watch(done.Resource)
		}
		return nil
	}); err != nil {
		fw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Watch switches the watcher to the given file. The parent directory is
// watched rather than the file itself so atomic save (write temp, rename
// over) still produces events.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dir != "" && w.dir != dir {
		w.fw.Remove(w.dir)
	}
	if w.dir != dir {
		if err := w.fw.Add(dir); err != nil {
			return err
		}
	}
	w.path = abs
	w.dir = dir
	w.logger.Debug("watching %s", abs)
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error: %v", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	path := w.path
	now := time.Now()
	fire := path != "" && filepath.Clean(ev.Name) == path && now.Sub(w.lastFire) >= w.debounce
	if fire {
		w.lastFire = now
	}
	w.mu.Unlock()

	if !fire {
		return
	}

	w.logger.Info("model changed on disk, reloading: %s", path)
	w.bus.Publish(context.Background(), event.New(events.TopicLoadRequested, events.LoadRequested{
		Resource: path,
	}, "watcher"))
}
