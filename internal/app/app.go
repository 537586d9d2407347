// Package app wires the viewer components together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dshills/meshview/internal/catalog"
	"github.com/dshills/meshview/internal/config"
	"github.com/dshills/meshview/internal/event"
	"github.com/dshills/meshview/internal/event/events"
	"github.com/dshills/meshview/internal/load"
	"github.com/dshills/meshview/internal/log"
	"github.com/dshills/meshview/internal/scene/gltf"
	"github.com/dshills/meshview/internal/script"
	"github.com/dshills/meshview/internal/selection"
	"github.com/dshills/meshview/internal/state"
	"github.com/dshills/meshview/internal/ui"
)

// Options configures the application.
type Options struct {
	// Config is the loaded configuration. Nil uses defaults.
	Config *config.Config

	// Logger is the root logger. Nil discards output.
	Logger *log.Logger

	// Headless skips the terminal view. Used by tests and scripting.
	Headless bool
}

// Application is the central coordinator for all viewer components.
type Application struct {
	cfg    *config.Config
	logger *log.Logger

	bus          *event.Bus
	store        *state.Store
	coordinator  *load.Coordinator
	synchronizer *selection.Synchronizer
	watcher      *load.Watcher
	catalog      *catalog.Catalog
	scripts      *script.Engine
	view         *ui.View

	subs *subscriptionManager

	running atomic.Bool
}

// New creates an Application and bootstraps all components in
// dependency order.
func New(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	app := &Application{cfg: cfg, logger: logger}
	if err := app.bootstrap(opts); err != nil {
		app.closeComponents()
		return nil, err
	}
	return app, nil
}

func (app *Application) bootstrap(opts Options) error {
	busLogger := app.logger.WithComponent("bus")
	app.bus = event.NewBus(
		event.WithQueueCapacity(app.cfg.Event.QueueCapacity),
		event.WithErrorHandler(func(env event.Envelope, sub event.Subscription, err error) {
			busLogger.Error("handler for %s: %v", env.Topic, err)
		}),
	)

	app.store = state.NewStore(app.bus)

	coordinator, err := load.NewCoordinator(app.bus, app.store, gltf.New(), app.logger)
	if err != nil {
		return &InitError{Component: "load coordinator", Err: err}
	}
	app.coordinator = coordinator

	synchronizer, err := selection.NewSynchronizer(app.bus, app.store, app.logger,
		selection.WithPickDebounce(app.cfg.Selection.PickDebounce()))
	if err != nil {
		return &InitError{Component: "selection synchronizer", Err: err}
	}
	app.synchronizer = synchronizer

	if app.cfg.Watch.Enabled {
		watcher, err := load.NewWatcher(app.bus, app.logger,
			load.WithReloadDebounce(app.cfg.Watch.Debounce()))
		if err != nil {
			// A missing inotify backend should not keep the viewer
			// from starting.
			app.logger.Warn("file watcher unavailable: %v", err)
		} else {
			app.watcher = watcher
		}
	}

	if app.cfg.Catalog.Enabled {
		cat, err := catalog.Open(app.cfg.CatalogPath())
		if err != nil {
			return &InitError{Component: "catalog", Err: err}
		}
		app.catalog = cat
	}

	if app.cfg.Scripts.Enabled {
		engine, err := script.NewEngine(app.bus, app.logger)
		if err != nil {
			return &InitError{Component: "script engine", Err: err}
		}
		app.scripts = engine
		if err := engine.LoadDir(app.cfg.ScriptsDir()); err != nil {
			return &InitError{Component: "script engine", Err: err}
		}
	}

	if !opts.Headless {
		view, err := ui.NewView(app.bus, app.logger, ui.WithTreeWidth(app.cfg.UI.TreeWidth))
		if err != nil {
			return &InitError{Component: "terminal view", Err: err}
		}
		app.view = view
	}

	app.subs = newSubscriptionManager(app)
	if err := app.subs.setup(); err != nil {
		return &InitError{Component: "subscriptions", Err: err}
	}
	return nil
}

// Bus exposes the event bus for integration points.
func (app *Application) Bus() *event.Bus {
	return app.bus
}

// Store exposes the shared state store.
func (app *Application) Store() *state.Store {
	return app.store
}

// Open asks the coordinator to load a model by publishing a load
// request through the bus.
func (app *Application) Open(ctx context.Context, resource string) error {
	env := event.New(events.TopicLoadRequested, events.LoadRequested{Resource: resource}, "app")
	return app.bus.Publish(ctx, env)
}

// RestoreSession reopens the last session's model if one was saved.
func (app *Application) RestoreSession(ctx context.Context) error {
	if !app.cfg.Session.Restore {
		return nil
	}
	sess, err := LoadSession(app.cfg.SessionPath())
	if err != nil {
		return err
	}
	if sess.Resource == "" {
		return nil
	}
	app.logger.Info("restoring session: %s", sess.Resource)
	return app.Open(ctx, sess.Resource)
}

// Run blocks in the terminal input loop until the user quits. Headless
// applications block until the context is cancelled.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if app.view == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return app.view.Run(ctx)
}

// Stop asks a running terminal view to exit.
func (app *Application) Stop() {
	if app.view != nil {
		app.view.Stop()
	}
}

// Shutdown saves the session and releases all components. The context
// bounds how long shutdown may take.
func (app *Application) Shutdown(ctx context.Context) error {
	var firstErr error

	if app.cfg.Session.Restore {
		if err := app.saveSession(); err != nil {
			app.logger.Warn("save session: %v", err)
			firstErr = err
		}
	}

	// Let an in-flight load finish before closing what it publishes to.
	done := make(chan struct{})
	go func() {
		app.coordinator.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		firstErr = fmt.Errorf("shutdown: %w", ctx.Err())
	}

	app.closeComponents()
	return firstErr
}

func (app *Application) saveSession() error {
	sess := Session{SavedAt: nowUTC()}
	if v, ok := app.store.Value(state.KeyResource); ok {
		sess.Resource, _ = v.(string)
	}
	snap := app.synchronizer.Selection()
	sess.SelectedIDs = snap.SelectedIDs
	sess.FocusedID = snap.FocusedID
	return SaveSession(app.cfg.SessionPath(), sess)
}

func (app *Application) closeComponents() {
	if app.subs != nil {
		app.subs.cleanup()
	}
	if app.watcher != nil {
		app.watcher.Close()
	}
	if app.scripts != nil {
		app.scripts.Close()
	}
	if app.view != nil {
		app.view.Close()
	}
	if app.catalog != nil {
		app.catalog.Close()
	}
}
