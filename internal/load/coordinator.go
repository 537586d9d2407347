// Package load coordinates asynchronous model loads against the state
// store with single-flight semantics: of any number of overlapping
// requests, only the most recent one is ever applied.
package load

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/meshview/internal/event"
	"github.com/dshills/meshview/internal/event/events"
	"github.com/dshills/meshview/internal/log"
	"github.com/dshills/meshview/internal/scene"
	"github.com/dshills/meshview/internal/state"
)

const source = "load"

// Loader is the capability that actually reads and parses a model.
// Implementations must reach at least one cancellation point (an I/O or
// parse boundary that returns control) before producing a result; a Load
// that never yields cannot be superseded.
type Loader interface {
	Load(ctx context.Context, resource string) (*scene.Graph, error)
}

// Token identifies one load attempt. Cancellation is cooperative: the
// coordinator polls the flag after the loader returns and discards
// superseded results silently.
type Token struct {
	seq       uint64
	cancelled atomic.Bool
}

// Seq returns the token's monotonic sequence number.
func (t *Token) Seq() uint64 {
	return t.seq
}

// Cancel marks the token superseded.
func (t *Token) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports whether the token has been superseded.
func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

// Coordinator runs at most one effective load at a time.
type Coordinator struct {
	bus    *event.Bus
	store  *state.Store
	loader Loader
	logger *log.Logger

	mu       sync.Mutex
	current  *Token
	seq      uint64
	inflight bool

	// applyMu serializes result application so a completion observed as
	// current cannot interleave its state mutation with another's.
	applyMu sync.Mutex

	wg sync.WaitGroup
}

// NewCoordinator creates a coordinator and wires it to load.requested
// intents on the bus.
func NewCoordinator(bus *event.Bus, store *state.Store, loader Loader, logger *log.Logger) (*Coordinator, error) {
	c := &Coordinator{
		bus:    bus,
		store:  store,
		loader: loader,
		logger: logger.WithComponent("load"),
	}

	_, err := bus.SubscribeFunc(events.TopicLoadRequested, func(ctx context.Context, env event.Envelope) error {
		req, ok := env.Payload.(events.LoadRequested)
		if !ok {
			return nil
		}
		c.Request(ctx, req.Resource)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Request starts loading the resource, superseding any load in flight.
// It returns the new token immediately; completion is reported through
// load.completed / load.failed events. Superseded loads finish silently.
func (c *Coordinator) Request(ctx context.Context, resource string) *Token {
	c.mu.Lock()
	if c.current != nil {
		c.current.Cancel()
	}
	c.seq++
	tok := &Token{seq: c.seq}
	c.current = tok
	c.inflight = true
	c.mu.Unlock()

	c.logger.Debug("load %d requested: %s", tok.seq, resource)

	c.wg.Add(1)
	go c.run(ctx, tok, resource)
	return tok
}

// InFlight reports whether a load is currently running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight
}

// Wait blocks until all load goroutines have finished. Used on shutdown
// and by tests.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Unload cancels any in-flight load and clears the loaded model and its
// dependent state.
func (c *Coordinator) Unload(ctx context.Context) error {
	c.mu.Lock()
	if c.current != nil {
		c.current.Cancel()
		c.current = nil
	}
	c.inflight = false
	c.mu.Unlock()

	resource, _ := c.store.Value(state.KeyResource)
	name, _ := resource.(string)
	if err := c.store.Set(ctx, map[string]any{
		state.KeyResource:  nil,
		state.KeyModel:     nil,
		state.KeySelection: nil,
	}); err != nil {
		return err
	}
	return c.bus.Publish(ctx, event.New(events.TopicLoadUnloaded, events.LoadUnloaded{Resource: name}, source))
}

// run performs one load attempt on its own goroutine.
func (c *Coordinator) run(ctx context.Context, tok *Token, resource string) {
	defer c.wg.Done()

	start := time.Now()
	graph, err := c.loader.Load(ctx, resource)

	// Cancellation point: a superseding request already represents user
	// intent, so a stale result is discarded without state mutation,
	// events, or errors.
	if tok.Cancelled() {
		c.logger.Debug("load %d superseded, result discarded: %s", tok.seq, resource)
		return
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	if c.current != tok {
		c.mu.Unlock()
		return
	}
	// Only the still-current token may mark the coordinator idle; a late
	// stale completion must never clear the flag for a newer load.
	c.inflight = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("load %d failed: %s: %v", tok.seq, resource, err)
		c.bus.Publish(ctx, event.New(events.TopicLoadFailed, events.LoadFailed{
			Resource: resource,
			Err:      err,
		}, source))
		return
	}

	if err := c.store.Set(ctx, map[string]any{
		state.KeyResource: resource,
		state.KeyModel:    graph,
	}); err != nil {
		c.logger.Error("load %d state update failed: %v", tok.seq, err)
		return
	}

	elapsed := time.Since(start)
	c.logger.Info("load %d applied: %s (%d items, %s)", tok.seq, resource, graph.Len(), elapsed)
	c.bus.Publish(ctx, event.New(events.TopicLoadCompleted, events.LoadCompleted{
		Resource: resource,
		Graph:    graph,
		Duration: elapsed,
	}, source))
}
