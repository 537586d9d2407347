package load

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/meshview/internal/event"
	"github.com/dshills/meshview/internal/event/events"
	"github.com/dshills/meshview/internal/log"
	"github.com/dshills/meshview/internal/scene"
	"github.com/dshills/meshview/internal/state"
)

// fakeLoader blocks each load on a per-resource gate so tests control
// completion order precisely.
type fakeLoader struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	errs  map[string]error
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		gates: make(map[string]chan struct{}),
		errs:  make(map[string]error),
	}
}

func (f *fakeLoader) gate(resource string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gates[resource]
	if !ok {
		g = make(chan struct{})
		f.gates[resource] = g
	}
	return g
}

func (f *fakeLoader) fail(resource string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[resource] = err
}

func (f *fakeLoader) release(resource string) {
	close(f.gate(resource))
}

func (f *fakeLoader) Load(ctx context.Context, resource string) (*scene.Graph, error) {
	<-f.gate(resource)
	f.mu.Lock()
	err := f.errs[resource]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	g := scene.NewGraph(resource)
	g.Add(scene.Item{ID: "root", Kind: scene.KindNode})
	return g, nil
}

// terminals records load.completed and load.failed events.
type terminals struct {
	mu        sync.Mutex
	completed []events.LoadCompleted
	failed    []events.LoadFailed
}

func captureTerminals(t *testing.T, bus *event.Bus) *terminals {
	t.Helper()
	term := &terminals{}
	bus.SubscribeFunc(events.TopicLoadCompleted, func(ctx context.Context, env event.Envelope) error {
		term.mu.Lock()
		defer term.mu.Unlock()
		term.completed = append(term.completed, env.Payload.(events.LoadCompleted))
		return nil
	})
	bus.SubscribeFunc(events.TopicLoadFailed, func(ctx context.Context, env event.Envelope) error {
		term.mu.Lock()
		defer term.mu.Unlock()
		term.failed = append(term.failed, env.Payload.(events.LoadFailed))
		return nil
	})
	return term
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeLoader, *event.Bus, *state.Store) {
	t.Helper()
	bus := event.NewBus()
	store := state.NewStore(bus)
	loader := newFakeLoader()
	c, err := NewCoordinator(bus, store, loader, log.Discard())
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}
	return c, loader, bus, store
}

func TestCoordinator_SingleLoad(t *testing.T) {
	c, loader, bus, store := newTestCoordinator(t)
	term := captureTerminals(t, bus)
	ctx := context.Background()

	tok := c.Request(ctx, "duck.glb")
	if !c.InFlight() {
		t.Error("InFlight() = false during load")
	}

	loader.release("duck.glb")
	c.Wait()

	if tok.Cancelled() {
		t.Error("sole token was cancelled")
	}
	if c.InFlight() {
		t.Error("InFlight() = true after completion")
	}
	if len(term.completed) != 1 || term.completed[0].Resource != "duck.glb" {
		t.Fatalf("completed = %+v, want one duck.glb", term.completed)
	}
	if v, _ := store.Value(state.KeyResource); v != "duck.glb" {
		t.Errorf("store resource = %v", v)
	}
	if _, ok := store.Value(state.KeyModel); !ok {
		t.Error("store has no model after applied load")
	}
}

func TestCoordinator_SupersededLoadIsSilent(t *testing.T) {
	c, loader, bus, store := newTestCoordinator(t)
	term := captureTerminals(t, bus)
	ctx := context.Background()

	tokA := c.Request(ctx, "a.glb")
	tokB := c.Request(ctx, "b.glb")

	if !tokA.Cancelled() {
		t.Error("first token not cancelled by superseding request")
	}
	if tokB.Cancelled() {
		t.Error("second token cancelled")
	}

	// Completion order does not matter; only B may take effect.
	loader.release("a.glb")
	loader.release("b.glb")
	c.Wait()

	if len(term.completed) != 1 || term.completed[0].Resource != "b.glb" {
		t.Fatalf("completed = %+v, want exactly one b.glb", term.completed)
	}
	if len(term.failed) != 0 {
		t.Fatalf("failed = %+v, want none", term.failed)
	}
	if v, _ := store.Value(state.KeyResource); v != "b.glb" {
		t.Errorf("store resource = %v, want b.glb", v)
	}
}

func TestCoordinator_StaleCompletionKeepsInFlight(t *testing.T) {
	c, loader, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	c.Request(ctx, "a.glb")
	c.Request(ctx, "b.glb")

	// The superseded load finishes first; it must not mark the
	// coordinator idle while the newer load is still running.
	loader.release("a.glb")
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if !c.InFlight() {
			t.Fatal("stale completion cleared the in-flight flag")
		}
		time.Sleep(5 * time.Millisecond)
	}

	loader.release("b.glb")
	c.Wait()
	if c.InFlight() {
		t.Error("InFlight() = true after current load completed")
	}
}

func TestCoordinator_FailureKeepsPreviousState(t *testing.T) {
	c, loader, bus, store := newTestCoordinator(t)
	term := captureTerminals(t, bus)
	ctx := context.Background()

	c.Request(ctx, "good.glb")
	loader.release("good.glb")
	c.Wait()

	boom := errors.New("corrupt chunk")
	loader.fail("bad.glb", boom)
	c.Request(ctx, "bad.glb")
	loader.release("bad.glb")
	c.Wait()

	if len(term.failed) != 1 || !errors.Is(term.failed[0].Err, boom) {
		t.Fatalf("failed = %+v, want one with corrupt chunk", term.failed)
	}
	// Previous resource remains displayed.
	if v, _ := store.Value(state.KeyResource); v != "good.glb" {
		t.Errorf("store resource = %v, want good.glb", v)
	}
}

func TestCoordinator_RequestViaBusIntent(t *testing.T) {
	c, loader, bus, _ := newTestCoordinator(t)
	term := captureTerminals(t, bus)
	ctx := context.Background()

	loader.release("duck.glb")
	if err := bus.Publish(ctx, event.New(events.TopicLoadRequested, events.LoadRequested{Resource: "duck.glb"}, "test")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	c.Wait()

	if len(term.completed) != 1 {
		t.Fatalf("completed = %+v, want one", term.completed)
	}
}

func TestCoordinator_Unload(t *testing.T) {
	c, loader, bus, store := newTestCoordinator(t)
	ctx := context.Background()

	unloaded := 0
	bus.SubscribeFunc(events.TopicLoadUnloaded, func(ctx context.Context, env event.Envelope) error {
		unloaded++
		return nil
	})

	c.Request(ctx, "duck.glb")
	loader.release("duck.glb")
	c.Wait()

	if err := c.Unload(ctx); err != nil {
		t.Fatalf("Unload failed: %v", err)
	}
	if _, ok := store.Value(state.KeyModel); ok {
		t.Error("model still present after unload")
	}
	if unloaded != 1 {
		t.Errorf("load.unloaded published %d times, want 1", unloaded)
	}
}
