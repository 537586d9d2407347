package state

import (
	"context"
	"testing"

	"github.com/dshills/meshview/internal/event"
	"github.com/dshills/meshview/internal/event/events"
)

func TestStore_GetReturnsCopy(t *testing.T) {
	store := NewStore(event.NewBus())
	ctx := context.Background()

	if err := store.Set(ctx, map[string]any{"resource": "duck.glb"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	snap := store.Get()
	snap["resource"] = "tampered"

	if v, _ := store.Value("resource"); v != "duck.glb" {
		t.Errorf("snapshot mutation leaked into store: %v", v)
	}
}

func TestStore_SetPublishesDiff(t *testing.T) {
	bus := event.NewBus()
	store := NewStore(bus)
	ctx := context.Background()

	var changes []events.StateChanged
	bus.SubscribeFunc(events.TopicStateChanged, func(ctx context.Context, env event.Envelope) error {
		changes = append(changes, env.Payload.(events.StateChanged))
		return nil
	})

	store.Set(ctx, map[string]any{"resource": "duck.glb", "camera": "front"})
	store.Set(ctx, map[string]any{"resource": "duck.glb"}) // no-op patch
	store.Set(ctx, map[string]any{"resource": "car.glb"})

	if len(changes) != 2 {
		t.Fatalf("published %d changes, want 2 (no-op must not publish)", len(changes))
	}

	first := changes[0]
	if len(first.Keys) != 2 || first.Keys[0] != "camera" || first.Keys[1] != "resource" {
		t.Errorf("first change keys = %v, want [camera resource]", first.Keys)
	}
	if first.Previous["resource"] != nil {
		t.Errorf("first change previous = %v, want empty", first.Previous)
	}

	second := changes[1]
	if len(second.Keys) != 1 || second.Keys[0] != "resource" {
		t.Errorf("second change keys = %v", second.Keys)
	}
	if second.Previous["resource"] != "duck.glb" || second.Current["resource"] != "car.glb" {
		t.Errorf("second change diff wrong: %+v", second)
	}
}

func TestStore_SetNilDeletesKey(t *testing.T) {
	store := NewStore(event.NewBus())
	ctx := context.Background()

	store.Set(ctx, map[string]any{"model": "something"})
	store.Set(ctx, map[string]any{"model": nil})

	if _, ok := store.Value("model"); ok {
		t.Error("nil patch value did not delete the key")
	}
}

func TestStore_SubscribeKeyFilter(t *testing.T) {
	bus := event.NewBus()
	store := NewStore(bus)
	ctx := context.Background()

	modelCalls := 0
	allCalls := 0
	if _, err := store.Subscribe(func(ctx context.Context, change events.StateChanged) {
		modelCalls++
	}, "model"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	store.Subscribe(func(ctx context.Context, change events.StateChanged) {
		allCalls++
	})

	store.Set(ctx, map[string]any{"resource": "duck.glb"})
	store.Set(ctx, map[string]any{"model": "graph"})

	if modelCalls != 1 {
		t.Errorf("filtered listener called %d times, want 1", modelCalls)
	}
	if allCalls != 2 {
		t.Errorf("unfiltered listener called %d times, want 2", allCalls)
	}

	if _, err := store.Subscribe(nil); err != event.ErrNilHandler {
		t.Errorf("Subscribe(nil) = %v, want ErrNilHandler", err)
	}
}

func TestStore_ListenerMaySetState(t *testing.T) {
	bus := event.NewBus()
	store := NewStore(bus)
	ctx := context.Background()

	// A listener reacting to one key by writing another must not deadlock
	// and its change must still be observable.
	store.Subscribe(func(ctx context.Context, change events.StateChanged) {
		store.Set(ctx, map[string]any{"derived": "yes"})
	}, "resource")

	store.Set(ctx, map[string]any{"resource": "duck.glb"})

	if v, _ := store.Value("derived"); v != "yes" {
		t.Errorf("derived = %v, want yes", v)
	}
}
