package selection

import (
	"context"
	"testing"
	"time"

	"github.com/dshills/meshview/internal/event"
	"github.com/dshills/meshview/internal/event/events"
	"github.com/dshills/meshview/internal/log"
	"github.com/dshills/meshview/internal/scene"
	"github.com/dshills/meshview/internal/state"
)

func duckGraph(t *testing.T) *scene.Graph {
	t.Helper()
	g := scene.NewGraph("duck.glb")
	items := []scene.Item{
		{ID: "root", Kind: scene.KindNode},
		{ID: "body", ParentID: "root", Kind: scene.KindNode},
		{ID: "duck_mesh", ParentID: "body", Kind: scene.KindMesh, ObjectRef: "mesh/0"},
		{ID: "stand", ParentID: "root", Kind: scene.KindMesh, ObjectRef: "mesh/1"},
	}
	for _, item := range items {
		if err := g.Add(item); err != nil {
			t.Fatalf("Add(%s) failed: %v", item.ID, err)
		}
	}
	return g
}

type fixture struct {
	bus     *event.Bus
	store   *state.Store
	sync    *Synchronizer
	changes *[]events.SelectionChanged
	clock   *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bus := event.NewBus()
	store := state.NewStore(bus)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := &now

	s, err := NewSynchronizer(bus, store, log.Discard(), WithClock(func() time.Time { return *clock }))
	if err != nil {
		t.Fatalf("NewSynchronizer failed: %v", err)
	}

	var changes []events.SelectionChanged
	bus.SubscribeFunc(events.TopicSelectionChanged, func(ctx context.Context, env event.Envelope) error {
		changes = append(changes, env.Payload.(events.SelectionChanged))
		return nil
	})

	s.BindScene(context.Background(), duckGraph(t))
	return &fixture{bus: bus, store: store, sync: s, changes: &changes, clock: clock}
}

func (f *fixture) pick(t *testing.T, objectRef string) {
	t.Helper()
	err := f.sync.RequestSelect(context.Background(), events.SelectRequested{
		Source:    events.SourceScene,
		ObjectRef: objectRef,
		At:        *f.clock,
	})
	if err != nil {
		t.Fatalf("RequestSelect(pick %s) failed: %v", objectRef, err)
	}
}

func (f *fixture) clickTree(t *testing.T, itemID string) {
	t.Helper()
	err := f.sync.RequestSelect(context.Background(), events.SelectRequested{
		Source: events.SourceTree,
		ItemID: itemID,
	})
	if err != nil {
		t.Fatalf("RequestSelect(tree %s) failed: %v", itemID, err)
	}
}

func TestSynchronizer_TreeSelectAndToggle(t *testing.T) {
	f := newFixture(t)

	f.clickTree(t, "duck_mesh")
	f.clickTree(t, "duck_mesh")

	changes := *f.changes
	if len(changes) != 2 {
		t.Fatalf("published %d selection.changed, want 2", len(changes))
	}
	if len(changes[0].SelectedIDs) != 1 || changes[0].SelectedIDs[0] != "duck_mesh" {
		t.Errorf("first selection = %v, want [duck_mesh]", changes[0].SelectedIDs)
	}
	if changes[0].FocusedID != "duck_mesh" {
		t.Errorf("first focused = %q", changes[0].FocusedID)
	}
	if len(changes[1].SelectedIDs) != 0 || changes[1].FocusedID != "" {
		t.Errorf("reclick did not clear: %+v", changes[1])
	}
}

func TestSynchronizer_ExpansionCoversAncestors(t *testing.T) {
	f := newFixture(t)

	f.clickTree(t, "duck_mesh")

	changes := *f.changes
	if len(changes) != 1 {
		t.Fatalf("published %d selection.changed, want 1", len(changes))
	}
	exp := changes[0].Expanded
	if len(exp) != 2 || exp[0] != "body" || exp[1] != "root" {
		t.Errorf("Expanded = %v, want [body root]", exp)
	}
}

func TestSynchronizer_ScenePickResolvesThroughBinding(t *testing.T) {
	f := newFixture(t)

	f.pick(t, "mesh/0")

	changes := *f.changes
	if len(changes) != 1 || len(changes[0].SelectedIDs) != 1 || changes[0].SelectedIDs[0] != "duck_mesh" {
		t.Fatalf("pick selection = %+v, want duck_mesh", changes)
	}

	if ref, ok := f.sync.ObjectFor("duck_mesh"); !ok || ref != "mesh/0" {
		t.Errorf("ObjectFor(duck_mesh) = %q, %v", ref, ok)
	}
}

func TestSynchronizer_PickDebounce(t *testing.T) {
	f := newFixture(t)

	// Two pointer events from one physical click.
	f.pick(t, "mesh/0")
	*f.clock = f.clock.Add(10 * time.Millisecond)
	f.pick(t, "mesh/0")

	if got := len(*f.changes); got != 1 {
		t.Fatalf("published %d selection.changed within debounce window, want 1", got)
	}

	// A genuinely separate click goes through.
	*f.clock = f.clock.Add(100 * time.Millisecond)
	f.pick(t, "mesh/1")

	changes := *f.changes
	if len(changes) != 2 {
		t.Fatalf("published %d selection.changed, want 2", len(changes))
	}
	if changes[1].SelectedIDs[0] != "stand" {
		t.Errorf("second selection = %v, want [stand]", changes[1].SelectedIDs)
	}
}

func TestSynchronizer_DebounceDoesNotApplyToTree(t *testing.T) {
	f := newFixture(t)

	f.clickTree(t, "duck_mesh")
	f.clickTree(t, "stand")

	if got := len(*f.changes); got != 2 {
		t.Fatalf("published %d selection.changed, want 2 (tree clicks are not debounced)", got)
	}
}

func TestSynchronizer_EmptyTargetClears(t *testing.T) {
	f := newFixture(t)

	f.clickTree(t, "duck_mesh")
	// A pick that hit no geometry.
	f.pick(t, "")

	changes := *f.changes
	if len(changes) != 2 {
		t.Fatalf("published %d selection.changed, want 2", len(changes))
	}
	if len(changes[1].SelectedIDs) != 0 {
		t.Errorf("empty-target click did not clear: %v", changes[1].SelectedIDs)
	}
}

func TestSynchronizer_UnknownTargetIsNoop(t *testing.T) {
	f := newFixture(t)

	f.clickTree(t, "duck_mesh")
	f.clickTree(t, "no_such_item")
	f.pick(t, "mesh/99")

	changes := *f.changes
	if len(changes) != 1 {
		t.Fatalf("published %d selection.changed, want 1 (unknown targets are no-ops)", len(changes))
	}
	// State unchanged.
	snap := f.sync.Selection()
	if len(snap.SelectedIDs) != 1 || snap.SelectedIDs[0] != "duck_mesh" {
		t.Errorf("selection after no-ops = %+v", snap)
	}
}

func TestSynchronizer_SelectionMirroredToStore(t *testing.T) {
	f := newFixture(t)

	f.clickTree(t, "duck_mesh")

	v, ok := f.store.Value(state.KeySelection)
	if !ok {
		t.Fatal("store has no selection key")
	}
	snap := v.(Snapshot)
	if len(snap.SelectedIDs) != 1 || snap.SelectedIDs[0] != "duck_mesh" {
		t.Errorf("store selection = %+v", snap)
	}
}

func TestSynchronizer_RebindClearsSelection(t *testing.T) {
	f := newFixture(t)

	f.clickTree(t, "duck_mesh")
	f.sync.BindScene(context.Background(), duckGraph(t))

	snap := f.sync.Selection()
	if len(snap.SelectedIDs) != 0 || snap.FocusedID != "" {
		t.Errorf("selection survived rebind: %+v", snap)
	}
}

func TestSynchronizer_NoSceneIsNoop(t *testing.T) {
	bus := event.NewBus()
	store := state.NewStore(bus)
	s, err := NewSynchronizer(bus, store, log.Discard())
	if err != nil {
		t.Fatalf("NewSynchronizer failed: %v", err)
	}

	published := 0
	bus.SubscribeFunc(events.TopicSelectionChanged, func(ctx context.Context, env event.Envelope) error {
		published++
		return nil
	})

	if err := s.RequestSelect(context.Background(), events.SelectRequested{Source: events.SourceTree, ItemID: "x"}); err != nil {
		t.Fatalf("RequestSelect failed: %v", err)
	}
	if published != 0 {
		t.Errorf("selection.changed published with no scene loaded")
	}
}

func TestSynchronizer_IntentViaBus(t *testing.T) {
	f := newFixture(t)

	env := event.New(events.TopicSelectRequested, events.SelectRequested{
		Source: events.SourceTree,
		ItemID: "stand",
	}, "ui")
	if err := f.bus.Publish(context.Background(), env); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	changes := *f.changes
	if len(changes) != 1 || changes[0].FocusedID != "stand" {
		t.Fatalf("bus intent produced %+v", changes)
	}
}
