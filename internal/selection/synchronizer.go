// Package selection reconciles selection intent from the hierarchy panel
// and the spatial picker into one canonical selection state.
package selection

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dshills/meshview/internal/event"
	"github.com/dshills/meshview/internal/event/events"
	"github.com/dshills/meshview/internal/log"
	"github.com/dshills/meshview/internal/scene"
	"github.com/dshills/meshview/internal/state"
)

const source = "selection"

// DefaultPickDebounce absorbs duplicate pointer events from one physical
// click without delaying genuinely separate clicks.
const DefaultPickDebounce = 50 * time.Millisecond

// Snapshot is the immutable selection state mirrored into the state store.
type Snapshot struct {
	// SelectedIDs is the current selection, sorted.
	SelectedIDs []string

	// FocusedID is the most recently selected id, if any.
	FocusedID string
}

// Synchronizer owns the canonical selection. Both input surfaces raise
// select.requested intents; the synchronizer resolves them against the
// current scene binding and publishes exactly one selection.changed per
// accepted request.
type Synchronizer struct {
	bus    *event.Bus
	store  *state.Store
	logger *log.Logger

	mu       sync.Mutex
	graph    *scene.Graph
	binding  *Binding
	selected map[string]struct{}
	focused  string
	lastPick time.Time

	debounce time.Duration
	now      func() time.Time
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithPickDebounce sets the scene-pick debounce window.
func WithPickDebounce(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithClock sets the time source. Tests use this to make debouncing
// deterministic.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSynchronizer creates a synchronizer and wires it to the bus: it
// rebinds on load.completed, resets on load.unloaded, and consumes
// select.requested intents.
func NewSynchronizer(bus *event.Bus, store *state.Store, logger *log.Logger, opts ...Option) (*Synchronizer, error) {
	s := &Synchronizer{
		bus:      bus,
		store:    store,
		logger:   logger.WithComponent("selection"),
		binding:  NewBinding(nil),
		selected: make(map[string]struct{}),
		debounce: DefaultPickDebounce,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := bus.SubscribeFunc(events.TopicLoadCompleted, func(ctx context.Context, env event.Envelope) error {
		if done, ok := env.Payload.(events.LoadCompleted); ok {
			s.BindScene(ctx, done.Graph)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if _, err := bus.SubscribeFunc(events.TopicLoadUnloaded, func(ctx context.Context, env event.Envelope) error {
		s.Reset()
		return nil
	}); err != nil {
		return nil, err
	}
	if _, err := bus.SubscribeFunc(events.TopicSelectRequested, func(ctx context.Context, env event.Envelope) error {
		if intent, ok := env.Payload.(events.SelectRequested); ok {
			return s.RequestSelect(ctx, intent)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// BindScene rebuilds the item/object binding for a newly loaded scene.
// Any previous selection belongs to the previous scene and is discarded.
func (s *Synchronizer) BindScene(ctx context.Context, g *scene.Graph) {
	if g == nil {
		s.Reset()
		return
	}
	s.mu.Lock()
	s.graph = g
	s.binding = NewBinding(g)
	s.selected = make(map[string]struct{})
	s.focused = ""
	s.lastPick = time.Time{}
	bound := s.binding.Len()
	s.mu.Unlock()

	s.logger.Debug("scene bound: %d items, %d pickable", g.Len(), bound)
	s.store.Set(ctx, map[string]any{state.KeySelection: Snapshot{}})
}

// Reset drops the binding and selection entirely.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = nil
	s.binding = NewBinding(nil)
	s.selected = make(map[string]struct{})
	s.focused = ""
	s.lastPick = time.Time{}
}

// Selection returns the current selection snapshot.
func (s *Synchronizer) Selection() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ObjectFor resolves an item id to the renderable object backing it, for
// renderer collaborators that highlight the focused part.
func (s *Synchronizer) ObjectFor(itemID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding.ObjectFor(itemID)
}

// RequestSelect applies one selection intent. Accepted requests publish
// exactly one selection.changed; debounced duplicates and unknown targets
// publish nothing.
func (s *Synchronizer) RequestSelect(ctx context.Context, intent events.SelectRequested) error {
	s.mu.Lock()

	if s.graph == nil {
		s.mu.Unlock()
		s.logger.Debug("selection intent ignored: no scene loaded")
		return nil
	}

	var pickAt time.Time
	if intent.Source == events.SourceScene {
		pickAt = intent.At
		if pickAt.IsZero() {
			pickAt = s.now()
		}
		if !s.lastPick.IsZero() && pickAt.Sub(s.lastPick) < s.debounce {
			s.mu.Unlock()
			s.logger.Debug("pick debounced: %s", intent.ObjectRef)
			return nil
		}
	}

	id, cleared, ok := s.resolveLocked(intent)
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("selection target not in scene: item=%q object=%q", intent.ItemID, intent.ObjectRef)
		return nil
	}

	// The debounce window is measured between accepted picks only.
	if !pickAt.IsZero() {
		s.lastPick = pickAt
	}

	var expanded []string
	switch {
	case cleared:
		s.selected = make(map[string]struct{})
		s.focused = ""
	case s.isSoleSelectionLocked(id):
		// Clicking the only selected item deselects it.
		s.selected = make(map[string]struct{})
		s.focused = ""
	default:
		s.selected = map[string]struct{}{id: {}}
		s.focused = id
		expanded, _ = s.graph.Ancestors(id)
	}

	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.store.Set(ctx, map[string]any{state.KeySelection: snap}); err != nil {
		return err
	}
	return s.bus.Publish(ctx, event.New(events.TopicSelectionChanged, events.SelectionChanged{
		SelectedIDs: snap.SelectedIDs,
		FocusedID:   snap.FocusedID,
		Expanded:    expanded,
	}, source))
}

// resolveLocked maps an intent to an item id. cleared is true for
// empty-target clicks (picks that hit no geometry); ok is false for
// targets that do not exist in the current scene.
func (s *Synchronizer) resolveLocked(intent events.SelectRequested) (id string, cleared, ok bool) {
	switch {
	case intent.ItemID != "":
		if !s.graph.Contains(intent.ItemID) {
			return "", false, false
		}
		return intent.ItemID, false, true
	case intent.ObjectRef != "":
		itemID, found := s.binding.ItemFor(intent.ObjectRef)
		if !found {
			return "", false, false
		}
		return itemID, false, true
	default:
		return "", true, true
	}
}

func (s *Synchronizer) isSoleSelectionLocked(id string) bool {
	if len(s.selected) != 1 {
		return false
	}
	_, ok := s.selected[id]
	return ok
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return Snapshot{SelectedIDs: ids, FocusedID: s.focused}
}
