// Package state holds the viewer's canonical mutable state and broadcasts
// diffs over the event bus.
package state

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/dshills/meshview/internal/event"
	"github.com/dshills/meshview/internal/event/events"
)

// Well-known store keys.
const (
	// KeyResource is the path of the currently loaded model, a string.
	KeyResource = "resource"

	// KeyModel is the loaded part hierarchy, a *scene.Graph.
	KeyModel = "model"

	// KeySelection is the canonical selection, a selection snapshot.
	KeySelection = "selection"
)

const source = "state"

// Listener receives state change notifications.
type Listener func(ctx context.Context, change events.StateChanged)

// Store is the canonical state container. All mutation goes through Set;
// nothing else writes the backing map.
type Store struct {
	bus  *event.Bus
	mu   sync.Mutex
	data map[string]any
}

// NewStore creates an empty store publishing through the given bus.
func NewStore(bus *event.Bus) *Store {
	return &Store{
		bus:  bus,
		data: make(map[string]any),
	}
}

// Get returns a snapshot of the current state. The map is a copy; mutating
// it has no effect on the store.
func (s *Store) Get() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.data)
}

// Value returns a single key from the current state.
func (s *Store) Value(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Set merges the patch into the state and publishes a state.changed event
// naming the top-level keys whose values actually changed. A patch that
// changes nothing publishes nothing.
//
// The mutation and diff happen under the store lock; the publish happens
// after it, so subscribers may call back into the store without
// deadlocking. Calls from one goroutine never observe interleaved sets.
func (s *Store) Set(ctx context.Context, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}

	s.mu.Lock()
	previous := snapshot(s.data)

	var changed []string
	for k, v := range patch {
		old, had := s.data[k]
		if had && reflect.DeepEqual(old, v) {
			continue
		}
		if v == nil {
			if !had {
				continue
			}
			delete(s.data, k)
		} else {
			s.data[k] = v
		}
		changed = append(changed, k)
	}
	current := snapshot(s.data)
	s.mu.Unlock()

	if len(changed) == 0 {
		return nil
	}
	sort.Strings(changed)

	return s.bus.Publish(ctx, event.New(events.TopicStateChanged, events.StateChanged{
		Keys:     changed,
		Previous: previous,
		Current:  current,
	}, source))
}

// Subscribe registers a listener for state changes. When keys are given,
// the listener is only invoked if at least one of them changed; this keeps
// unrelated mutations from triggering redundant work.
func (s *Store) Subscribe(listener Listener, keys ...string) (event.Subscription, error) {
	if listener == nil {
		return nil, event.ErrNilHandler
	}

	return s.bus.SubscribeFunc(events.TopicStateChanged, func(ctx context.Context, env event.Envelope) error {
		change, ok := env.Payload.(events.StateChanged)
		if !ok {
			return nil
		}
		if len(keys) > 0 && !anyChanged(change, keys) {
			return nil
		}
		listener(ctx, change)
		return nil
	})
}

func anyChanged(change events.StateChanged, keys []string) bool {
	for _, k := range keys {
		if change.Changed(k) {
			return true
		}
	}
	return false
}

func snapshot(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
