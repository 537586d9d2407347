package event

import (
	"sort"
	"sync"

	"github.com/dshills/meshview/internal/event/topic"
)

// registry holds subscriptions organized by topic pattern.
// It is safe for concurrent use.
type registry struct {
	mu     sync.RWMutex
	byPat  map[topic.Topic][]*subscription
	byID   map[string]*subscription
	nextID uint64
}

func newRegistry() *registry {
	return &registry{
		byPat: make(map[topic.Topic][]*subscription),
		byID:  make(map[string]*subscription),
	}
}

// add registers a subscription and assigns its registration sequence.
func (r *registry) add(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	sub.seq = r.nextID

	r.byPat[sub.pattern] = append(r.byPat[sub.pattern], sub)
	r.byID[sub.id] = sub
}

// remove deletes a subscription by ID.
func (r *registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.byID[id]
	if !ok {
		return false
	}

	subs := r.byPat[sub.pattern]
	for i, s := range subs {
		if s.id == id {
			r.byPat[sub.pattern] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(r.byPat[sub.pattern]) == 0 {
		delete(r.byPat, sub.pattern)
	}
	delete(r.byID, id)
	return true
}

// match returns all subscriptions whose pattern matches the event topic,
// ordered by registration time. The slice is a copy so dispatch iterates a
// stable snapshot even if handlers subscribe or unsubscribe mid-delivery.
func (r *registry) match(t topic.Topic) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*subscription
	for pat, subs := range r.byPat {
		if topic.Match(pat, t) {
			out = append(out, subs...)
		}
	}
	if len(out) == 0 {
		return nil
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].seq < out[j].seq
	})
	return out
}

// counts returns the number of subscriptions per registered pattern.
func (r *registry) counts() map[topic.Topic]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[topic.Topic]int, len(r.byPat))
	for pat, subs := range r.byPat {
		out[pat] = len(subs)
	}
	return out
}
