package event

import (
	"sync/atomic"

	"github.com/dshills/meshview/internal/event/topic"
)

// Subscription represents one registered handler on the bus.
// Cancel is the capability that removes exactly this subscription; it is
// idempotent and safe to call during dispatch of the subscribed topic.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// Pattern returns the subscribed topic pattern.
	Pattern() topic.Topic

	// IsActive reports whether the subscription can still receive events.
	IsActive() bool

	// Cancel permanently removes the subscription. A cancelled handler is
	// never invoked again, even for events already being dispatched.
	Cancel()
}

// subscription is the internal Subscription implementation.
type subscription struct {
	id        string
	pattern   topic.Topic
	handler   Handler
	seq       uint64
	cancelled atomic.Bool
	remove    func(id string)
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Pattern() topic.Topic {
	return s.pattern
}

func (s *subscription) IsActive() bool {
	return !s.cancelled.Load()
}

func (s *subscription) Cancel() {
	if s.cancelled.CompareAndSwap(false, true) && s.remove != nil {
		s.remove(s.id)
	}
}
