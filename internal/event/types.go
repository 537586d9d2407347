package event

import (
	"context"

	"github.com/dshills/meshview/internal/event/topic"
)

// Handler is the interface for event handlers.
type Handler interface {
	// Handle processes one event. Returned errors are logged and isolated;
	// they never abort delivery to other subscribers.
	Handle(ctx context.Context, env Envelope) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, env Envelope) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// ErrorHandler is invoked when a subscriber returns an error or panics.
// It must not publish events.
type ErrorHandler func(env Envelope, sub Subscription, err error)

// Diagnostics is a read-only snapshot of bus internals.
type Diagnostics struct {
	// QueueLength is the number of events currently awaiting dispatch.
	QueueLength int

	// Dropped is the total number of events discarded because the
	// pending queue was full.
	Dropped uint64

	// Published is the total number of events accepted for dispatch.
	Published uint64

	// Delivered is the total number of successful handler invocations.
	Delivered uint64

	// HandlerErrors is the number of handler invocations that returned
	// an error or panicked.
	HandlerErrors uint64

	// Subscribers maps each registered pattern to its subscription count.
	Subscribers map[topic.Topic]int
}
