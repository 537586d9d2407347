package event

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/dshills/meshview/internal/event/topic"
)

// DefaultQueueCapacity is the default bound on events queued during a
// dispatch cycle.
const DefaultQueueCapacity = 50

// Bus is a synchronous in-process publish/subscribe bus.
//
// Publishing outside a dispatch delivers the event immediately to every
// matching subscriber in registration order, then drains any events that
// handlers published meanwhile, breadth-first, until the queue is empty.
// Publishing from inside a handler never recurses: the event is appended to
// a bounded queue and delivered after the current dispatch completes. Once
// queued events in one cycle reach the capacity, further events in that
// cycle are dropped and counted; the publisher is never told.
//
// Subscriber errors and panics are reported to the configured ErrorHandler
// and isolated per handler. Publish only fails for malformed input.
type Bus struct {
	registry *registry
	onError  ErrorHandler
	capacity int

	mu          sync.Mutex
	dispatching bool
	pending     []Envelope
	cycleQueued int

	published     atomic.Uint64
	delivered     atomic.Uint64
	dropped       atomic.Uint64
	handlerErrors atomic.Uint64
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueCapacity sets the bound on events queued during one dispatch
// cycle. Non-positive values panic: a bus that can never drain queued
// events is a programming error.
func WithQueueCapacity(n int) Option {
	return func(b *Bus) {
		if n <= 0 {
			panic("event: queue capacity must be positive")
		}
		b.capacity = n
	}
}

// WithErrorHandler sets the callback for subscriber errors and panics.
func WithErrorHandler(h ErrorHandler) Option {
	return func(b *Bus) {
		if h != nil {
			b.onError = h
		}
	}
}

// NewBus creates a bus with the given options.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		registry: newRegistry(),
		capacity: DefaultQueueCapacity,
		onError:  func(Envelope, Subscription, error) {},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for all topics matching the pattern.
// Delivery order among subscribers of one topic equals registration order.
func (b *Bus) Subscribe(pattern topic.Topic, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !pattern.IsValid() {
		return nil, ErrInvalidTopic
	}

	sub := &subscription{
		id:      generateID(),
		pattern: pattern,
		handler: handler,
	}
	sub.remove = func(id string) { b.registry.remove(id) }
	b.registry.add(sub)
	return sub, nil
}

// SubscribeFunc is a convenience wrapper for subscribing a function.
func (b *Bus) SubscribeFunc(pattern topic.Topic, fn HandlerFunc) (Subscription, error) {
	return b.Subscribe(pattern, fn)
}

// Unsubscribe cancels a subscription. Idempotent.
func (b *Bus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}
	sub.Cancel()
	return nil
}

// Publish delivers an event to all subscribers of its topic.
//
// The returned error reports only malformed input; subscriber failures and
// queue overflow are observable solely through Diagnostics.
func (b *Bus) Publish(ctx context.Context, env Envelope) error {
	if !env.Topic.IsValid() || env.Topic.IsPattern() {
		return ErrInvalidTopic
	}

	b.mu.Lock()
	if b.dispatching {
		// Re-entrant publish: queue instead of recursing into dispatch.
		// The bound is cumulative across the whole dispatch cycle so a
		// cyclic event chain (a triggers b triggers a) always terminates.
		if b.cycleQueued >= b.capacity {
			b.dropped.Add(1)
			b.mu.Unlock()
			return nil
		}
		b.cycleQueued++
		b.pending = append(b.pending, env)
		b.published.Add(1)
		b.mu.Unlock()
		return nil
	}
	b.dispatching = true
	b.cycleQueued = 0
	b.mu.Unlock()

	b.published.Add(1)
	b.dispatch(ctx, env)

	// Drain events queued by handlers, breadth-first.
	for {
		b.mu.Lock()
		if len(b.pending) == 0 {
			b.dispatching = false
			b.mu.Unlock()
			return nil
		}
		next := b.pending[0]
		b.pending = b.pending[1:]
		b.mu.Unlock()

		b.dispatch(ctx, next)
	}
}

// dispatch invokes every matching subscriber for one event.
func (b *Bus) dispatch(ctx context.Context, env Envelope) {
	for _, sub := range b.registry.match(env.Topic) {
		// Skip subscriptions cancelled earlier in this same dispatch.
		if !sub.IsActive() {
			continue
		}
		if err := b.invoke(ctx, env, sub); err != nil {
			b.handlerErrors.Add(1)
			b.onError(env, sub, err)
		} else {
			b.delivered.Add(1)
		}
	}
}

// invoke runs a single handler with panic recovery.
func (b *Bus) invoke(ctx context.Context, env Envelope, sub *subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return sub.handler.Handle(ctx, env)
}

// Diagnostics returns a read-only snapshot of bus internals.
func (b *Bus) Diagnostics() Diagnostics {
	b.mu.Lock()
	queueLen := len(b.pending)
	b.mu.Unlock()

	return Diagnostics{
		QueueLength:   queueLen,
		Dropped:       b.dropped.Load(),
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		HandlerErrors: b.handlerErrors.Load(),
		Subscribers:   b.registry.counts(),
	}
}
