package event

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/dshills/meshview/internal/event/topic"
)

// Envelope is an event as it travels through the bus.
// Envelopes are immutable once published.
type Envelope struct {
	// Topic is the hierarchical event type (e.g., "load.completed").
	Topic topic.Topic

	// Payload contains the event-specific data.
	Payload any

	// Meta contains standard event information.
	Meta Meta
}

// Meta contains standard information attached to every event.
type Meta struct {
	// ID is a unique identifier for this event instance.
	ID string

	// Timestamp is when the event was published.
	Timestamp time.Time

	// Source identifies the component that published the event.
	Source string
}

// New creates an envelope for the given topic and payload.
func New(t topic.Topic, payload any, source string) Envelope {
	return Envelope{
		Topic:   t,
		Payload: payload,
		Meta: Meta{
			ID:        generateID(),
			Timestamp: time.Now(),
			Source:    source,
		},
	}
}

// generateID generates a unique event or subscription ID.
func generateID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		// Fallback to a timestamp-derived ID if crypto/rand fails.
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}
