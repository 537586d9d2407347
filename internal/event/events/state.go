package events

import "github.com/dshills/meshview/internal/event/topic"

// TopicStateChanged is published by the state store after every mutation
// that changed at least one key.
const TopicStateChanged topic.Topic = "state.changed"

// StateChanged carries the diff of one store mutation.
type StateChanged struct {
	// Keys are the top-level keys whose values changed, sorted.
	Keys []string

	// Previous is the snapshot before the mutation.
	Previous map[string]any

	// Current is the snapshot after the mutation.
	Current map[string]any
}

// Changed reports whether the given key is among the changed keys.
func (s StateChanged) Changed(key string) bool {
	for _, k := range s.Keys {
		if k == key {
			return true
		}
	}
	return false
}
