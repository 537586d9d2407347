package events

import (
	"time"

	"github.com/dshills/meshview/internal/event/topic"
	"github.com/dshills/meshview/internal/scene"
)

// Load event topics.
const (
	// TopicLoadRequested asks the coordinator to load a resource.
	TopicLoadRequested topic.Topic = "load.requested"

	// TopicLoadCompleted is published after a load is applied to state.
	TopicLoadCompleted topic.Topic = "load.completed"

	// TopicLoadFailed is published when the current load fails.
	// Superseded loads publish nothing.
	TopicLoadFailed topic.Topic = "load.failed"

	// TopicLoadUnloaded is published when the current resource is cleared.
	TopicLoadUnloaded topic.Topic = "load.unloaded"
)

// LoadRequested asks for a resource to be loaded. A request made while an
// earlier load is in flight supersedes it.
type LoadRequested struct {
	// Resource is the path or identifier of the model to load.
	Resource string
}

// LoadCompleted is published once per applied load.
type LoadCompleted struct {
	// Resource is the loaded model.
	Resource string

	// Graph is the part hierarchy extracted from the model.
	Graph *scene.Graph

	// Duration is the wall-clock time the load took.
	Duration time.Duration
}

// LoadFailed is published when the still-current load fails. Previous
// state remains untouched.
type LoadFailed struct {
	// Resource is the model that failed to load.
	Resource string

	// Err is the underlying loader error.
	Err error
}

// LoadUnloaded is published when the viewer returns to the empty state.
type LoadUnloaded struct {
	// Resource is the model that was unloaded.
	Resource string
}
