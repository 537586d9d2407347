package events

import (
	"time"

	"github.com/dshills/meshview/internal/event/topic"
)

// Selection event topics.
const (
	// TopicSelectRequested carries selection intent from an input source.
	TopicSelectRequested topic.Topic = "select.requested"

	// TopicSelectionChanged announces the new canonical selection.
	// Exactly one is published per accepted request, whichever source
	// the request came from.
	TopicSelectionChanged topic.Topic = "selection.changed"
)

// Source identifies which input surface produced a selection intent.
type Source string

// Selection intent sources.
const (
	// SourceTree is the hierarchy panel.
	SourceTree Source = "tree"

	// SourceScene is the spatial picker in the rendered view.
	SourceScene Source = "scene"
)

// SelectRequested is raised when the user clicks an item in the tree or
// picks geometry in the scene. Exactly one of ItemID and ObjectRef is set;
// both empty means the click hit nothing and clears the selection.
type SelectRequested struct {
	// Source is the input surface that produced the intent.
	Source Source

	// ItemID identifies the item directly (tree clicks).
	ItemID string

	// ObjectRef identifies the picked renderable (scene picks); it is
	// resolved to an item through the current scene binding.
	ObjectRef string

	// At is when the physical click happened, used for debouncing.
	At time.Time
}

// SelectionChanged announces the canonical selection after an accepted
// request.
type SelectionChanged struct {
	// SelectedIDs is the new selection, sorted.
	SelectedIDs []string

	// FocusedID is the most recently selected id, or empty when the
	// selection was cleared.
	FocusedID string

	// Expanded lists ancestor ids the tree should reveal so the focused
	// item is visible. Expansion is a visibility concern; it is not part
	// of the selection itself.
	Expanded []string
}
