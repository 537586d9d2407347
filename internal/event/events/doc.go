// Package events defines the topics and payload types exchanged over the
// bus. Intent events (load.requested, select.requested) are raised by UI
// layers; outcome events (load.completed, load.failed, state.changed,
// selection.changed) are published by the coordination components.
package events
