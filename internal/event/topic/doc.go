// Package topic defines hierarchical event topics and wildcard matching.
//
// Topics use dot notation ("load.completed", "selection.changed") so
// subscribers can register for an exact event, a family of events
// ("load.*"), or everything ("**").
package topic
