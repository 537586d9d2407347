// Package scene models the part hierarchy of a loaded resource.
//
// Items live in a flat id-keyed table; parents are id references, never
// object pointers, so the structure is a forest by construction and cannot
// form retain cycles. Traversal always resolves through the table.
package scene

import "errors"

// Kind classifies a selectable item.
type Kind string

// Item kinds.
const (
	// KindNode is a grouping node in the hierarchy.
	KindNode Kind = "node"

	// KindMesh is a node backed by renderable geometry.
	KindMesh Kind = "mesh"
)

// Item is one selectable node of the hierarchy.
type Item struct {
	// ID uniquely identifies the item within its graph.
	ID string

	// ParentID references the parent item, or is empty for roots.
	ParentID string

	// Kind classifies the item.
	Kind Kind

	// Name is the display name, if the source provided one.
	Name string

	// ObjectRef identifies the renderable object backing this item, if
	// any. Mesh items carry one; pure grouping nodes do not.
	ObjectRef string
}

// Errors reported by Graph mutations and lookups.
var (
	// ErrDuplicateItem is returned when adding an id that already exists.
	ErrDuplicateItem = errors.New("duplicate item id")

	// ErrUnknownParent is returned when an item references a parent that
	// has not been added. Adding parents before children is what keeps
	// the graph acyclic.
	ErrUnknownParent = errors.New("unknown parent id")

	// ErrUnknownItem is returned by lookups for ids not in the graph.
	ErrUnknownItem = errors.New("unknown item id")

	// ErrEmptyID is returned when adding an item without an id.
	ErrEmptyID = errors.New("item id cannot be empty")
)

// Graph is the flat arena of items for one loaded resource.
// It is built once per load and read-only afterwards; no methods mutate it
// after the loader hands it over.
type Graph struct {
	resource string
	items    map[string]Item
	children map[string][]string
	order    []string
}

// NewGraph creates an empty graph for the named resource.
func NewGraph(resource string) *Graph {
	return &Graph{
		resource: resource,
		items:    make(map[string]Item),
		children: make(map[string][]string),
	}
}

// Resource returns the resource identifier this graph was built from.
func (g *Graph) Resource() string {
	return g.resource
}

// Add inserts an item. The parent, when set, must already be present.
func (g *Graph) Add(item Item) error {
	if item.ID == "" {
		return ErrEmptyID
	}
	if _, exists := g.items[item.ID]; exists {
		return ErrDuplicateItem
	}
	if item.ParentID != "" {
		if _, ok := g.items[item.ParentID]; !ok {
			return ErrUnknownParent
		}
	}

	g.items[item.ID] = item
	g.order = append(g.order, item.ID)
	if item.ParentID != "" {
		g.children[item.ParentID] = append(g.children[item.ParentID], item.ID)
	}
	return nil
}

// Get returns the item with the given id.
func (g *Graph) Get(id string) (Item, bool) {
	item, ok := g.items[id]
	return item, ok
}

// Contains reports whether the id exists in the graph.
func (g *Graph) Contains(id string) bool {
	_, ok := g.items[id]
	return ok
}

// Len returns the number of items.
func (g *Graph) Len() int {
	return len(g.items)
}

// Items returns all items in insertion order.
func (g *Graph) Items() []Item {
	out := make([]Item, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.items[id])
	}
	return out
}

// Roots returns the ids of all items without a parent, in insertion order.
func (g *Graph) Roots() []string {
	var out []string
	for _, id := range g.order {
		if g.items[id].ParentID == "" {
			out = append(out, id)
		}
	}
	return out
}

// Children returns the ids of an item's direct children, in insertion order.
func (g *Graph) Children(id string) []string {
	return g.children[id]
}

// Ancestors returns the chain of ancestor ids from the item's parent up to
// its root. Returns ErrUnknownItem for ids not in the graph.
func (g *Graph) Ancestors(id string) ([]string, error) {
	item, ok := g.items[id]
	if !ok {
		return nil, ErrUnknownItem
	}

	var out []string
	for item.ParentID != "" {
		out = append(out, item.ParentID)
		item = g.items[item.ParentID]
	}
	return out, nil
}
