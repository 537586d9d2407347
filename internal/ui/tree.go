// Package ui renders the part tree and feeds selection intent to the bus.
package ui

import (
	"github.com/dshills/meshview/internal/scene"
)

// Row is one visible line of the part tree.
type Row struct {
	ID       string
	Name     string
	Depth    int
	HasKids  bool
	Expanded bool
	Selected bool
	Focused  bool
}

// Tree is the view model for the hierarchy panel. It flattens the scene
// graph into visible rows according to the expanded set and tracks the
// cursor. It carries no terminal state and is safe to drive from tests.
type Tree struct {
	graph    *scene.Graph
	expanded map[string]struct{}
	selected map[string]struct{}
	focused  string
	cursor   int
	rows     []Row
}

// NewTree creates an empty tree view model.
func NewTree() *Tree {
	return &Tree{
		expanded: make(map[string]struct{}),
		selected: make(map[string]struct{}),
	}
}

// SetGraph replaces the displayed hierarchy. Roots start expanded so the
// first level of parts is immediately visible.
func (t *Tree) SetGraph(g *scene.Graph) {
	t.graph = g
	t.expanded = make(map[string]struct{})
	t.selected = make(map[string]struct{})
	t.focused = ""
	t.cursor = 0
	if g != nil {
		for _, id := range g.Roots() {
			t.expanded[id] = struct{}{}
		}
	}
	t.rebuild()
}

// ApplySelection updates highlight state from the canonical selection.
// Expanded ids are added to the expansion set so the focused item is
// visible; existing expansions are kept.
func (t *Tree) ApplySelection(selectedIDs []string, focusedID string, expand []string) {
	t.selected = make(map[string]struct{}, len(selectedIDs))
	for _, id := range selectedIDs {
		t.selected[id] = struct{}{}
	}
	t.focused = focusedID
	for _, id := range expand {
		t.expanded[id] = struct{}{}
	}
	t.rebuild()
	if focusedID != "" {
		for i, row := range t.rows {
			if row.ID == focusedID {
				t.cursor = i
				break
			}
		}
	}
}

// Rows returns the currently visible rows.
func (t *Tree) Rows() []Row {
	return t.rows
}

// Cursor returns the cursor row index.
func (t *Tree) Cursor() int {
	return t.cursor
}

// CursorID returns the id under the cursor, or empty when the tree is
// empty.
func (t *Tree) CursorID() string {
	if t.cursor < 0 || t.cursor >= len(t.rows) {
		return ""
	}
	return t.rows[t.cursor].ID
}

// MoveUp moves the cursor one row up.
func (t *Tree) MoveUp() {
	if t.cursor > 0 {
		t.cursor--
	}
}

// MoveDown moves the cursor one row down.
func (t *Tree) MoveDown() {
	if t.cursor < len(t.rows)-1 {
		t.cursor++
	}
}

// ToggleExpand flips expansion of the row under the cursor. Leaf rows
// are unaffected.
func (t *Tree) ToggleExpand() {
	id := t.CursorID()
	if id == "" || t.graph == nil || len(t.graph.Children(id)) == 0 {
		return
	}
	if _, ok := t.expanded[id]; ok {
		delete(t.expanded, id)
	} else {
		t.expanded[id] = struct{}{}
	}
	t.rebuild()
	// The cursor may now point past the shortened row list.
	if t.cursor >= len(t.rows) {
		t.cursor = len(t.rows) - 1
	}
}

func (t *Tree) rebuild() {
	t.rows = t.rows[:0]
	if t.graph == nil {
		return
	}
	for _, id := range t.graph.Roots() {
		t.walk(id, 0)
	}
}

func (t *Tree) walk(id string, depth int) {
	item, ok := t.graph.Get(id)
	if !ok {
		return
	}
	kids := t.graph.Children(id)
	_, expanded := t.expanded[id]
	_, selected := t.selected[id]
	t.rows = append(t.rows, Row{
		ID:       id,
		Name:     item.Name,
		Depth:    depth,
		HasKids:  len(kids) > 0,
		Expanded: expanded,
		Selected: selected,
		Focused:  id == t.focused,
	})
	if !expanded {
		return
	}
	for _, kid := range kids {
		t.walk(kid, depth+1)
	}
}
