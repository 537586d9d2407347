package selection

import "github.com/dshills/meshview/internal/scene"

// Binding is the bidirectional mapping between hierarchy items and the
// renderable objects a picker reports. It is rebuilt from scratch for
// every loaded scene and never outlives it.
type Binding struct {
	itemToObject map[string]string
	objectToItem map[string]string
}

// NewBinding builds the mapping from all items carrying an object ref.
func NewBinding(g *scene.Graph) *Binding {
	b := &Binding{
		itemToObject: make(map[string]string),
		objectToItem: make(map[string]string),
	}
	if g == nil {
		return b
	}
	for _, item := range g.Items() {
		if item.ObjectRef == "" {
			continue
		}
		b.itemToObject[item.ID] = item.ObjectRef
		b.objectToItem[item.ObjectRef] = item.ID
	}
	return b
}

// ItemFor resolves a picked object to its hierarchy item.
func (b *Binding) ItemFor(objectRef string) (string, bool) {
	id, ok := b.objectToItem[objectRef]
	return id, ok
}

// ObjectFor resolves a hierarchy item to its renderable object.
func (b *Binding) ObjectFor(itemID string) (string, bool) {
	ref, ok := b.itemToObject[itemID]
	return ref, ok
}

// Len returns the number of bound items.
func (b *Binding) Len() int {
	return len(b.itemToObject)
}
