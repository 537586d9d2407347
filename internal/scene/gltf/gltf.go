// Package gltf extracts the node hierarchy from glTF 2.0 documents.
//
// Only the structure needed for tree navigation and pick resolution is
// read: scenes, nodes, node names, and mesh references. Geometry buffers,
// materials, and animation data are never decoded.
package gltf

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/meshview/internal/scene"
)

// Errors reported by the loader.
var (
	// ErrInvalidDocument is returned for files that are not valid glTF.
	ErrInvalidDocument = errors.New("invalid glTF document")

	// ErrNoScene is returned when the document defines no scene nodes.
	ErrNoScene = errors.New("glTF document has no scene")
)

// glb container framing.
const (
	glbMagic     = 0x46546C67 // "glTF" little-endian
	glbChunkJSON = 0x4E4F534A // "JSON" little-endian
	glbHeaderLen = 12
)

// Loader reads glTF files from disk and produces scene graphs.
// The read is the loader's suspension point: cancellation of a superseded
// load is observed by the coordinator after Load returns.
type Loader struct{}

// New creates a Loader.
func New() *Loader {
	return &Loader{}
}

// Load reads and parses the resource.
func (l *Loader) Load(ctx context.Context, resource string) (*scene.Graph, error) {
	data, err := os.ReadFile(resource)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", resource, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Parse(resource, data)
}

// Parse builds a scene graph from raw glTF or GLB bytes.
func Parse(resource string, data []byte) (*scene.Graph, error) {
	doc, err := documentJSON(data)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(doc) {
		return nil, ErrInvalidDocument
	}

	root := gjson.ParseBytes(doc)
	nodes := root.Get("nodes")
	if !nodes.IsArray() {
		return nil, ErrNoScene
	}

	sceneIdx := int64(0)
	if v := root.Get("scene"); v.Exists() {
		sceneIdx = v.Int()
	}
	roots := root.Get(fmt.Sprintf("scenes.%d.nodes", sceneIdx))
	if !roots.IsArray() || len(roots.Array()) == 0 {
		return nil, ErrNoScene
	}

	b := &builder{
		graph:   scene.NewGraph(resource),
		nodes:   nodes.Array(),
		meshes:  root.Get("meshes").Array(),
		visited: make(map[int64]bool),
		used:    make(map[string]int),
	}
	for _, r := range roots.Array() {
		if err := b.addNode(r.Int(), ""); err != nil {
			return nil, err
		}
	}
	return b.graph, nil
}

// documentJSON returns the JSON chunk of the document, unwrapping the GLB
// binary container when present.
func documentJSON(data []byte) ([]byte, error) {
	if len(data) < 4 || binary.LittleEndian.Uint32(data) != glbMagic {
		return data, nil // plain .gltf JSON
	}
	if len(data) < glbHeaderLen+8 {
		return nil, ErrInvalidDocument
	}

	chunkLen := binary.LittleEndian.Uint32(data[glbHeaderLen:])
	chunkType := binary.LittleEndian.Uint32(data[glbHeaderLen+4:])
	if chunkType != glbChunkJSON {
		return nil, ErrInvalidDocument
	}
	start := uint32(glbHeaderLen + 8)
	if uint64(start)+uint64(chunkLen) > uint64(len(data)) {
		return nil, ErrInvalidDocument
	}
	return data[start : start+chunkLen], nil
}

// builder accumulates graph items while walking the node arrays.
type builder struct {
	graph   *scene.Graph
	nodes   []gjson.Result
	meshes  []gjson.Result
	visited map[int64]bool
	used    map[string]int
}

// addNode adds node idx and its subtree under parentID.
func (b *builder) addNode(idx int64, parentID string) error {
	if idx < 0 || idx >= int64(len(b.nodes)) {
		return fmt.Errorf("%w: node index %d out of range", ErrInvalidDocument, idx)
	}
	// Shared or cyclic nodes are added once, under their first parent.
	if b.visited[idx] {
		return nil
	}
	b.visited[idx] = true

	node := b.nodes[idx]
	item := scene.Item{
		ParentID: parentID,
		Kind:     scene.KindNode,
		Name:     node.Get("name").String(),
	}

	if mesh := node.Get("mesh"); mesh.Exists() {
		item.Kind = scene.KindMesh
		item.ObjectRef = fmt.Sprintf("mesh/%d", mesh.Int())
		if item.Name == "" {
			m := mesh.Int()
			if m >= 0 && m < int64(len(b.meshes)) {
				item.Name = b.meshes[m].Get("name").String()
			}
		}
	}
	if item.Name == "" {
		item.Name = fmt.Sprintf("node %d", idx)
	}
	item.ID = b.uniqueID(slug(item.Name))

	if err := b.graph.Add(item); err != nil {
		return err
	}
	for _, child := range node.Get("children").Array() {
		if err := b.addNode(child.Int(), item.ID); err != nil {
			return err
		}
	}
	return nil
}

// uniqueID disambiguates repeated names with a numeric suffix.
func (b *builder) uniqueID(id string) string {
	b.used[id]++
	if n := b.used[id]; n > 1 {
		return fmt.Sprintf("%s_%d", id, n)
	}
	return id
}

// slug normalizes a display name into a stable item id.
func slug(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
