package compiler

import "github.com/oxhq/archc/internal/node"

// Mirror is the bi-directional mapping between source nodes and their
// rendered image counterparts. Rendering passes consult it to preserve
// source order; the bijection holds per rendered node.
type Mirror struct {
	toImage  map[*node.Node]*node.Node
	toSource map[*node.Node]*node.Node
}

// NewMirror returns an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{
		toImage:  map[*node.Node]*node.Node{},
		toSource: map[*node.Node]*node.Node{},
	}
}

// Bind records the pairing, replacing any previous mapping of either side.
func (m *Mirror) Bind(source, image *node.Node) {
	if prev, ok := m.toImage[source]; ok {
		delete(m.toSource, prev)
	}
	if prev, ok := m.toSource[image]; ok {
		delete(m.toImage, prev)
	}
	m.toImage[source] = image
	m.toSource[image] = source
}

// Image returns the image node mirroring the source node, nil when absent.
func (m *Mirror) Image(source *node.Node) *node.Node {
	return m.toImage[source]
}

// Source returns the source node mirroring the image node, nil when absent.
func (m *Mirror) Source(image *node.Node) *node.Node {
	return m.toSource[image]
}

// SourceID returns the id of the mirrored source node, falling back to the
// image node's own id. Used to sort rendered steps by source order.
func (m *Mirror) SourceID(image *node.Node) int {
	if src := m.toSource[image]; src != nil {
		return src.ID()
	}
	return image.ID()
}

// MaxSourceID returns the largest mirrored source id in the subtree.
func (m *Mirror) MaxSourceID(image *node.Node) int {
	max := 0
	image.Traverse(func(n *node.Node) {
		if id := m.SourceID(n); id > max {
			max = id
		}
	})
	return max
}
