package node

import (
	"sort"
	"strings"

	"github.com/oxhq/archc/internal/expr"
)

// Node is a mutable kind-tagged tree node. A node is owned by its parent;
// detaching and splicing go through Remove and Replace. Condition nodes
// additionally carry a guard expression wrapping their children.
type Node struct {
	kind     Kind
	id       int
	parent   *Node
	children []*Node
	attrs    map[string]string
	value    string
	hasValue bool
	expr     *expr.Expression
}

// New creates a detached node of the given kind.
func New(kind Kind) *Node {
	return &Node{kind: kind, attrs: map[string]string{}}
}

// NewCondition creates a condition node carrying the expression.
func NewCondition(e *expr.Expression) *Node {
	n := New(KindCondition)
	n.expr = e
	return n
}

// Kind returns the node kind.
func (n *Node) Kind() Kind {
	return n.kind
}

// ID returns the traversal-order id assigned during the refs pass; zero
// before assignment.
func (n *Node) ID() int {
	return n.id
}

// SetID assigns the node id.
func (n *Node) SetID(id int) {
	n.id = id
}

// Parent returns the owning node, nil for a root or detached node.
func (n *Node) Parent() *Node {
	return n.parent
}

// Attr returns the attribute value, empty when absent.
func (n *Node) Attr(key string) string {
	return n.attrs[key]
}

// HasAttr reports whether the attribute is set.
func (n *Node) HasAttr(key string) bool {
	_, ok := n.attrs[key]
	return ok
}

// SetAttr sets an attribute and returns the node for chaining.
func (n *Node) SetAttr(key, val string) *Node {
	n.attrs[key] = val
	return n
}

// DelAttr removes an attribute.
func (n *Node) DelAttr(key string) {
	delete(n.attrs, key)
}

// AttrKeys returns the attribute keys in sorted order.
func (n *Node) AttrKeys() []string {
	keys := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the node's text value.
func (n *Node) Value() string {
	return n.value
}

// HasValue reports whether a text value was set, distinguishing the empty
// string from no value.
func (n *Node) HasValue() bool {
	return n.hasValue
}

// SetValue sets the node's text value.
func (n *Node) SetValue(v string) *Node {
	n.value = v
	n.hasValue = true
	return n
}

// Expression returns the guard expression, nil unless set.
func (n *Node) Expression() *expr.Expression {
	return n.expr
}

// SetExpression replaces the guard expression.
func (n *Node) SetExpression(e *expr.Expression) {
	n.expr = e
}

// Append attaches a child at the end and returns the child.
func (n *Node) Append(child *Node) *Node {
	child.detach()
	child.parent = n
	n.children = append(n.children, child)
	return child
}

// Insert attaches a child at the index.
func (n *Node) Insert(index int, child *Node) *Node {
	child.detach()
	child.parent = n
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
	return child
}

// Index returns the node's position among its siblings, -1 when detached.
func (n *Node) Index() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.children {
		if c == n {
			return i
		}
	}
	return -1
}

// Remove detaches the node from its parent.
func (n *Node) Remove() {
	n.detach()
}

func (n *Node) detach() {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// Replace splices the given nodes into the node's position and detaches it.
func (n *Node) Replace(nodes ...*Node) {
	p := n.parent
	if p == nil {
		return
	}
	idx := n.Index()
	n.detach()
	for i, nn := range nodes {
		p.Insert(idx+i, nn)
	}
}

// Children returns the node's children. The returned slice is a copy, so
// callers may mutate the tree while iterating.
func (n *Node) Children() []*Node {
	cp := make([]*Node, len(n.children))
	copy(cp, n.children)
	return cp
}

// ChildrenOf returns the children matching the predicate.
func (n *Node) ChildrenOf(pred func(*Node) bool) []*Node {
	var out []*Node
	for _, c := range n.children {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}

// FirstChild returns the first child matching the predicate, or nil.
func (n *Node) FirstChild(pred func(*Node) bool) *Node {
	for _, c := range n.children {
		if pred(c) {
			return c
		}
	}
	return nil
}

// Traverse yields the node and all descendants in pre-order.
func (n *Node) Traverse(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children() {
		c.Traverse(fn)
	}
}

// Collect returns the node and descendants matching the predicate, in
// pre-order.
func (n *Node) Collect(pred func(*Node) bool) []*Node {
	var out []*Node
	n.Traverse(func(c *Node) {
		if pred(c) {
			out = append(out, c)
		}
	})
	return out
}

// Ancestors walks up the parent chain returning matches, nearest first.
func (n *Node) Ancestors(pred func(*Node) bool) []*Node {
	var out []*Node
	for p := n.parent; p != nil; p = p.parent {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}

// Ancestor returns the nearest ancestor matching the predicate, or nil.
func (n *Node) Ancestor(pred func(*Node) bool) *Node {
	for p := n.parent; p != nil; p = p.parent {
		if pred(p) {
			return p
		}
	}
	return nil
}

// Copy returns a detached shallow copy: kind, attributes, value and
// expression, without children and without the id.
func (n *Node) Copy() *Node {
	cp := New(n.kind)
	for k, v := range n.attrs {
		cp.attrs[k] = v
	}
	cp.value = n.value
	cp.hasValue = n.hasValue
	cp.expr = n.expr
	return cp
}

// DeepCopy returns a detached copy of the whole subtree. Ids are not
// carried over; the next refs pass assigns fresh ones.
func (n *Node) DeepCopy() *Node {
	cp := n.Copy()
	for _, c := range n.children {
		cp.Append(c.DeepCopy())
	}
	return cp
}

// Wrap returns the node wrapped in a condition carrying the expression, or
// the node unchanged when the expression is trivially true.
func (n *Node) Wrap(e *expr.Expression) *Node {
	if e == nil || e.IsTrue() {
		return n
	}
	cond := NewCondition(e)
	cond.Append(n)
	return cond
}

// Location renders a compact ancestor path for diagnostics, naming nodes
// by their name or path attribute where present.
func (n *Node) Location() string {
	var parts []string
	for cur := n; cur != nil; cur = cur.parent {
		label := string(cur.kind)
		if name := cur.attrs["name"]; name != "" {
			label += "[" + name + "]"
		} else if path := cur.attrs["path"]; path != "" {
			label += "[" + path + "]"
		}
		parts = append(parts, label)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// Unwrap returns the single wrapped node of a condition chain; for any
// other node it returns the node itself. The result is a condition only when
// the chain ends in a condition that does not wrap exactly one node.
func (n *Node) Unwrap() *Node {
	cur := n
	for cur.kind == KindCondition && len(cur.children) == 1 {
		cur = cur.children[0]
	}
	return cur
}
