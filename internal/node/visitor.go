package node

// Visitor is the pre/post traversal contract used by the compiler passes.
// Visit returning false skips the node's children. PostVisit runs after the
// children and may mutate the tree, including detaching the visited node.
type Visitor interface {
	Visit(n *Node) bool
	PostVisit(n *Node)
}

// Walk drives a visitor over the subtree in document order. Children are
// snapshotted before descent so PostVisit mutations do not derail the walk.
func Walk(n *Node, v Visitor) {
	if !v.Visit(n) {
		return
	}
	for _, c := range n.Children() {
		Walk(c, v)
	}
	v.PostVisit(n)
}

// FuncVisitor adapts plain functions to the Visitor interface. Either field
// may be nil.
type FuncVisitor struct {
	VisitFn     func(n *Node) bool
	PostVisitFn func(n *Node)
}

// Visit implements Visitor.
func (f FuncVisitor) Visit(n *Node) bool {
	if f.VisitFn == nil {
		return true
	}
	return f.VisitFn(n)
}

// PostVisit implements Visitor.
func (f FuncVisitor) PostVisit(n *Node) {
	if f.PostVisitFn == nil {
		return
	}
	f.PostVisitFn(n)
}
