package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/archc/internal/expr"
)

func TestNode_AttachDetach(t *testing.T) {
	root := New(KindScript)
	step := root.Append(New(KindStep).SetAttr("name", "s"))
	inputs := step.Append(New(KindInputs))

	assert.Same(t, root, step.Parent())
	assert.Equal(t, 0, step.Index())
	assert.Len(t, root.Children(), 1)

	inputs.Remove()
	assert.Nil(t, inputs.Parent())
	assert.Empty(t, step.Children())

	// Appending an attached node reparents it.
	other := New(KindStep)
	root.Append(other)
	step.Append(other)
	assert.Same(t, step, other.Parent())
	assert.Len(t, root.Children(), 1)
}

func TestNode_Insert(t *testing.T) {
	root := New(KindInputs)
	a := root.Append(New(KindInputText).SetAttr("name", "a"))
	c := root.Append(New(KindInputText).SetAttr("name", "c"))
	b := root.Insert(1, New(KindInputText).SetAttr("name", "b"))

	got := root.Children()
	require.Len(t, got, 3)
	assert.Same(t, a, got[0])
	assert.Same(t, b, got[1])
	assert.Same(t, c, got[2])
}

func TestNode_Replace(t *testing.T) {
	root := New(KindScript)
	root.Append(New(KindStep).SetAttr("name", "before"))
	victim := root.Append(New(KindCondition))
	root.Append(New(KindStep).SetAttr("name", "after"))

	x := New(KindStep).SetAttr("name", "x")
	y := New(KindStep).SetAttr("name", "y")
	victim.Replace(x, y)

	got := root.Children()
	require.Len(t, got, 4)
	assert.Equal(t, "before", got[0].Attr("name"))
	assert.Same(t, x, got[1])
	assert.Same(t, y, got[2])
	assert.Equal(t, "after", got[3].Attr("name"))
	assert.Nil(t, victim.Parent())
}

func TestNode_WrapUnwrap(t *testing.T) {
	e, err := expr.Parse("${x}")
	require.NoError(t, err)

	step := New(KindStep)
	wrapped := step.Wrap(e)
	require.Equal(t, KindCondition, wrapped.Kind())
	assert.Same(t, e, wrapped.Expression())
	assert.Same(t, step, wrapped.Unwrap())
	assert.NotEqual(t, KindCondition, wrapped.Unwrap().Kind())

	// Wrapping with TRUE is the identity.
	assert.Same(t, step, step.Wrap(expr.True))
	assert.Same(t, step, step.Wrap(nil))
}

func TestNode_DeepCopy(t *testing.T) {
	root := New(KindStep).SetAttr("name", "s")
	root.SetID(7)
	inputs := root.Append(New(KindInputs))
	inputs.Append(New(KindInputBoolean).SetAttr("name", "x").SetAttr("default", "false"))

	cp := root.DeepCopy()
	assert.Nil(t, cp.Parent())
	assert.Equal(t, 0, cp.ID(), "ids are not carried into copies")
	assert.Equal(t, "s", cp.Attr("name"))
	require.Len(t, cp.Children(), 1)
	kid := cp.Children()[0].Children()[0]
	assert.Equal(t, KindInputBoolean, kid.Kind())

	// Mutating the copy leaves the original untouched.
	kid.SetAttr("name", "mutated")
	orig := root.Children()[0].Children()[0]
	assert.Equal(t, "x", orig.Attr("name"))
}

func TestNode_TraverseAndCollect(t *testing.T) {
	root := New(KindScript)
	step := root.Append(New(KindStep))
	inputs := step.Append(New(KindInputs))
	inputs.Append(New(KindInputText).SetAttr("name", "a"))
	inputs.Append(New(KindInputEnum).SetAttr("name", "b"))

	var kinds []Kind
	root.Traverse(func(n *Node) { kinds = append(kinds, n.Kind()) })
	assert.Equal(t, []Kind{KindScript, KindStep, KindInputs, KindInputText, KindInputEnum}, kinds)

	found := root.Collect(func(n *Node) bool { return n.Kind().IsInput() })
	assert.Len(t, found, 2)
}

func TestNode_Ancestors(t *testing.T) {
	root := New(KindScript)
	step := root.Append(New(KindStep))
	inputs := step.Append(New(KindInputs))
	input := inputs.Append(New(KindInputText))

	assert.Same(t, step, input.Ancestor(func(n *Node) bool { return n.Kind() == KindStep }))
	assert.Nil(t, input.Ancestor(func(n *Node) bool { return n.Kind() == KindOutput }))
	assert.Len(t, input.Ancestors(func(n *Node) bool { return true }), 3)
}

func TestWalk_PostVisitMutation(t *testing.T) {
	root := New(KindScript)
	root.Append(New(KindStep).SetAttr("name", "keep"))
	root.Append(New(KindStep).SetAttr("name", "drop"))

	Walk(root, FuncVisitor{
		PostVisitFn: func(n *Node) {
			if n.Attr("name") == "drop" {
				n.Remove()
			}
		},
	})

	got := root.Children()
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].Attr("name"))
}

func TestWalk_SkipChildren(t *testing.T) {
	root := New(KindScript)
	cond := root.Append(NewCondition(expr.False))
	cond.Append(New(KindStep))

	var visited []Kind
	Walk(root, FuncVisitor{
		VisitFn: func(n *Node) bool {
			visited = append(visited, n.Kind())
			return n.Kind() != KindCondition
		},
	})
	assert.Equal(t, []Kind{KindScript, KindCondition}, visited)
}
