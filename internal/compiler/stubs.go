package compiler

import (
	"github.com/oxhq/archc/internal/expr"
	"github.com/oxhq/archc/internal/model"
	"github.com/oxhq/archc/internal/node"
)

// stubsVisitor inserts synthetic variable declarations for every condition
// reference whose definition guard is not entailed by the condition's
// enclosing guard. The stub carries the negation of the definition guard,
// so exactly on the paths where the real declaration is unreachable the
// reference resolves to an empty typed value instead of failing.
type stubsVisitor struct {
	c   *Compiler
	img *Image
}

func newStubsVisitor(c *Compiler, img *Image) *stubsVisitor {
	return &stubsVisitor{c: c, img: img}
}

func (s *stubsVisitor) run() error {
	var walk func(n *node.Node, guard *expr.Expression) error
	walk = func(n *node.Node, guard *expr.Expression) error {
		if n.Kind() == node.KindCondition {
			e := n.Expression()
			if e == nil {
				e = expr.True
			}
			for _, name := range e.Variables() {
				if err := s.insertStub(n, name, guard); err != nil {
					return err
				}
			}
			guard = guard.And(e)
		}
		for _, child := range n.Children() {
			if err := walk(child, guard); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(s.img.Root, expr.True)
}

// insertStub adds one stub for the key referenced by the condition, unless
// the definition guard already covers every reachable path or an identical
// stub is present.
func (s *stubsVisitor) insertStub(cond *node.Node, key string, enclosing *expr.Expression) error {
	defined, ok := s.c.refs[key]
	if !ok {
		// Unresolvable references are the validator's finding, not ours.
		return nil
	}
	rel := defined.Relativize(enclosing)
	if rel.IsTrue() {
		return nil
	}
	guard := rel.Negate()

	container, at, err := s.containerFor(cond)
	if err != nil {
		return err
	}
	if hasStub(container, key, guard) {
		return nil
	}
	stub := node.New(stubKind(s.c.valueKinds[key])).SetAttr("path", "~"+key)
	wrapped := stub.Wrap(guard)
	if at < 0 || at > len(container.Children()) {
		container.Append(wrapped)
	} else {
		container.Insert(at, wrapped)
	}
	return nil
}

// containerFor locates the variables container the stub belongs in: the
// condition's own enclosing variables container (inserting before the
// condition), a preceding sibling container on the ancestor chain, or a
// fresh container created by splitting the surrounding inputs container at
// the insertion point.
func (s *stubsVisitor) containerFor(cond *node.Node) (*node.Node, int, error) {
	for cur := cond; cur.Parent() != nil; cur = cur.Parent() {
		parent := cur.Parent()
		idx := cur.Index()
		if parent.Kind() == node.KindVariables {
			return parent, idx, nil
		}
		siblings := parent.Children()
		for i := idx - 1; i >= 0; i-- {
			if unwrapped := siblings[i].Unwrap(); unwrapped.Kind() == node.KindVariables {
				return unwrapped, -1, nil
			}
		}
		if parent.Kind() == node.KindInputs {
			return s.splitInputs(parent, idx), -1, nil
		}
	}
	return nil, 0, model.ErrStubContainerUnresolved.New(cond.Location())
}

// splitInputs breaks an inputs container in two around the insertion point
// and returns the variables container placed between the halves.
func (s *stubsVisitor) splitInputs(inputs *node.Node, at int) *node.Node {
	parent := inputs.Parent()
	idx := inputs.Index()
	children := inputs.Children()

	variables := node.New(node.KindVariables)
	if at == 0 {
		parent.Insert(idx, variables)
		return variables
	}
	head := node.New(node.KindInputs)
	for _, c := range children[:at] {
		head.Append(c)
	}
	parent.Insert(idx, head)
	parent.Insert(idx+1, variables)
	return variables
}

// hasStub reports whether an identical stub already sits in the container.
func hasStub(container *node.Node, key string, guard *expr.Expression) bool {
	want := "~" + key
	for _, child := range container.Children() {
		decl := child.Unwrap()
		if !decl.Kind().IsVariable() || decl.Attr("path") != want {
			continue
		}
		childGuard := expr.True
		if child.Kind() == node.KindCondition && child.Expression() != nil {
			childGuard = child.Expression()
		}
		if childGuard.Equal(guard) {
			return true
		}
	}
	return false
}

// stubKind picks the variable kind matching the declaration's value type.
func stubKind(declared node.Kind) node.Kind {
	switch kindSuffix(declared) {
	case "boolean":
		return node.KindVariableBoolean
	case "list":
		return node.KindVariableList
	case "enum":
		return node.KindVariableEnum
	default:
		return node.KindVariableText
	}
}
