package compiler

import (
	"fmt"

	"github.com/mitchellh/hashstructure"

	"github.com/oxhq/archc/internal/expr"
	"github.com/oxhq/archc/internal/node"
)

// dedupVisitor merges steps that render identically: same name, same
// canonical subtree hash. The surviving step's guard becomes the reduced
// disjunction of all occurrences' guards.
type dedupVisitor struct {
	img *Image
}

func newDedupVisitor(img *Image) *dedupVisitor {
	return &dedupVisitor{img: img}
}

func (v *dedupVisitor) run() error {
	type entry struct {
		wrapper *node.Node
		step    *node.Node
		guard   *expr.Expression
	}
	seen := map[string]*entry{}

	for _, container := range v.img.Root.ChildrenOf(func(n *node.Node) bool { return n.Kind() == node.KindInputs }) {
		for _, wrapper := range container.Children() {
			step := wrapper.Unwrap()
			if step.Kind() != node.KindStep {
				continue
			}
			guard := expr.True
			if wrapper.Kind() == node.KindCondition && wrapper.Expression() != nil {
				guard = wrapper.Expression()
			}
			hash, err := stepHash(step)
			if err != nil {
				return err
			}
			key := step.Attr("name") + "\x00" + hash
			if first, ok := seen[key]; ok {
				first.guard = first.guard.Or(guard)
				wrapper.Remove()
				continue
			}
			seen[key] = &entry{wrapper: wrapper, step: step, guard: guard}
		}
	}

	// Apply widened guards to the survivors.
	for _, e := range seen {
		applyGuard(e.wrapper, e.step, e.guard)
	}
	return nil
}

// applyGuard reconciles a step's wrapper with its merged guard: TRUE
// unwraps, anything else updates or introduces the condition.
func applyGuard(wrapper, step *node.Node, guard *expr.Expression) {
	switch {
	case guard.IsTrue():
		if wrapper != step {
			wrapper.Replace(step)
		}
	case wrapper.Kind() == node.KindCondition:
		wrapper.SetExpression(guard)
	default:
		cond := node.NewCondition(guard)
		step.Replace(cond)
		cond.Append(step)
	}
}

// hashableNode is the canonical shape fed to the structural hash: ids and
// parent links are excluded so copies and originals hash alike.
type hashableNode struct {
	Kind     string
	Attrs    map[string]string
	Value    string
	Expr     string
	Children []hashableNode
}

func toHashable(n *node.Node) hashableNode {
	h := hashableNode{Kind: string(n.Kind()), Value: n.Value()}
	if len(n.AttrKeys()) > 0 {
		h.Attrs = map[string]string{}
		for _, k := range n.AttrKeys() {
			h.Attrs[k] = n.Attr(k)
		}
	}
	if e := n.Expression(); e != nil {
		h.Expr = e.Literal()
	}
	for _, c := range n.Children() {
		h.Children = append(h.Children, toHashable(c))
	}
	return h
}

// stepHash returns the canonical hash of a step subtree.
func stepHash(step *node.Node) (string, error) {
	sum, err := hashstructure.Hash(toHashable(step), nil)
	if err != nil {
		return "", fmt.Errorf("compiler: hash step %q: %w", step.Attr("name"), err)
	}
	return fmt.Sprintf("%016x", sum), nil
}
