package compiler

import (
	"github.com/oxhq/archc/internal/expr"
	"github.com/oxhq/archc/internal/model"
	"github.com/oxhq/archc/internal/node"
	"github.com/oxhq/archc/internal/scope"
	"github.com/oxhq/archc/internal/script"
	"github.com/oxhq/archc/internal/value"
)

// refsPass assigns monotonic ids in document order, normalizes condition
// references to absolute scope keys, prunes branches whose guard reduces to
// FALSE against declared values and the enclosing input path, and records
// per-key definition guards, value kinds and declarations for the later
// passes.
func (c *Compiler) refsPass() error {
	c.log.Debug("compile: resolving references")
	c.ctx = scope.NewContext(c.cwd)
	c.nextID = 0
	c.modifiedSteps = map[*node.Node]bool{}
	return c.refsNode(c.root, expr.True, map[string]value.Value{})
}

func (c *Compiler) refsChildren(n *node.Node, guard *expr.Expression, pins map[string]value.Value) error {
	for _, child := range n.Children() {
		if err := c.refsNode(child, guard, pins); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) refsNode(n *node.Node, guard *expr.Expression, pins map[string]value.Value) error {
	c.nextID++
	n.SetID(c.nextID)

	switch kind := n.Kind(); {
	case kind == node.KindCondition:
		return c.refsCondition(n, guard, pins)

	case kind.IsInput():
		return c.refsInput(n, guard, pins)

	case kind.IsVariable() || kind.IsPreset():
		c.registerDeclaration(n, guard)
		return c.refsChildren(n, guard, pins)

	case kind == node.KindStep:
		if err := c.refsChildren(n, guard, pins); err != nil {
			return err
		}
		c.spliceEmptiedStep(n)
		return nil

	default:
		return c.refsChildren(n, guard, pins)
	}
}

// refsCondition inlines the guard against known declarations; FALSE prunes
// the whole subtree, anything else narrows the guard for the children.
func (c *Compiler) refsCondition(n *node.Node, guard *expr.Expression, pins map[string]value.Value) error {
	e := n.Expression()
	if e == nil {
		e = expr.True
	}
	e = e.RewriteVars(c.resolveVar)
	inlined, err := e.Inline(c.declaredLookup(pins))
	if err != nil {
		c.diags.Add(model.ECExprEvalError, n.Location(), err.Error())
		inlined = e
	}
	if inlined.IsFalse() {
		if len(n.Collect(func(d *node.Node) bool { return d.Kind().IsInput() })) > 0 {
			c.markStepModified(n)
		}
		n.Remove()
		return nil
	}
	n.SetExpression(inlined)
	return c.refsChildren(n, guard.And(inlined), pins)
}

// refsInput registers the declaration, then descends with the value pin
// implied by each branch: a boolean's body sees it true, an enum option
// body sees the option's value.
func (c *Compiler) refsInput(n *node.Node, guard *expr.Expression, pins map[string]value.Value) error {
	name := n.Attr("name")
	key := c.ctx.Scope().ResolveKey(name)
	c.inputDecls[key] = append(c.inputDecls[key], n)
	if _, ok := c.valueKinds[key]; !ok {
		c.valueKinds[key] = n.Kind()
	}
	c.unionRef(key, guard)

	c.ctx.PushScope(name)
	err := c.refsInputBody(n, key, guard, pins)
	c.ctx.PopScope()
	if err != nil {
		return err
	}

	// A declared value can contradict the input's own guard, e.g. a
	// preset pinning an enum sibling that this input's path depends on.
	recheck, err := guard.Inline(c.declaredLookup(pins))
	if err == nil && recheck.IsFalse() {
		c.markStepModified(n)
		n.Remove()
	}
	return nil
}

func (c *Compiler) refsInputBody(n *node.Node, key string, guard *expr.Expression, pins map[string]value.Value) error {
	switch n.Kind() {
	case node.KindInputBoolean:
		childGuard := guard.And(expr.Var(key))
		childPins := withPin(pins, key, value.OfBool(true))
		return c.refsChildren(n, childGuard, childPins)

	case node.KindInputEnum, node.KindInputList:
		for _, child := range n.Children() {
			if child.Kind() != node.KindInputOption {
				if err := c.refsNode(child, guard, pins); err != nil {
					return err
				}
				continue
			}
			c.nextID++
			child.SetID(c.nextID)
			optValue := child.Attr("value")
			childGuard := guard
			childPins := pins
			if n.Kind() == node.KindInputEnum {
				childGuard = guard.And(expr.VarEq(key, value.OfString(optValue)))
				childPins = withPin(pins, key, value.OfString(optValue))
			} else {
				childGuard = guard.And(expr.VarContains(key, optValue))
			}
			if err := c.refsChildren(child, childGuard, childPins); err != nil {
				return err
			}
		}
		return nil

	default:
		return c.refsChildren(n, guard, pins)
	}
}

// registerDeclaration records a variable or preset into the scope tree and
// the refs map, keyed by its absolute path.
func (c *Compiler) registerDeclaration(n *node.Node, guard *expr.Expression) {
	path := n.Attr("path")
	if path == "" {
		path = n.Attr("name")
	}
	key := c.ctx.Scope().ResolveKey(path)
	kind := scope.KindDefault
	if n.Kind().IsPreset() {
		kind = scope.KindPreset
		c.presetDecls[n] = key
	}
	c.ctx.Root().Declare(key, kind, script.DeclaredValue(n))
	c.unionRef(key, guard)
	if _, ok := c.valueKinds[key]; !ok {
		c.valueKinds[key] = n.Kind()
	}
}

// unionRef widens the definition guard recorded for a key.
func (c *Compiler) unionRef(key string, guard *expr.Expression) {
	if existing, ok := c.refs[key]; ok {
		c.refs[key] = existing.Or(guard)
		return
	}
	c.refs[key] = guard
}

// markStepModified notes that the enclosing step lost content.
func (c *Compiler) markStepModified(n *node.Node) {
	step := n.Ancestor(func(a *node.Node) bool { return a.Kind() == node.KindStep })
	if step != nil {
		c.modifiedSteps[step] = true
	}
}

// spliceEmptiedStep lifts a modified step's remaining children into the
// parent once the step has no input left.
func (c *Compiler) spliceEmptiedStep(step *node.Node) {
	if !c.modifiedSteps[step] {
		return
	}
	inputs := step.Collect(func(n *node.Node) bool { return n.Kind().IsInput() })
	if len(inputs) > 0 {
		return
	}
	step.Replace(step.Children()...)
}

func withPin(pins map[string]value.Value, key string, v value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(pins)+1)
	for k, pv := range pins {
		out[k] = pv
	}
	out[key] = v
	return out
}
