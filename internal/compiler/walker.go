package compiler

import (
	"github.com/oxhq/archc/internal/expr"
	"github.com/oxhq/archc/internal/node"
	"github.com/oxhq/archc/internal/scope"
	"github.com/oxhq/archc/internal/value"
)

// guardedFn observes one node together with its effective guard and the
// walking scope context. Returning descend=false skips the node's children.
type guardedFn func(n *node.Node, guard *expr.Expression, ctx *scope.Context) (descend bool, err error)

// walkGuarded traverses the tree in document order, threading the guard:
// conditions contribute their expression, input bodies contribute the value
// pin of the branch being walked (a boolean's body sees ${key}, an enum
// option's body sees ${key} == 'value'). The scope context tracks dotted
// keys exactly as the refs pass and the invoker do.
func walkGuarded(root *node.Node, cwd string, fn guardedFn) error {
	ctx := scope.NewContext(cwd)
	var walk func(n *node.Node, guard *expr.Expression) error
	walk = func(n *node.Node, guard *expr.Expression) error {
		descend, err := fn(n, guard, ctx)
		if err != nil {
			return err
		}
		if !descend {
			return nil
		}
		switch kind := n.Kind(); {
		case kind == node.KindCondition:
			e := n.Expression()
			if e == nil {
				e = expr.True
			}
			guard = guard.And(e)

		case kind.IsInput():
			name := n.Attr("name")
			key := ctx.Scope().ResolveKey(name)
			ctx.PushScope(name)
			defer ctx.PopScope()
			switch kind {
			case node.KindInputBoolean:
				guard = guard.And(expr.Var(key))
			case node.KindInputEnum, node.KindInputList:
				for _, child := range n.Children() {
					childGuard := guard
					if child.Kind() == node.KindInputOption {
						if kind == node.KindInputEnum {
							childGuard = guard.And(expr.VarEq(key, value.OfString(child.Attr("value"))))
						} else {
							childGuard = guard.And(expr.VarContains(key, child.Attr("value")))
						}
					}
					if err := walk(child, childGuard); err != nil {
						return err
					}
				}
				return nil
			}
		}
		for _, child := range n.Children() {
			if err := walk(child, guard); err != nil {
				return err
			}
		}
		return nil
	}
	for _, child := range root.Children() {
		if err := walk(child, expr.True); err != nil {
			return err
		}
	}
	return nil
}
