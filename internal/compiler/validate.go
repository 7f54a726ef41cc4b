package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oxhq/archc/internal/expr"
	"github.com/oxhq/archc/internal/model"
	"github.com/oxhq/archc/internal/node"
	"github.com/oxhq/archc/internal/value"
)

// validate runs every rule over the initialized source tree, accumulating
// one diagnostic per finding.
func (c *Compiler) validate() {
	c.validatePresets()
	c.validateInputTypes()
	c.validateExpressions()
	c.validateOptions()
	c.validateInputs()
	c.validateSteps()
}

// condOperators are the only operators allowed on condition guards.
var condOperators = map[expr.Operator]bool{
	expr.OpAnd:      true,
	expr.OpOr:       true,
	expr.OpNot:      true,
	expr.OpEq:       true,
	expr.OpNe:       true,
	expr.OpContains: true,
}

// sortedPresetDecls returns the preset declarations in document order.
func (c *Compiler) sortedPresetDecls() []*node.Node {
	decls := make([]*node.Node, 0, len(c.presetDecls))
	for n := range c.presetDecls {
		decls = append(decls, n)
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].ID() < decls[j].ID() })
	return decls
}

// sortedInputKeys returns the declared input keys in first-declaration
// order, so diagnostics come out deterministically.
func (c *Compiler) sortedInputKeys() []string {
	keys := make([]string, 0, len(c.inputDecls))
	for k := range c.inputDecls {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.inputDecls[keys[i]][0].ID() < c.inputDecls[keys[j]][0].ID()
	})
	return keys
}

func (c *Compiler) validatePresets() {
	for _, n := range c.sortedPresetDecls() {
		key := c.presetDecls[n]
		decls := c.inputDecls[key]
		if len(decls) == 0 {
			c.diags.Add(model.ECPresetUnresolved, n.Location(),
				fmt.Sprintf("preset %q resolves to no input", key))
			continue
		}
		want := kindSuffix(n.Kind())
		for _, input := range decls {
			if kindSuffix(input.Kind()) != want {
				c.diags.Add(model.ECPresetTypeMismatch, n.Location(),
					fmt.Sprintf("preset %q is %s but input is %s", key, n.Kind(), input.Kind()))
				break
			}
		}
	}
}

func (c *Compiler) validateInputTypes() {
	for _, key := range c.sortedInputKeys() {
		decls := c.inputDecls[key]
		first := decls[0].Kind()
		for _, d := range decls[1:] {
			if d.Kind() != first {
				c.diags.Add(model.ECInputTypeMismatch, d.Location(),
					fmt.Sprintf("input %q redeclared as %s, first declared as %s", key, d.Kind(), first))
			}
		}
	}
}

func (c *Compiler) validateExpressions() {
	conditions := c.root.Collect(func(n *node.Node) bool { return n.Kind() == node.KindCondition })
	for _, cond := range conditions {
		e := cond.Expression()
		if e == nil {
			continue
		}
		for _, tok := range e.Tokens() {
			if tok.Kind == expr.TokenOperator && !condOperators[tok.Op] {
				c.diags.Add(model.ECExprIncompatibleOp, cond.Location(),
					fmt.Sprintf("operator %q is not allowed on conditions", tok.Op.Symbol()))
			}
		}
		for _, name := range e.Variables() {
			if !c.resolvable(name) {
				c.diags.Add(model.ECExprUnresolvedVariable, cond.Location(),
					fmt.Sprintf("variable %q resolves to no declaration", name))
			}
		}
		// A structural dry run with typed empties flushes out operand
		// type clashes that inlining left symbolic.
		if _, err := e.Eval(c.typedEmptyLookup()); err != nil {
			if evalErr, ok := err.(*expr.EvalError); ok {
				c.diags.Add(model.ECExprEvalError, cond.Location(), evalErr.Error())
			}
		}
	}
}

func (c *Compiler) resolvable(name string) bool {
	if _, ok := c.refs[name]; ok {
		return true
	}
	if _, ok := c.valueKinds[name]; ok {
		return true
	}
	return c.ctx.Root().Value(name) != nil
}

// typedEmptyLookup serves the typed empty value of each known key, so
// evaluation exercises operator compatibility without concrete values.
func (c *Compiler) typedEmptyLookup() expr.Lookup {
	return func(name string) (value.Value, bool) {
		if k, ok := c.valueKinds[name]; ok {
			return value.Typed(valueKindOf(k)), true
		}
		if sv := c.ctx.Root().Value(name); sv != nil {
			return value.Typed(sv.Value.Kind()), true
		}
		return value.Empty, false
	}
}

func (c *Compiler) validateOptions() {
	for _, key := range c.sortedInputKeys() {
		for _, input := range c.inputDecls[key] {
			seen := map[string]bool{}
			for _, opt := range input.Children() {
				if opt.Kind() != node.KindInputOption {
					continue
				}
				val := strings.ToLower(opt.Attr("value"))
				if seen[val] {
					c.diags.Add(model.ECOptionValueDeclared, opt.Location(),
						fmt.Sprintf("option %q declared twice in input %q", opt.Attr("value"), key))
				}
				seen[val] = true
			}
		}
	}
}

func (c *Compiler) validateInputs() {
	for _, key := range c.sortedInputKeys() {
		decls := c.inputDecls[key]
		for _, input := range decls {
			optional := input.Attr("optional") == "true"
			switch input.Kind() {
			case node.KindInputEnum, node.KindInputText:
				if optional && !input.HasAttr("default") {
					c.diags.Add(model.ECInputOptionalNoDefault, input.Location(),
						fmt.Sprintf("optional input %q has no default", key))
				}
			}
			if input.Ancestor(isStep) == nil {
				c.diags.Add(model.ECInputNotInStep, input.Location(),
					fmt.Sprintf("input %q is not nested within a step", key))
			}
		}
		for i := 1; i < len(decls); i++ {
			if !enumAlternatives(decls[0], decls[i]) {
				c.diags.Add(model.ECInputAlreadyDeclared, decls[i].Location(),
					fmt.Sprintf("input %q already declared", key))
			}
		}
	}
}

// enumAlternatives reports whether two declarations of the same key sit on
// mutually exclusive branches: their nearest common ancestor is an enum
// input.
func enumAlternatives(a, b *node.Node) bool {
	ancestors := map[*node.Node]bool{}
	for p := a.Parent(); p != nil; p = p.Parent() {
		ancestors[p] = true
	}
	for p := b.Parent(); p != nil; p = p.Parent() {
		if ancestors[p] {
			return p.Kind() == node.KindInputEnum
		}
	}
	return false
}

func (c *Compiler) validateSteps() {
	steps := c.root.Collect(isStep)
	for _, step := range steps {
		inputs := step.Collect(func(n *node.Node) bool { return n.Kind().IsInput() })
		if len(inputs) == 0 {
			c.diags.Add(model.ECStepNoInput, step.Location(), "step declares no input")
			continue
		}
		optional := step.Attr("optional") == "true"
		allOptional := true
		for _, in := range inputs {
			if in.Attr("optional") != "true" {
				allOptional = false
				break
			}
		}
		if optional && !allOptional {
			c.diags.Add(model.ECStepDeclaredOptional, step.Location(),
				"optional step contains a non-optional input")
		}
		if !optional && allOptional {
			c.diags.Add(model.ECStepNotDeclaredOptional, step.Location(),
				"step with only optional inputs must be declared optional")
		}
	}
}

func isStep(n *node.Node) bool {
	return n.Kind() == node.KindStep
}

// kindSuffix maps a declaration kind to its value-type suffix, shared by
// inputs, variables and presets.
func kindSuffix(k node.Kind) string {
	s := string(k)
	if i := strings.LastIndexByte(s, '-'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// valueKindOf maps a declaration kind to the value kind it produces.
func valueKindOf(k node.Kind) value.Kind {
	switch kindSuffix(k) {
	case "boolean":
		return value.KindBoolean
	case "list":
		return value.KindList
	default:
		return value.KindString
	}
}
