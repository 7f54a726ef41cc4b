package compiler

import (
	"sort"

	"github.com/oxhq/archc/internal/expr"
	"github.com/oxhq/archc/internal/node"
	"github.com/oxhq/archc/internal/scope"
	"github.com/oxhq/archc/internal/value"
)

// inputVisitor renders presets, variables and inputs into the image tree.
// Inputs flatten to their dotted keys so scope key and scope identity
// coincide; every emitted node is wrapped by its guard relativized against
// the containing block's guard. Steps are created lazily per input and
// re-grouped afterwards so identical step signatures cluster before stub
// insertion.
type inputVisitor struct {
	c      *Compiler
	img    *Image
	mirror *Mirror
	flags  Flags
	ctx    *scope.Context

	presets   *node.Node
	variables *node.Node
	inputs    *node.Node

	curStep      *node.Node // current image step, nil between steps
	curStepGuard *expr.Expression
	curSrcStep   *node.Node
}

func newInputVisitor(c *Compiler, img *Image, mirror *Mirror, flags Flags) *inputVisitor {
	return &inputVisitor{c: c, img: img, mirror: mirror, flags: flags}
}

func (v *inputVisitor) run() error {
	v.ctx = scope.NewContext(v.c.cwd)
	if err := v.renderChildren(v.c.root, expr.True); err != nil {
		return err
	}
	v.regroupSteps()
	return nil
}

func (v *inputVisitor) renderChildren(n *node.Node, guard *expr.Expression) error {
	for _, child := range n.Children() {
		if err := v.renderNode(child, guard); err != nil {
			return err
		}
	}
	return nil
}

func (v *inputVisitor) renderNode(n *node.Node, guard *expr.Expression) error {
	switch kind := n.Kind(); {
	case kind == node.KindCondition:
		e := n.Expression()
		if e == nil {
			e = expr.True
		}
		return v.renderChildren(n, guard.And(e))

	case kind == node.KindStep:
		prevStep, prevSrc := v.curStep, v.curSrcStep
		v.curStep, v.curSrcStep = nil, n
		err := v.renderChildren(n, guard)
		v.curStep, v.curSrcStep = prevStep, prevSrc
		return err

	case kind.IsPreset():
		v.renderDeclaration(n, guard, v.presetsContainer())
		return nil

	case kind.IsVariable():
		if v.flags.Has(NoTransient) && n.Attr("transient") == "true" {
			return nil
		}
		v.renderDeclaration(n, guard, v.variablesContainer())
		return nil

	case kind.IsInput():
		return v.renderInput(n, guard)

	case kind == node.KindOutput:
		return nil

	default:
		return v.renderChildren(n, guard)
	}
}

// renderDeclaration emits a preset or variable copy with its path rewritten
// absolute into the given top-level container.
func (v *inputVisitor) renderDeclaration(n *node.Node, guard *expr.Expression, container *node.Node) {
	path := n.Attr("path")
	if path == "" {
		path = n.Attr("name")
	}
	key := v.ctx.Scope().ResolveKey(path)

	cp := n.Copy()
	cp.DelAttr("name")
	cp.SetAttr("path", "~"+key)
	for _, child := range n.Children() {
		cp.Append(child.DeepCopy())
	}
	v.mirror.Bind(n, cp)
	container.Append(cp.Wrap(guard))
}

// renderInput emits the flattened input into the current image step,
// creating the step lazily, then descends into the input's body with the
// branch pins added to the guard.
func (v *inputVisitor) renderInput(n *node.Node, guard *expr.Expression) error {
	name := n.Attr("name")
	key := v.ctx.Scope().ResolveKey(name)

	step, stepGuard := v.ensureStep(guard)

	cp := n.Copy()
	cp.SetAttr("name", key)
	for _, child := range n.Children() {
		if child.Kind() == node.KindInputOption {
			opt := child.Copy()
			v.mirror.Bind(child, opt)
			cp.Append(opt)
		}
	}
	v.mirror.Bind(n, cp)

	inputsContainer := step.FirstChild(func(c *node.Node) bool { return c.Kind() == node.KindInputs })
	inputsContainer.Append(cp.Wrap(guard.Relativize(stepGuard)))

	// Descend into the body with the value pin each branch implies.
	v.ctx.PushScope(name)
	defer v.ctx.PopScope()

	switch n.Kind() {
	case node.KindInputBoolean:
		return v.renderBody(n, guard.And(expr.Var(key)))

	case node.KindInputEnum, node.KindInputList:
		for _, child := range n.Children() {
			if child.Kind() != node.KindInputOption {
				if err := v.renderNode(child, guard); err != nil {
					return err
				}
				continue
			}
			optGuard := guard
			if n.Kind() == node.KindInputEnum {
				optGuard = guard.And(expr.VarEq(key, value.OfString(child.Attr("value"))))
			} else {
				optGuard = guard.And(expr.VarContains(key, child.Attr("value")))
			}
			if err := v.renderChildren(child, optGuard); err != nil {
				return err
			}
		}
		return nil

	default:
		return v.renderBody(n, guard)
	}
}

func (v *inputVisitor) renderBody(n *node.Node, guard *expr.Expression) error {
	for _, child := range n.Children() {
		if child.Kind() == node.KindInputOption {
			continue
		}
		if err := v.renderNode(child, guard); err != nil {
			return err
		}
	}
	return nil
}

// ensureStep returns the image step collecting inputs for the current
// source step and guard, creating it when the pair changed.
func (v *inputVisitor) ensureStep(guard *expr.Expression) (*node.Node, *expr.Expression) {
	if v.curStep != nil && v.curStepGuard.Equal(guard) {
		return v.curStep, v.curStepGuard
	}
	step := node.New(node.KindStep)
	if v.curSrcStep != nil {
		for _, k := range v.curSrcStep.AttrKeys() {
			step.SetAttr(k, v.curSrcStep.Attr(k))
		}
		v.mirror.Bind(v.curSrcStep, step)
	}
	step.Append(node.New(node.KindInputs))
	v.inputsContainer().Append(step.Wrap(guard))
	v.curStep, v.curStepGuard = step, guard
	return step, guard
}

func (v *inputVisitor) presetsContainer() *node.Node {
	if v.presets == nil {
		v.presets = v.img.Root.Insert(0, node.New(node.KindPresets))
	}
	return v.presets
}

func (v *inputVisitor) variablesContainer() *node.Node {
	if v.variables == nil {
		idx := 0
		if v.presets != nil {
			idx = v.presets.Index() + 1
		}
		v.variables = v.img.Root.Insert(idx, node.New(node.KindVariables))
	}
	return v.variables
}

func (v *inputVisitor) inputsContainer() *node.Node {
	if v.inputs == nil {
		v.inputs = v.img.Root.Append(node.New(node.KindInputs))
	}
	return v.inputs
}

// regroupSteps clusters rendered steps by their first input's dotted key,
// then by step name, ordering groups by the largest mirrored source id so
// source order is preserved between unrelated groups.
func (v *inputVisitor) regroupSteps() {
	if v.inputs == nil {
		return
	}
	type entry struct {
		wrapper *node.Node
		step    *node.Node
		key     string
		name    string
		maxID   int
	}
	var entries []entry
	for _, wrapper := range v.inputs.Children() {
		step := wrapper.Unwrap()
		if step.Kind() != node.KindStep {
			continue
		}
		first := step.FirstChild(func(c *node.Node) bool { return c.Kind() == node.KindInputs })
		key := ""
		if first != nil {
			if in := first.FirstChild(func(c *node.Node) bool { return c.Unwrap().Kind().IsInput() }); in != nil {
				key = in.Unwrap().Attr("name")
			}
		}
		entries = append(entries, entry{
			wrapper: wrapper,
			step:    step,
			key:     key,
			name:    step.Attr("name"),
			maxID:   v.mirror.MaxSourceID(step),
		})
	}

	type group struct {
		key   string
		name  string
		maxID int
		items []entry
	}
	index := map[string]*group{}
	var groups []*group
	for _, e := range entries {
		gk := e.key + "\x00" + e.name
		g, ok := index[gk]
		if !ok {
			g = &group{key: e.key, name: e.name}
			index[gk] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, e)
		if e.maxID > g.maxID {
			g.maxID = e.maxID
		}
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].maxID < groups[j].maxID })

	for _, e := range entries {
		e.wrapper.Remove()
	}
	for _, g := range groups {
		for _, e := range g.items {
			v.inputs.Append(e.wrapper)
		}
	}
}
