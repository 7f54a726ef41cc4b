package script

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/oxhq/archc/internal/expr"
	"github.com/oxhq/archc/internal/node"
	"github.com/oxhq/archc/internal/scope"
	"github.com/oxhq/archc/internal/value"
)

// Invoker interprets a script tree depth-first: conditions gate descent,
// source/exec splice referenced scripts, calls expand methods, inputs pull
// values from the resolver into the scope tree. The same interpreter runs
// during compilation passes and during variation normalization.
type Invoker struct {
	ctx      *scope.Context
	resolver Resolver
	loader   Loader
}

// NewInvoker returns an invoker over the context. resolver may be nil when
// the executed tree declares no inputs; loader may be nil when the tree was
// already inlined.
func NewInvoker(ctx *scope.Context, resolver Resolver, loader Loader) *Invoker {
	return &Invoker{ctx: ctx, resolver: resolver, loader: loader}
}

// Context returns the execution context.
func (iv *Invoker) Context() *scope.Context {
	return iv.ctx
}

// Invoke executes the children of the given root.
func (iv *Invoker) Invoke(root *node.Node) error {
	return iv.invokeChildren(root)
}

func (iv *Invoker) invokeChildren(n *node.Node) error {
	for _, c := range n.Children() {
		if err := iv.invoke(c); err != nil {
			return err
		}
	}
	return nil
}

func (iv *Invoker) invoke(n *node.Node) error {
	switch kind := n.Kind(); {
	case kind == node.KindCondition:
		ok, err := iv.EvalCondition(n.Expression())
		if err != nil {
			return err
		}
		if ok {
			return iv.invokeChildren(n)
		}
		return nil

	case kind == node.KindSource || kind == node.KindExec:
		return iv.invokeSource(n)

	case kind == node.KindCall:
		return iv.invokeCall(n)

	case kind == node.KindMethods || kind == node.KindOutput:
		// Method declarations run only through calls; output
		// materialization is not part of script execution. Inlined
		// method bodies sit outside methods containers and execute as
		// plain blocks.
		return nil

	case kind.IsInput():
		return iv.invokeInput(n)

	case kind.IsVariable():
		iv.declare(n, scope.KindDefault)
		return nil

	case kind.IsPreset():
		iv.declare(n, scope.KindPreset)
		return nil

	default:
		return iv.invokeChildren(n)
	}
}

// EvalCondition evaluates a guard against the declared values in scope.
func (iv *Invoker) EvalCondition(e *expr.Expression) (bool, error) {
	if e == nil {
		return true, nil
	}
	return e.Eval(func(name string) (value.Value, bool) {
		if sv := iv.ctx.Value(name); sv != nil {
			return sv.Value, true
		}
		return value.Empty, false
	})
}

func (iv *Invoker) invokeSource(n *node.Node) error {
	src := n.Attr("src")
	if src == "" {
		src = n.Attr("url")
	}
	if src == "" || IsURL(src) {
		return nil
	}
	if iv.loader == nil {
		return fmt.Errorf("script: no loader for %s %q", n.Kind(), src)
	}
	path := src
	if !filepath.IsAbs(path) {
		path = filepath.Join(iv.ctx.Cwd(), path)
	}
	loaded, err := iv.loader.Load(path, true)
	if err != nil {
		return err
	}
	if n.Kind() == node.KindExec {
		iv.ctx.PushCwd(filepath.Dir(path))
		defer iv.ctx.PopCwd()
	}
	return iv.invokeChildren(loaded)
}

func (iv *Invoker) invokeCall(n *node.Node) error {
	name := n.Attr("method")
	root := n
	for root.Parent() != nil {
		root = root.Parent()
	}
	method := FindMethod(root, name)
	if method == nil {
		return fmt.Errorf("script: method %q not found", name)
	}
	return iv.invokeChildren(method.DeepCopy())
}

func (iv *Invoker) invokeInput(n *node.Node) error {
	name := n.Attr("name")
	key := iv.ctx.Scope().ResolveKey(name)

	var v value.Value
	kind := scope.KindUser
	var quals []scope.Qualifier
	if iv.resolver != nil {
		resolved, err := iv.resolver.Resolve(n, key)
		if err != nil {
			return err
		}
		v = resolved
		if ex, ok := iv.resolver.(interface{ Explicit(string) bool }); ok && !ex.Explicit(key) {
			kind = scope.KindDefault
			quals = append(quals, scope.AutoCreated)
		}
	} else if def, ok := InputDefault(n); ok {
		v = def
		kind = scope.KindDefault
		quals = append(quals, scope.AutoCreated)
	} else {
		return fmt.Errorf("%w: no value for %s", ErrInvalidInput, key)
	}
	iv.ctx.Scope().Declare(name, kind, v, quals...)

	iv.ctx.PushScope(name)
	defer iv.ctx.PopScope()

	switch n.Kind() {
	case node.KindInputBoolean:
		b, err := v.AsBool()
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidInput, key, err)
		}
		if b {
			return iv.invokeChildren(n)
		}
		return nil

	case node.KindInputEnum:
		s, err := v.AsString()
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidInput, key, err)
		}
		opt := optionFor(n, s)
		if opt == nil {
			return fmt.Errorf("%w: %s has no option %q", ErrInvalidInput, key, s)
		}
		return iv.invokeOption(opt)

	case node.KindInputList:
		items, err := v.AsList()
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidInput, key, err)
		}
		selected := map[string]bool{}
		for _, item := range items {
			selected[strings.ToLower(item)] = true
		}
		for _, opt := range n.ChildrenOf(isOption) {
			if selected[strings.ToLower(opt.Attr("value"))] {
				if err := iv.invokeOption(opt); err != nil {
					return err
				}
			}
		}
		return nil

	default:
		return iv.invokeChildren(n)
	}
}

// invokeOption descends into an option body. Options re-enter the owning
// input's scope so nested declarations across sibling options share keys.
func (iv *Invoker) invokeOption(opt *node.Node) error {
	iv.ctx.PushScopeAt(iv.ctx.Scope())
	defer iv.ctx.PopScope()
	return iv.invokeChildren(opt)
}

func isOption(n *node.Node) bool {
	return n.Kind() == node.KindInputOption
}

func optionFor(input *node.Node, val string) *node.Node {
	return input.FirstChild(func(c *node.Node) bool {
		return c.Kind() == node.KindInputOption && strings.EqualFold(c.Attr("value"), val)
	})
}

// declare records a variable or preset declaration in the scope tree.
// Declarations parent at the root when their path is "~"-anchored, which
// keeps flattened scope keys identical to scope identity.
func (iv *Invoker) declare(n *node.Node, kind scope.ValueKind) {
	path := n.Attr("path")
	if path == "" {
		path = n.Attr("name")
	}
	key := iv.ctx.Scope().ResolveKey(path)
	iv.ctx.Root().Declare(key, kind, DeclaredValue(n))
}

// DeclaredValue extracts the typed value of a variable or preset node.
func DeclaredValue(n *node.Node) value.Value {
	raw := n.Attr("value")
	if !n.HasAttr("value") && n.HasValue() {
		raw = n.Value()
	}
	switch n.Kind() {
	case node.KindVariableBoolean, node.KindPresetBoolean:
		b, err := value.Dynamic(raw).AsBool()
		if err != nil {
			return value.Dynamic(raw)
		}
		return value.OfBool(b)
	case node.KindVariableList, node.KindPresetList:
		if items := n.ChildrenOf(func(c *node.Node) bool { return c.Kind() == node.KindModelValue }); len(items) > 0 {
			vals := make([]string, len(items))
			for i, item := range items {
				vals[i] = item.Value()
			}
			return value.OfList(vals)
		}
		l, _ := value.Dynamic(raw).AsList()
		return value.OfList(l)
	default:
		return value.OfString(raw)
	}
}
