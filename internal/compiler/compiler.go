// Package compiler turns a parsed archetype script tree into a canonical,
// validated, de-duplicated image: call sites inlined, dead branches pruned,
// inputs flattened, outputs materialized into content-addressed blobs,
// variable stubs inserted, and semantically identical steps merged.
package compiler

import (
	"io/fs"
	"os"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/oxhq/archc/internal/blob"
	"github.com/oxhq/archc/internal/expr"
	"github.com/oxhq/archc/internal/model"
	"github.com/oxhq/archc/internal/node"
	"github.com/oxhq/archc/internal/scope"
	"github.com/oxhq/archc/internal/script"
	"github.com/oxhq/archc/internal/value"
)

// Flags select which phases of a compile run.
type Flags uint8

const (
	// ValidateOnly stops after validation; no image is built.
	ValidateOnly Flags = 1 << iota

	// SkipValidation builds the image without running the validator.
	SkipValidation

	// IgnoreErrors builds the image even when validation found problems.
	IgnoreErrors

	// NoOutput skips rendering of the output subtree and blobs.
	NoOutput

	// NoTransient drops variables marked transient from the image.
	NoTransient
)

// Has reports whether the flag is set.
func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLoader installs the script loader used to inline source, exec and
// call sites.
func WithLoader(l script.Loader) Option {
	return func(c *Compiler) { c.loader = l }
}

// WithLogger installs the log entry used for pass instrumentation.
func WithLogger(e *logrus.Entry) Option {
	return func(c *Compiler) { c.log = e }
}

// WithFS overrides the filesystem output directives read from. Paths are
// resolved against the compiler's working directory and looked up relative
// to this filesystem's root.
func WithFS(fsys fs.FS) Option {
	return func(c *Compiler) { c.fsys = fsys }
}

// WithVariationProgress overrides the combination count at which the
// variation merger starts reporting per-table progress.
func WithVariationProgress(n int) Option {
	return func(c *Compiler) { c.varProgress = n }
}

// Compiler owns the source tree, the scope tree and the mirror for the
// duration of one compilation. It is single-threaded; only the init phase
// is guarded so repeated Compile calls share one initialization.
type Compiler struct {
	log    *logrus.Entry
	loader script.Loader
	fsys   fs.FS
	root   *node.Node
	cwd    string

	initialized atomic.Bool
	initDone    chan struct{}
	initErr     error

	ctx         *scope.Context
	nextID      int
	varProgress int

	// Populated by the refs pass.
	refs          map[string]*expr.Expression // key -> OR of guards where declared
	valueKinds    map[string]node.Kind        // key -> declaring node kind
	inputDecls    map[string][]*node.Node     // key -> input declarations
	cwds          map[*node.Node]string       // output directives -> recorded cwd
	modifiedSteps map[*node.Node]bool         // steps that lost inputs to pruning
	presetDecls   map[*node.Node]string       // preset nodes -> absolute key

	diags *model.Diagnostics
}

// New returns a compiler over the parsed script tree, with directive paths
// resolved against cwd.
func New(root *node.Node, cwd string, opts ...Option) *Compiler {
	c := &Compiler{
		log:         logrus.NewEntry(logrus.StandardLogger()),
		fsys:        os.DirFS("/"),
		root:        root,
		cwd:         cwd,
		initDone:    make(chan struct{}),
		refs:        map[string]*expr.Expression{},
		valueKinds:  map[string]node.Kind{},
		inputDecls:  map[string][]*node.Node{},
		cwds:        map[*node.Node]string{},
		presetDecls: map[*node.Node]string{},
		diags:       model.NewDiagnostics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root exposes the (initialized, mutated) source tree. Mainly for tests
// and the variation enumerator.
func (c *Compiler) Root() *node.Node {
	return c.root
}

// Errors returns the diagnostics accumulated so far.
func (c *Compiler) Errors() []model.Diagnostic {
	return c.diags.Items()
}

// init runs the inline and refs passes exactly once per compiler; later
// callers observe the first run's outcome.
func (c *Compiler) init() error {
	if !c.initialized.CompareAndSwap(false, true) {
		<-c.initDone
		return c.initErr
	}
	defer close(c.initDone)
	if err := c.inlinePass(); err != nil {
		c.initErr = err
		return err
	}
	c.initErr = c.refsPass()
	return c.initErr
}

// Compile drives the pipeline: init, validate, then image construction
// with output rendering, stub insertion and step deduplication.
func (c *Compiler) Compile(flags Flags) (*Image, error) {
	if err := c.init(); err != nil {
		return nil, err
	}

	if !flags.Has(SkipValidation) {
		c.log.Debug("compile: validating")
		c.validate()
		if err := c.diags.Err(); err != nil && !flags.Has(IgnoreErrors) {
			return nil, err
		}
	}
	if flags.Has(ValidateOnly) {
		return nil, nil
	}

	c.log.Debug("compile: rendering inputs")
	img := &Image{Root: node.New(node.KindScript), Blobs: blob.NewStore()}
	mirror := NewMirror()
	iv := newInputVisitor(c, img, mirror, flags)
	if err := iv.run(); err != nil {
		return nil, err
	}

	if !flags.Has(NoOutput) {
		c.log.Debug("compile: rendering outputs")
		ov := newOutputVisitor(c, img)
		if err := ov.run(); err != nil {
			return nil, err
		}
	}

	c.log.Debug("compile: inserting stubs")
	if err := newStubsVisitor(c, img).run(); err != nil {
		return nil, err
	}

	c.log.Debug("compile: deduplicating steps")
	if err := newDedupVisitor(img).run(); err != nil {
		return nil, err
	}
	return img, nil
}

// declaredLookup resolves absolute keys against preset/variable
// declarations and the value pins of the enclosing input path; it backs
// condition inlining during the refs pass. A declaration is only usable
// for inlining when its definition guard is unconditional: a value
// declared under a guard is not a known value on other paths.
func (c *Compiler) declaredLookup(pins map[string]value.Value) expr.Lookup {
	return func(name string) (value.Value, bool) {
		if v, ok := pins[name]; ok {
			return v, true
		}
		if guard, ok := c.refs[name]; !ok || !guard.IsTrue() {
			return value.Empty, false
		}
		if sv := c.ctx.Root().Value(name); sv != nil {
			return sv.Value, true
		}
		return value.Empty, false
	}
}

// resolveVar normalizes a raw reference to its absolute scope key. A key
// already known relative to the current scope wins; otherwise references
// read as root-anchored.
func (c *Compiler) resolveVar(name string) string {
	rooted := scope.Normalize(strings.TrimPrefix(name, "~"))
	if strings.HasPrefix(name, "~") {
		return rooted
	}
	resolved := c.ctx.Scope().ResolveKey(name)
	if c.known(resolved) {
		return resolved
	}
	return rooted
}

func (c *Compiler) known(key string) bool {
	if _, ok := c.refs[key]; ok {
		return true
	}
	if _, ok := c.valueKinds[key]; ok {
		return true
	}
	return c.ctx.Root().Value(key) != nil
}
