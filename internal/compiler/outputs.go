package compiler

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oxhq/archc/internal/expr"
	"github.com/oxhq/archc/internal/model"
	"github.com/oxhq/archc/internal/node"
	"github.com/oxhq/archc/internal/render"
	"github.com/oxhq/archc/internal/scope"
)

// transformationVariant is one guarded definition of a transformation id;
// the same id declared under several guards yields several variants.
type transformationVariant struct {
	ops   []render.FileOp
	guard *expr.Expression
}

// outputVisitor materializes file, template and directory directives into
// content-addressed blobs with folded transformation chains, then renders
// the image's output subtree deterministically.
type outputVisitor struct {
	c   *Compiler
	img *Image

	transformations map[string][]transformationVariant
	files           []render.FileObject
	models          []*node.Node // guarded model copies, in document order
}

func newOutputVisitor(c *Compiler, img *Image) *outputVisitor {
	return &outputVisitor{
		c:               c,
		img:             img,
		transformations: map[string][]transformationVariant{},
	}
}

func (v *outputVisitor) run() error {
	err := walkGuarded(v.c.root, v.c.cwd, func(n *node.Node, guard *expr.Expression, ctx *scope.Context) (bool, error) {
		switch n.Kind() {
		case node.KindTransformation:
			v.collectTransformation(n, guard)
			return false, nil
		case node.KindFile, node.KindTemplate:
			return false, v.renderFile(n, guard)
		case node.KindFiles, node.KindTemplates:
			return false, v.renderDirectory(n, guard)
		case node.KindModel:
			v.collectModel(n, guard)
			return false, nil
		default:
			return true, nil
		}
	})
	if err != nil {
		return err
	}
	v.emit()
	return nil
}

func (v *outputVisitor) collectTransformation(n *node.Node, guard *expr.Expression) {
	var ops []render.FileOp
	for _, child := range n.Children() {
		if child.Kind() == node.KindReplace {
			ops = append(ops, render.FileOp{
				Regex:       child.Attr("regex"),
				Replacement: child.Attr("replacement"),
			})
		}
	}
	id := n.Attr("id")
	v.transformations[id] = append(v.transformations[id], transformationVariant{ops: ops, guard: guard})
}

// directiveCwd returns the working directory recorded for the directive
// during the inline pass.
func (v *outputVisitor) directiveCwd(n *node.Node) string {
	if cwd, ok := v.c.cwds[n]; ok {
		return cwd
	}
	return v.c.cwd
}

// fsPath maps an absolute or cwd-relative path onto the compiler's
// filesystem.
func fsPath(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "/")
}

// renderFile materializes a single file or template directive.
func (v *outputVisitor) renderFile(n *node.Node, guard *expr.Expression) error {
	source := n.Attr("source")
	target := n.Attr("target")
	if target == "" {
		target = source
	}
	path := filepath.Join(v.directiveCwd(n), source)
	data, err := fs.ReadFile(v.c.fsys, fsPath(path))
	if err != nil {
		return model.ErrIO.New(fmt.Sprintf("read %s: %v", path, err))
	}
	checksum := v.img.Blobs.Put(data)

	variants, err := v.variantsFor(n, guard)
	if err != nil {
		return err
	}
	for _, variant := range variants {
		folded, err := render.Fold(checksum, target, variant.ops)
		if err != nil {
			return err
		}
		v.files = append(v.files, render.FileObject{
			Checksum:   checksum,
			Ops:        folded,
			Expression: variant.guard,
			Template:   n.Kind() == node.KindTemplate,
		})
	}
	return nil
}

// renderDirectory scans a files/templates directory through the include and
// exclude predicates, materializing every match under each applicable
// transformation variant.
func (v *outputVisitor) renderDirectory(n *node.Node, guard *expr.Expression) error {
	dir := filepath.Join(v.directiveCwd(n), n.Attr("directory"))
	preds := render.Predicates{}
	for _, child := range n.Children() {
		switch child.Kind() {
		case node.KindInclude:
			preds.Includes = append(preds.Includes, render.SplitPatterns(child.Value())...)
		case node.KindExclude:
			preds.Excludes = append(preds.Excludes, render.SplitPatterns(child.Value())...)
		}
	}
	paths, err := render.Scan(v.c.fsys, fsPath(dir), preds)
	if err != nil {
		return err
	}

	variants, err := v.variantsFor(n, guard)
	if err != nil {
		return err
	}
	template := n.Kind() == node.KindTemplates
	for _, rel := range paths {
		data, err := fs.ReadFile(v.c.fsys, fsPath(filepath.Join(dir, rel)))
		if err != nil {
			return model.ErrIO.New(fmt.Sprintf("read %s: %v", rel, err))
		}
		checksum := v.img.Blobs.Put(data)
		for _, variant := range variants {
			folded, err := render.Fold(checksum, rel, variant.ops)
			if err != nil {
				return err
			}
			v.files = append(v.files, render.FileObject{
				Checksum:   checksum,
				Ops:        folded,
				Expression: variant.guard,
				Template:   template,
			})
		}
	}
	return nil
}

// variantsFor expands the directive's transformations attribute into the
// Cartesian product of every referenced id's guarded variants, each product
// ANDed with the directive's own guard.
func (v *outputVisitor) variantsFor(n *node.Node, guard *expr.Expression) ([]transformationVariant, error) {
	ids := render.SplitPatterns(n.Attr("transformations"))
	variants := []transformationVariant{{guard: guard}}
	for _, id := range ids {
		defs, ok := v.transformations[id]
		if !ok {
			return nil, model.ErrIO.New(fmt.Sprintf("transformation %q referenced by %s is not declared", id, n.Location()))
		}
		var next []transformationVariant
		for _, base := range variants {
			for _, def := range defs {
				combined := base.guard.And(def.guard)
				if combined.IsFalse() {
					continue
				}
				ops := make([]render.FileOp, 0, len(base.ops)+len(def.ops))
				ops = append(ops, base.ops...)
				ops = append(ops, def.ops...)
				next = append(next, transformationVariant{ops: ops, guard: combined})
			}
		}
		variants = next
	}
	return variants, nil
}

func (v *outputVisitor) collectModel(n *node.Node, guard *expr.Expression) {
	cp := n.DeepCopy()
	cp.Traverse(func(mn *node.Node) {
		if mn.Kind() == node.KindModelValue && mn.HasValue() && strings.ContainsAny(mn.Value(), " \t\n") {
			id := v.img.Blobs.Put([]byte(mn.Value()))
			mn.SetAttr("file", "blobs/"+id)
			mn.SetValue("")
		}
	})
	v.models = append(v.models, cp.Wrap(guard))
}

// emit renders the output subtree: transformation declarations first, then
// the grouped file lists, then the model.
func (v *outputVisitor) emit() {
	if len(v.files) == 0 && len(v.models) == 0 {
		return
	}
	output := v.img.Root.Append(node.New(node.KindOutput))

	merged := mergeFileObjects(v.files)

	// Distinct folded op chains become the emitted transformations.
	type opsGroup struct {
		key      string
		ops      []render.FileOp
		template bool
		id       string
	}
	index := map[string]*opsGroup{}
	var opsGroups []*opsGroup
	for _, f := range merged {
		key := render.OpsKey(f.Ops, f.Template)
		if _, ok := index[key]; !ok {
			g := &opsGroup{key: key, ops: f.Ops, template: f.Template}
			index[key] = g
			opsGroups = append(opsGroups, g)
		}
	}
	sort.Slice(opsGroups, func(i, j int) bool {
		if c := render.CompareOps(opsGroups[i].ops, opsGroups[j].ops); c != 0 {
			return c < 0
		}
		return !opsGroups[i].template && opsGroups[j].template
	})
	for i, g := range opsGroups {
		g.id = fmt.Sprintf("t%d", i+1)
		tr := node.New(node.KindTransformation).SetAttr("id", g.id)
		for _, op := range g.ops {
			tr.Append(node.New(node.KindReplace).
				SetAttr("regex", op.Regex).
				SetAttr("replacement", op.Replacement))
		}
		output.Append(tr)
	}

	// File groups: one files/templates element per (ops, guard) pair.
	type fileGroup struct {
		rep   render.FileObject
		id    string
		blobs []string
	}
	groupIndex := map[string]*fileGroup{}
	var groups []*fileGroup
	for _, f := range merged {
		gk := render.OpsKey(f.Ops, f.Template) + "|" + f.Expression.Literal()
		g, ok := groupIndex[gk]
		if !ok {
			g = &fileGroup{rep: f, id: index[render.OpsKey(f.Ops, f.Template)].id}
			groupIndex[gk] = g
			groups = append(groups, g)
		}
		g.blobs = append(g.blobs, f.Checksum)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].rep.Compare(groups[j].rep) < 0 })

	for _, g := range groups {
		kind := node.KindFiles
		if g.rep.Template {
			kind = node.KindTemplates
		}
		files := node.New(kind).SetAttr("transformations", g.id)
		sort.Strings(g.blobs)
		for _, id := range g.blobs {
			files.Append(node.New(node.KindInclude).SetValue(id))
		}
		// The trailing empty include keeps an otherwise empty predicate
		// list from matching everything at instantiation time.
		files.Append(node.New(node.KindInclude))
		output.Append(files.Wrap(g.rep.Expression))
	}

	for _, m := range v.models {
		output.Append(m)
	}
}

// mergeFileObjects collapses objects with the same checksum and op chain by
// OR-ing their guards, then orders the result.
func mergeFileObjects(files []render.FileObject) []render.FileObject {
	type mergeKey struct {
		checksum string
		ops      string
	}
	index := map[mergeKey]int{}
	var out []render.FileObject
	for _, f := range files {
		k := mergeKey{checksum: f.Checksum, ops: render.OpsKey(f.Ops, f.Template)}
		if i, ok := index[k]; ok {
			out[i].Expression = out[i].Expression.Or(f.Expression)
			continue
		}
		index[k] = len(out)
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}
