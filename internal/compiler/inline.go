package compiler

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/oxhq/archc/internal/model"
	"github.com/oxhq/archc/internal/node"
	"github.com/oxhq/archc/internal/script"
)

// inlinePass replaces source/exec/call sites with the referenced bodies and
// records the working directory in effect at every output directive, so
// later passes resolve file references without re-walking includes.
func (c *Compiler) inlinePass() error {
	c.log.Debug("compile: inlining call sites")
	if err := c.inlineChildren(c.root, c.cwd); err != nil {
		return err
	}
	// Methods have all been expanded at their call sites; the remaining
	// declarations would only leak into the image.
	for _, m := range c.root.Collect(func(n *node.Node) bool { return n.Kind() == node.KindMethods }) {
		m.Remove()
	}
	return nil
}

func (c *Compiler) inlineChildren(n *node.Node, cwd string) error {
	for _, child := range n.Children() {
		if err := c.inlineNode(child, cwd); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) inlineNode(n *node.Node, cwd string) error {
	switch kind := n.Kind(); kind {
	case node.KindSource, node.KindExec:
		return c.inlineSource(n, cwd)

	case node.KindCall:
		return c.inlineCall(n, cwd)

	case node.KindMethods:
		// Bodies inline lazily at their call sites.
		return nil

	case node.KindOutput, node.KindFile, node.KindTemplate, node.KindFiles, node.KindTemplates:
		c.cwds[n] = cwd
		return c.inlineChildren(n, cwd)

	default:
		return c.inlineChildren(n, cwd)
	}
}

// inlineSource splices the referenced script's children in place of the
// directive. URL-form references resolve at instantiation time and are
// dropped from the compiled tree. Exec switches the working directory to
// the referenced script's; source keeps the caller's.
func (c *Compiler) inlineSource(n *node.Node, cwd string) error {
	src := n.Attr("src")
	if src == "" {
		src = n.Attr("url")
	}
	if src == "" || script.IsURL(src) {
		n.Remove()
		return nil
	}
	if c.loader == nil {
		return model.ErrIO.New(fmt.Sprintf("no loader to inline %s %q", n.Kind(), src))
	}
	path := src
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	// Caching is off so every call site owns a unique subtree instance.
	loaded, err := c.loader.Load(path, false)
	if err != nil {
		return err
	}
	childCwd := cwd
	if n.Kind() == node.KindExec {
		childCwd = filepath.Dir(path)
	}
	if err := c.inlineChildren(loaded, childCwd); err != nil {
		return err
	}
	n.Replace(loaded.Children()...)
	return nil
}

// inlineCall expands a method call: the method body is deep-copied, renamed
// to a unique id derived from the call site, and spliced in.
func (c *Compiler) inlineCall(n *node.Node, cwd string) error {
	name := n.Attr("method")
	root := n
	for root.Parent() != nil {
		root = root.Parent()
	}
	method := script.FindMethod(root, name)
	if method == nil && root != c.root {
		method = script.FindMethod(c.root, name)
	}
	if method == nil {
		return model.ErrInlineMethodNotFound.New(name, n.Location())
	}
	cp := method.DeepCopy()
	cp.SetAttr("name", callSiteID(n))
	if err := c.inlineChildren(cp, cwd); err != nil {
		return err
	}
	n.Replace(cp)
	return nil
}

// callSiteID derives a stable unique method name from the call site
// location.
func callSiteID(call *node.Node) string {
	loc := fmt.Sprintf("%s#%d", call.Location(), call.Index())
	sum := md5.Sum([]byte(loc))
	return hex.EncodeToString(sum[:])
}
