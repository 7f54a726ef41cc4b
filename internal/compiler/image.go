package compiler

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oxhq/archc/internal/blob"
	"github.com/oxhq/archc/internal/model"
	"github.com/oxhq/archc/internal/node"
)

// Image is the compiled archetype: a fresh canonical tree plus the
// content-addressed blobs referenced by its output directives.
type Image struct {
	Root  *node.Node
	Blobs *blob.Store
}

// Write materializes the image into a directory: main.xml with the
// pretty-printed tree and one file per blob under blobs/. Each file lands via
// temp-file and rename so a crashed write never leaves a torn file; main.xml
// is written before the blobs, so the directory as a whole is not replaced
// atomically.
func (img *Image) Write(dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, "blobs"), 0o755); err != nil {
		return model.ErrIO.New(fmt.Sprintf("create %s: %v", dir, err))
	}
	var sb strings.Builder
	sb.WriteString(xml.Header)
	writeNode(&sb, img.Root, 0)
	if err := atomicWrite(filepath.Join(dir, "main.xml"), []byte(sb.String())); err != nil {
		return err
	}
	for _, id := range img.Blobs.IDs() {
		content, _ := img.Blobs.Get(id)
		if err := atomicWrite(filepath.Join(dir, "blobs", id), content); err != nil {
			return err
		}
	}
	return nil
}

func atomicWrite(path string, content []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return model.ErrIO.New(fmt.Sprintf("write %s: %v", tmp, err))
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return model.ErrIO.New(fmt.Sprintf("rename %s: %v", path, err))
	}
	return nil
}

// writeNode pretty-prints one node and its subtree with two-space
// indentation.
func writeNode(w io.StringWriter, n *node.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	w.WriteString(indent)
	w.WriteString("<")
	w.WriteString(string(n.Kind()))
	if n.Kind() == node.KindCondition && n.Expression() != nil {
		w.WriteString(` expr="` + escapeAttr(n.Expression().Literal()) + `"`)
	}
	for _, k := range n.AttrKeys() {
		w.WriteString(" " + k + `="` + escapeAttr(n.Attr(k)) + `"`)
	}
	children := n.Children()
	if len(children) == 0 && !n.HasValue() {
		w.WriteString("/>\n")
		return
	}
	w.WriteString(">")
	if n.HasValue() {
		w.WriteString(escapeText(n.Value()))
	}
	if len(children) > 0 {
		w.WriteString("\n")
		for _, c := range children {
			writeNode(w, c, depth+1)
		}
		w.WriteString(indent)
	}
	w.WriteString("</" + string(n.Kind()) + ">\n")
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"\n", "&#10;",
)

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
