package script

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/oxhq/archc/internal/expr"
	"github.com/oxhq/archc/internal/model"
	"github.com/oxhq/archc/internal/node"
)

// kindByName maps element names of the script dialect to node kinds.
var kindByName = map[string]node.Kind{}

func init() {
	for _, k := range []node.Kind{
		node.KindScript, node.KindStep, node.KindInputs, node.KindVariables,
		node.KindPresets, node.KindOutput, node.KindModel, node.KindModelValue,
		node.KindTransformation, node.KindInclude, node.KindExclude,
		node.KindCondition, node.KindMethod, node.KindMethods, node.KindSource,
		node.KindExec, node.KindCall, node.KindFile, node.KindTemplate,
		node.KindFiles, node.KindTemplates, node.KindReplace,
		node.KindInputBoolean, node.KindInputText, node.KindInputEnum,
		node.KindInputList, node.KindInputOption,
		node.KindVariableBoolean, node.KindVariableText, node.KindVariableEnum,
		node.KindVariableList,
		node.KindPresetBoolean, node.KindPresetText, node.KindPresetEnum,
		node.KindPresetList,
	} {
		kindByName[string(k)] = k
	}
}

// FileLoader is the default Loader: it reads script files from disk and
// parses the XML dialect. A small cache serves repeated loads unless the
// caller asks for a fresh instance.
type FileLoader struct {
	cache map[string]*node.Node
}

// NewFileLoader returns an empty file loader.
func NewFileLoader() *FileLoader {
	return &FileLoader{cache: map[string]*node.Node{}}
}

// Load implements Loader.
func (l *FileLoader) Load(path string, cache bool) (*node.Node, error) {
	if cache {
		if cached, ok := l.cache[path]; ok {
			return cached, nil
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, model.ErrIO.New(fmt.Sprintf("open script %s: %v", path, err))
	}
	defer f.Close()
	root, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	if cache {
		l.cache[path] = root
	}
	return root, nil
}

// Parse reads one script document into a node tree. An "if" attribute on
// any element wraps the element in a condition node, matching the explicit
// <condition expr="..."> form.
func Parse(r io.Reader) (*node.Node, error) {
	dec := xml.NewDecoder(r)
	var root *node.Node
	var stack []*node.Node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("script: malformed xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n, err := startNode(t)
			if err != nil {
				return nil, err
			}
			attach := n
			// The wrapping condition, when present, takes the node's
			// place in the tree.
			if cond := n.Parent(); cond != nil {
				attach = cond
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("script: multiple root elements")
				}
				root = attach
			} else {
				stack[len(stack)-1].Append(attach)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			text := strings.TrimSpace(string(t))
			if text != "" {
				cur := stack[len(stack)-1]
				if cur.HasValue() {
					cur.SetValue(cur.Value() + text)
				} else {
					cur.SetValue(text)
				}
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("script: empty document")
	}
	if root.Unwrap().Kind() != node.KindScript {
		return nil, fmt.Errorf("script: root element must be <script>, got <%s>", root.Unwrap().Kind())
	}
	return root.Unwrap(), nil
}

// startNode builds the node for a start element. When the element carries
// an "if" attribute the returned node is pre-attached to a condition parent.
func startNode(t xml.StartElement) (*node.Node, error) {
	kind, ok := kindByName[t.Name.Local]
	if !ok {
		return nil, fmt.Errorf("script: unknown element <%s>", t.Name.Local)
	}
	n := node.New(kind)
	var guard *expr.Expression
	for _, a := range t.Attr {
		switch {
		case a.Name.Local == "if" && kind != node.KindCondition:
			e, err := expr.Parse(a.Value)
			if err != nil {
				return nil, err
			}
			guard = e
		case a.Name.Local == "expr" && kind == node.KindCondition:
			e, err := expr.Parse(a.Value)
			if err != nil {
				return nil, err
			}
			n.SetExpression(e)
		default:
			n.SetAttr(a.Name.Local, a.Value)
		}
	}
	if kind == node.KindCondition && n.Expression() == nil {
		n.SetExpression(expr.True)
	}
	if guard != nil {
		cond := node.NewCondition(guard)
		cond.Append(n)
	}
	return n, nil
}
