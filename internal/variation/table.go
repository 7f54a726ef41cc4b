package variation

import (
	"strings"

	"github.com/oxhq/archc/internal/expr"
	"github.com/oxhq/archc/internal/node"
	"github.com/oxhq/archc/internal/scope"
	"github.com/oxhq/archc/internal/value"
)

// unknownText is the placeholder column for a text input with neither a
// declared value nor a default.
const unknownText = "<?>"

// Column is one candidate value of an input.
type Column struct {
	Key   string
	Value string
}

// Table holds one input's candidate rows: columns are its possible values,
// rows the legal selections, indexed into the enumerator's global bit
// space via offset.
type Table struct {
	Key     string
	Node    *node.Node
	Guard   *expr.Expression
	Columns []Column
	Rows    []*BitSet
	offset  int
}

// collectTables walks the initialized source tree in document order,
// building one table per input with the guard in effect at its
// declaration.
func collectTables(root *node.Node, declared expr.Lookup) []*Table {
	var tables []*Table
	ctx := scope.NewContext("")
	offset := 0

	var walk func(n *node.Node, guard *expr.Expression)
	walk = func(n *node.Node, guard *expr.Expression) {
		switch kind := n.Kind(); {
		case kind == node.KindCondition:
			e := n.Expression()
			if e == nil {
				e = expr.True
			}
			childGuard := guard.And(e)
			for _, c := range n.Children() {
				walk(c, childGuard)
			}
			return

		case kind == node.KindOutput || kind == node.KindMethods:
			return

		case kind.IsInput():
			name := n.Attr("name")
			key := ctx.Scope().ResolveKey(name)
			t := buildTable(key, n, guard, declared)
			t.offset = offset
			offset += len(t.Columns)
			tables = append(tables, t)

			ctx.PushScope(name)
			defer ctx.PopScope()
			switch kind {
			case node.KindInputBoolean:
				childGuard := guard.And(expr.Var(key))
				for _, c := range n.Children() {
					walk(c, childGuard)
				}
			case node.KindInputEnum, node.KindInputList:
				for _, c := range n.Children() {
					if c.Kind() != node.KindInputOption {
						walk(c, guard)
						continue
					}
					childGuard := guard
					if kind == node.KindInputEnum {
						childGuard = guard.And(expr.VarEq(key, value.OfString(c.Attr("value"))))
					} else {
						childGuard = guard.And(expr.VarContains(key, c.Attr("value")))
					}
					for _, cc := range c.Children() {
						walk(cc, childGuard)
					}
				}
			default:
				for _, c := range n.Children() {
					walk(c, guard)
				}
			}
			return

		default:
			for _, c := range n.Children() {
				walk(c, guard)
			}
		}
	}
	for _, c := range root.Children() {
		walk(c, expr.True)
	}
	return tables
}

// buildTable constructs the per-kind columns and rows.
func buildTable(key string, input *node.Node, guard *expr.Expression, declared expr.Lookup) *Table {
	t := &Table{Key: key, Node: input, Guard: guard}
	pinned, hasPin := declared(key)

	switch input.Kind() {
	case node.KindInputText:
		val := unknownText
		if hasPin {
			if s, err := pinned.AsString(); err == nil {
				val = s
			}
		} else if input.HasAttr("default") {
			val = input.Attr("default")
		}
		t.Columns = []Column{{Key: key, Value: val}}
		t.Rows = []*BitSet{NewBitSet().Set(0)}

	case node.KindInputBoolean:
		t.Columns = []Column{{Key: key, Value: "true"}, {Key: key, Value: "false"}}
		t.Rows = []*BitSet{NewBitSet().Set(0)}
		pinnedTrue := false
		if hasPin {
			if b, err := pinned.AsBool(); err == nil && b {
				pinnedTrue = true
			}
		}
		if !pinnedTrue {
			t.Rows = append(t.Rows, NewBitSet().Set(1))
		}

	case node.KindInputEnum:
		options := optionValues(input)
		for _, opt := range options {
			t.Columns = append(t.Columns, Column{Key: key, Value: opt})
		}
		if hasPin {
			if s, err := pinned.AsString(); err == nil {
				for i, opt := range options {
					if strings.EqualFold(opt, s) {
						t.Rows = []*BitSet{NewBitSet().Set(i)}
						break
					}
				}
			}
		}
		if len(t.Rows) == 0 {
			for i := range options {
				t.Rows = append(t.Rows, NewBitSet().Set(i))
			}
		}

	case node.KindInputList:
		options := optionValues(input)
		for _, opt := range options {
			t.Columns = append(t.Columns, Column{Key: key, Value: opt})
		}
		none := len(options)
		t.Columns = append(t.Columns, Column{Key: key, Value: ""})
		if hasPin {
			row := NewBitSet()
			items, _ := pinned.AsList()
			empty := true
			for _, item := range items {
				for i, opt := range options {
					if strings.EqualFold(opt, item) {
						row.Set(i)
						empty = false
					}
				}
			}
			if empty {
				row.Set(none)
			}
			t.Rows = []*BitSet{row}
		} else {
			// Every non-empty subset, then the none row.
			for mask := 1; mask < 1<<len(options); mask++ {
				row := NewBitSet()
				for i := range options {
					if mask&(1<<i) != 0 {
						row.Set(i)
					}
				}
				t.Rows = append(t.Rows, row)
			}
			t.Rows = append(t.Rows, NewBitSet().Set(none))
		}
	}
	return t
}

func optionValues(input *node.Node) []string {
	var out []string
	for _, c := range input.Children() {
		if c.Kind() == node.KindInputOption {
			out = append(out, c.Attr("value"))
		}
	}
	return out
}

// assignment reads the row's value for this table, reporting whether the
// row selects the input at all.
func (t *Table) assignment(row *BitSet) (string, bool) {
	switch t.Node.Kind() {
	case node.KindInputList:
		var items []string
		selected := false
		for i, col := range t.Columns {
			if row.Get(t.offset + i) {
				selected = true
				if col.Value != "" {
					items = append(items, col.Value)
				}
			}
		}
		return strings.Join(items, ","), selected
	default:
		for i, col := range t.Columns {
			if row.Get(t.offset + i) {
				return col.Value, true
			}
		}
		return "", false
	}
}

// shifted returns the table-local row translated into the global bit space.
func (t *Table) shifted(row *BitSet) *BitSet {
	out := NewBitSet()
	for i := range t.Columns {
		if row.Get(i) {
			out.Set(t.offset + i)
		}
	}
	return out
}
