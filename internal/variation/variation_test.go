package variation

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/archc/internal/expr"
	"github.com/oxhq/archc/internal/node"
	"github.com/oxhq/archc/internal/script"
	"github.com/oxhq/archc/internal/value"
)

func parse(t *testing.T, src string) *node.Node {
	t.Helper()
	root, err := script.Parse(strings.NewReader(src))
	require.NoError(t, err)
	return root
}

func noDeclared(string) (value.Value, bool) {
	return value.Empty, false
}

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

func TestBitSet(t *testing.T) {
	b := NewBitSet().Set(3).Set(70)
	assert.True(t, b.Get(3))
	assert.True(t, b.Get(70))
	assert.False(t, b.Get(4))

	o := NewBitSet().Set(4)
	u := b.Or(o)
	assert.True(t, u.Get(3))
	assert.True(t, u.Get(4))
	assert.False(t, b.Get(4), "Or must not mutate")

	assert.Equal(t, b.Key(), b.Clone().Key())
	assert.NotEqual(t, b.Key(), o.Key())
	// Trailing zero words do not change the key.
	padded := NewBitSet().Set(3).Set(70)
	padded.words = append(padded.words, 0)
	assert.Equal(t, b.Key(), padded.Key())
}

func TestTable_Boolean(t *testing.T) {
	root := parse(t, `<script><step name="s"><input-boolean name="x" default="false"/></step></script>`)
	tables := collectTables(root, noDeclared)
	require.Len(t, tables, 1)
	tab := tables[0]
	assert.Equal(t, "x", tab.Key)
	require.Len(t, tab.Columns, 2)
	assert.Len(t, tab.Rows, 2)

	pinned := collectTables(root, func(name string) (value.Value, bool) {
		return value.OfBool(true), true
	})
	assert.Len(t, pinned[0].Rows, 1, "a value pinning true drops the false row")
}

func TestTable_List(t *testing.T) {
	root := parse(t, `<script><step name="s">
		<input-list name="mods" default="">
			<option value="db"/>
			<option value="web"/>
		</input-list>
	</step></script>`)
	tables := collectTables(root, noDeclared)
	require.Len(t, tables, 1)
	tab := tables[0]
	require.Len(t, tab.Columns, 3, "options plus the none column")
	// Non-empty subsets {db}, {web}, {db,web} plus the none row.
	assert.Len(t, tab.Rows, 4)

	pinned := collectTables(root, func(name string) (value.Value, bool) {
		return value.OfList([]string{"db"}), true
	})
	require.Len(t, pinned[0].Rows, 1)
	raw, ok := pinned[0].assignment(pinned[0].shifted(pinned[0].Rows[0]))
	require.True(t, ok)
	assert.Equal(t, "db", raw)
}

func TestEnumerate_ListSubsets(t *testing.T) {
	root := parse(t, `<script><step name="s">
		<input-list name="mods" default="">
			<option value="db"/>
			<option value="web"/>
		</input-list>
	</step></script>`)

	got, err := New(root, noDeclared, testLog()).Enumerate(nil)
	require.NoError(t, err)
	values := map[string]bool{}
	for _, v := range got {
		values[v["mods"]] = true
	}
	assert.Equal(t, map[string]bool{"": true, "db": true, "web": true, "db,web": true}, values)
}

func TestEnumerate_GuardedTable(t *testing.T) {
	root := parse(t, `<script>
		<step name="s"><input-boolean name="db" default="false"/></step>
		<condition expr="${db}">
			<step name="t">
				<input-enum name="kind" default="h2">
					<option value="h2"/>
					<option value="pg"/>
				</input-enum>
			</step>
		</condition>
	</script>`)

	got, err := New(root, noDeclared, testLog()).Enumerate(nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	counts := 0
	for _, v := range got {
		if v["db"] == "false" {
			assert.NotContains(t, v, "kind")
		} else {
			counts++
			assert.Contains(t, []string{"h2", "pg"}, v["kind"])
		}
	}
	assert.Equal(t, 2, counts)
}

func TestEnumerate_Filters(t *testing.T) {
	root := parse(t, `<script><step name="s">
		<input-boolean name="x" default="false"/>
	</step></script>`)

	filter, err := expr.Parse("${x}")
	require.NoError(t, err)
	got, err := New(root, noDeclared, testLog()).Enumerate([]*expr.Expression{filter})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "false", got[0]["x"])
}

func TestEnumerate_OptionOrderInsensitive(t *testing.T) {
	a := parse(t, `<script><step name="s"><input-enum name="f" default="a">
		<option value="a"/><option value="b"/></input-enum></step></script>`)
	b := parse(t, `<script><step name="s"><input-enum name="f" default="a">
		<option value="b"/><option value="a"/></input-enum></step></script>`)

	va, err := New(a, noDeclared, testLog()).Enumerate(nil)
	require.NoError(t, err)
	vb, err := New(b, noDeclared, testLog()).Enumerate(nil)
	require.NoError(t, err)
	assert.Equal(t, va, vb, "reordering options must not change the variation set")
}

func TestEnumerate_ExecutionErrorsDropVariation(t *testing.T) {
	// Every row trips over the unresolvable condition during simulated
	// execution; the rows are dropped, the enumeration itself succeeds.
	root := parse(t, `<script>
		<step name="s"><input-boolean name="on" default="false"/></step>
		<condition expr="${undeclared}"><variable-text path="~v" value="1"/></condition>
	</script>`)

	got, err := New(root, noDeclared, testLog()).Enumerate(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
