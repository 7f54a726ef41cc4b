package render

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/archc/internal/expr"
)

func TestFoldable(t *testing.T) {
	tests := []struct {
		name string
		ops  []FileOp
		want bool
	}{
		{name: "empty", ops: nil, want: true},
		{name: "no interpolation", ops: []FileOp{{Regex: "a", Replacement: "b"}, {Regex: "c", Replacement: "d"}}, want: true},
		{name: "one interpolation", ops: []FileOp{{Regex: "__pkg__", Replacement: "${package}"}}, want: true},
		{
			name: "two interpolations",
			ops: []FileOp{
				{Regex: "__pkg__", Replacement: "${package}"},
				{Regex: "__name__", Replacement: "${name}"},
			},
			want: false,
		},
		{
			name: "second interpolation in trailing whole-name op",
			ops: []FileOp{
				{Regex: "__pkg__", Replacement: "${package}"},
				{Regex: "^(.*)$", Replacement: "${prefix}/$1"},
			},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Foldable(tt.ops))
		})
	}
}

func TestFold_Collapses(t *testing.T) {
	ops := []FileOp{
		{Regex: "\\.tmpl$", Replacement: ""},
		{Regex: "__artifact__", Replacement: "${artifact}"},
	}
	folded, err := Fold("abc123", "src/__artifact__/Main.java.tmpl", ops)
	require.NoError(t, err)
	require.Len(t, folded, 1)
	assert.Equal(t, "^(.*)$", folded[0].Regex)
	assert.Equal(t, "src/${artifact}/Main.java", folded[0].Replacement)
}

func TestFold_PrependsChecksumOp(t *testing.T) {
	ops := []FileOp{
		{Regex: "__pkg__", Replacement: "${package}"},
		{Regex: "__name__", Replacement: "${name}"},
	}
	folded, err := Fold("abc123", "src/__pkg__/__name__.java", ops)
	require.NoError(t, err)
	require.Len(t, folded, 3)
	assert.Equal(t, "^abc123$", folded[0].Regex)
	assert.Equal(t, "src/__pkg__/__name__.java", folded[0].Replacement)
	assert.Equal(t, ops[0], folded[1])
}

func TestFold_BadRegex(t *testing.T) {
	_, err := Fold("x", "p", []FileOp{{Regex: "(", Replacement: "y"}})
	assert.Error(t, err)
}

func TestFileObject_Order(t *testing.T) {
	a := FileObject{Checksum: "aaa", Expression: expr.True}
	b := FileObject{Checksum: "bbb", Expression: expr.True}
	g, err := expr.Parse("${x}")
	require.NoError(t, err)
	c := FileObject{Checksum: "aaa", Expression: g}

	assert.Negative(t, a.Compare(b))
	assert.Zero(t, a.Compare(a))
	// Expression dominates checksum.
	assert.Equal(t, expr.True.Compare(g) < 0, a.Compare(c) < 0)
}

func TestPredicates_Match(t *testing.T) {
	p := Predicates{Includes: []string{"src/**/*.java"}, Excludes: []string{"**/internal/**"}}

	tests := []struct {
		path string
		want bool
	}{
		{path: "src/main/App.java", want: true},
		{path: "src/main/internal/Secret.java", want: false},
		{path: "docs/readme.md", want: false},
	}
	for _, tt := range tests {
		got, err := p.Match(tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.path)
	}

	// No includes accepts everything not excluded.
	open := Predicates{Excludes: []string{"*.bak"}}
	got, err := open.Match("anything.txt")
	require.NoError(t, err)
	assert.True(t, got)
	got, err = open.Match("old.bak")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestScan(t *testing.T) {
	fsys := fstest.MapFS{
		"files/a.txt":     {Data: []byte("a")},
		"files/sub/b.txt": {Data: []byte("b")},
		"files/sub/c.bak": {Data: []byte("c")},
		"elsewhere/d.txt": {Data: []byte("d")},
	}
	got, err := Scan(fsys, "files", Predicates{Excludes: []string{"**/*.bak"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, got)
}

func TestSplitPatterns(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitPatterns("a, b\tc"))
	assert.Empty(t, SplitPatterns("  "))
}
