package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/archc/internal/value"
)

func mustParse(t *testing.T, src string) *Expression {
	t.Helper()
	e, err := Parse(src)
	require.NoError(t, err, "parse %q", src)
	return e
}

func TestParse_Reduction(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "constant true", src: "true", want: "true"},
		{name: "and identity", src: "${x} && true", want: "${x}"},
		{name: "or identity", src: "${x} || false", want: "${x}"},
		{name: "and shortcircuit", src: "${x} && false", want: "false"},
		{name: "or shortcircuit", src: "${x} || true", want: "true"},
		{name: "double negation", src: "!!${x}", want: "${x}"},
		{name: "idempotent and", src: "${x} && ${x}", want: "${x}"},
		{name: "idempotent or", src: "${x} || ${x}", want: "${x}"},
		{name: "complement and", src: "${x} && !${x}", want: "false"},
		{name: "complement or", src: "${x} || !${x}", want: "true"},
		{name: "constant fold eq", src: "'a' == 'a'", want: "true"},
		{name: "constant fold ne", src: "'a' != 'b'", want: "true"},
		{name: "fold contains", src: "['a','b'] contains 'b'", want: "true"},
		{name: "fold contains miss", src: "['a'] contains 'b'", want: "false"},
		{name: "negated eq", src: "!(${x} == 'a')", want: "'a' != ${x}"},
		{name: "absorption and", src: "${x} && (${x} || ${y})", want: "${x}"},
		{name: "absorption or", src: "${x} || (${x} && ${y})", want: "${x}"},
		{name: "de morgan shrinks", src: "!(!${x} && !${y})", want: "${x} || ${y}"},
		{name: "self equality folds", src: "${x} == ${x}", want: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustParse(t, tt.src).Literal())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, src := range []string{
		"",
		"${}",
		"${x",
		"'unterminated",
		"${x} &&",
		"bogusword",
		"${x} == == 'a'",
	} {
		_, err := Parse(src)
		assert.Error(t, err, "source %q", src)
	}
}

func TestReduction_Idempotence(t *testing.T) {
	for _, src := range []string{
		"${a} && (${b} || !${c})",
		"${flavor} == 'se' || ${flavor} == 'mp'",
		"!(${a} && ${b})",
		"${list} contains 'x' && ${flag}",
	} {
		e := mustParse(t, src)
		again, err := reduce(e.tree())
		require.NoError(t, err)
		assert.True(t, e.Equal(fromTree(again)), "reduce not idempotent for %q", src)

		assert.True(t, e.And(True).Equal(e))
		assert.True(t, e.Or(False).Equal(e))
		assert.True(t, e.Negate().Negate().Equal(e))
	}
}

func TestEqual_OrderNormalized(t *testing.T) {
	a := mustParse(t, "${x} && ${y}")
	b := mustParse(t, "${y} && ${x}")
	assert.True(t, a.Equal(b))

	c := mustParse(t, "${x} == 'a'")
	d := mustParse(t, "'a' == ${x}")
	assert.True(t, c.Equal(d))
}

func TestConstantsAreSingletons(t *testing.T) {
	assert.Same(t, True, mustParse(t, "true"))
	assert.Same(t, False, mustParse(t, "${x} && false"))
	assert.Same(t, True, mustParse(t, "${x}").Or(True))
}

func TestInline(t *testing.T) {
	e := mustParse(t, "${flavor} == 'se' && ${colors}")

	inlined, err := e.Inline(func(name string) (value.Value, bool) {
		if name == "flavor" {
			return value.OfString("se"), true
		}
		return value.Empty, false
	})
	require.NoError(t, err)
	assert.Equal(t, "${colors}", inlined.Literal())

	inlined, err = e.Inline(func(name string) (value.Value, bool) {
		if name == "flavor" {
			return value.OfString("mp"), true
		}
		return value.Empty, false
	})
	require.NoError(t, err)
	assert.Same(t, False, inlined)
}

func TestInline_TypeMismatch(t *testing.T) {
	e := mustParse(t, "${flag} == 'se'")
	_, err := e.Inline(func(name string) (value.Value, bool) {
		return value.OfBool(true), true
	})
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
}

func TestRelativize(t *testing.T) {
	tests := []struct {
		name       string
		expr       string
		antecedent string
		want       string
	}{
		{name: "entailed term", expr: "${a}", antecedent: "${a}", want: "true"},
		{name: "entailed conjunct", expr: "${a} && ${b}", antecedent: "${a}", want: "${b}"},
		{name: "contradiction", expr: "!${a}", antecedent: "${a}", want: "false"},
		{name: "pinned enum", expr: "${flavor} == 'se'", antecedent: "${flavor} == 'mp'", want: "false"},
		{name: "pinned enum ne", expr: "${flavor} != 'se'", antecedent: "${flavor} == 'mp'", want: "true"},
		{name: "unrelated", expr: "${b}", antecedent: "${a}", want: "${b}"},
		{name: "nested", expr: "(${a} && ${b}) || ${c}", antecedent: "${a} && ${b}", want: "true"},
		{name: "false antecedent", expr: "${b}", antecedent: "false", want: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := mustParse(t, tt.expr)
			a := mustParse(t, tt.antecedent)
			assert.Equal(t, tt.want, e.Relativize(a).Literal())
		})
	}
}

func TestRelativize_Soundness(t *testing.T) {
	// A ⇒ B gives B.relativize(A) == TRUE.
	b := mustParse(t, "${x} || ${y}")
	a := mustParse(t, "${x}")
	assert.Same(t, True, b.Relativize(a))

	// A ⇒ ¬B gives B.relativize(A) == FALSE.
	b = mustParse(t, "${x} && ${z}")
	a = mustParse(t, "!${x}")
	assert.Same(t, False, b.Relativize(a))
}

func TestEval(t *testing.T) {
	vars := map[string]value.Value{
		"flavor": value.OfString("se"),
		"flag":   value.OfBool(true),
		"mods":   value.OfList([]string{"db", "web"}),
	}
	lookup := func(name string) (value.Value, bool) {
		v, ok := vars[name]
		return v, ok
	}

	tests := []struct {
		name string
		src  string
		want bool
	}{
		{name: "eq", src: "${flavor} == 'se'", want: true},
		{name: "ne", src: "${flavor} != 'se'", want: false},
		{name: "bool var", src: "${flag}", want: true},
		{name: "contains", src: "${mods} contains 'db'", want: true},
		{name: "contains miss", src: "${mods} contains 'cli'", want: false},
		{name: "and", src: "${flag} && ${flavor} == 'se'", want: true},
		{name: "sizeof", src: "sizeof(${mods}) > 1", want: true},
		{name: "sizeof le", src: "sizeof(${mods}) <= 1", want: false},
		{name: "as int", src: "as_int('3') >= 3", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mustParse(t, tt.src).Eval(lookup)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_Unresolved(t *testing.T) {
	e := mustParse(t, "${missing} == 'x'")
	_, err := e.Eval(func(string) (value.Value, bool) { return value.Empty, false })
	var unresolved *UnresolvedVariableError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "missing", unresolved.Name)
}

func TestEval_TypeError(t *testing.T) {
	e := mustParse(t, "${flag} contains 'x'")
	_, err := e.Eval(func(string) (value.Value, bool) { return value.OfBool(true), true })
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
}

func TestEval_TypedEmpty(t *testing.T) {
	// Typed empties evaluate as their zero value, so structurally sound
	// expressions succeed and kind clashes fail.
	e := mustParse(t, "${a} && ${b} == 'x'")
	got, err := e.Eval(func(name string) (value.Value, bool) {
		if name == "a" {
			return value.Typed(value.KindBoolean), true
		}
		return value.Typed(value.KindString), true
	})
	require.NoError(t, err)
	assert.False(t, got)

	_, err = e.Eval(func(name string) (value.Value, bool) {
		return value.Typed(value.KindBoolean), true
	})
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
}

func TestVariables(t *testing.T) {
	e := mustParse(t, "${b} && ${a} || ${a} == 'x'")
	assert.Equal(t, []string{"a", "b"}, e.Variables())
	assert.Empty(t, True.Variables())
}

func TestCompare_TotalOrder(t *testing.T) {
	a := mustParse(t, "${a}")
	b := mustParse(t, "${b}")
	assert.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))
	assert.Zero(t, a.Compare(mustParse(t, "${a}")))
	// Literals order before variables.
	assert.Negative(t, True.Compare(a))
}

func TestJoin(t *testing.T) {
	x, y := mustParse(t, "${x}"), mustParse(t, "${y}")
	assert.Equal(t, "${x} || ${y}", Join(OpOr, []*Expression{x, y}).Literal())
	assert.Same(t, True, Join(OpAnd, nil))
	assert.Same(t, False, Join(OpOr, nil))
	assert.Same(t, x, Join(OpAnd, []*Expression{x}))
}
