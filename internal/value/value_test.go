package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Coercions(t *testing.T) {
	tests := []struct {
		name    string
		v       Value
		wantStr string
		wantErr bool
	}{
		{name: "string", v: OfString("hello"), wantStr: "hello"},
		{name: "bool true", v: OfBool(true), wantStr: "true"},
		{name: "list", v: OfList([]string{"a", "b"}), wantStr: "a,b"},
		{name: "dynamic", v: Dynamic("x"), wantStr: "x"},
		{name: "empty", v: Empty, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tt.v.AsString()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStr, s)
		})
	}
}

func TestValue_AsBool(t *testing.T) {
	b, err := OfString("TRUE").AsBool()
	require.NoError(t, err)
	assert.True(t, b)

	b, err = Dynamic("false").AsBool()
	require.NoError(t, err)
	assert.False(t, b)

	_, err = OfString("yes").AsBool()
	assert.ErrorIs(t, err, ErrCoercion)

	_, err = Empty.AsBool()
	assert.ErrorIs(t, err, ErrNotPresent)
}

func TestValue_AsList(t *testing.T) {
	l, err := OfString("a, b,c").AsList()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, l)

	l, err = OfString("").AsList()
	require.NoError(t, err)
	assert.Empty(t, l)

	l, err = OfList([]string{"x"}).AsList()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, l)
}

func TestValue_AsInt(t *testing.T) {
	n, err := OfString("42").AsInt()
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = OfString("nope").AsInt()
	assert.ErrorIs(t, err, ErrCoercion)

	_, err = OfBool(true).AsInt()
	assert.ErrorIs(t, err, ErrCoercion)
}

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{name: "same string", a: OfString("x"), b: OfString("x"), want: true},
		{name: "different string", a: OfString("x"), b: OfString("y"), want: false},
		{name: "dynamic equals string", a: Dynamic("x"), b: OfString("x"), want: true},
		{name: "empty never equals present", a: Empty, b: OfString(""), want: false},
		{name: "empty equals empty", a: Empty, b: Empty, want: true},
		{name: "typed empty same kind", a: Typed(KindBoolean), b: Typed(KindBoolean), want: true},
		{name: "typed empty different kind", a: Typed(KindBoolean), b: Typed(KindList), want: false},
		{name: "typed empty vs untyped", a: Typed(KindBoolean), b: Empty, want: false},
		{name: "bool vs string", a: OfBool(true), b: OfString("true"), want: false},
		{name: "lists", a: OfList([]string{"a", "b"}), b: OfList([]string{"a", "b"}), want: true},
		{name: "lists order matters", a: OfList([]string{"a", "b"}), b: OfList([]string{"b", "a"}), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
			assert.Equal(t, tt.want, tt.b.Equal(tt.a))
		})
	}
}

func TestValue_ListIsCopied(t *testing.T) {
	src := []string{"a", "b"}
	v := OfList(src)
	src[0] = "mutated"
	l, err := v.AsList()
	require.NoError(t, err)
	assert.Equal(t, "a", l[0])
}
