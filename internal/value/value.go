// Package value contains the typed value model shared by the expression
// engine, the scope tree and the variation enumerator. Values are immutable;
// all mutation-looking operations return a new Value.
package value

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Kind discriminates the payload carried by a Value.
type Kind string

const (
	// KindEmpty is the absent value. It never equals a present value.
	KindEmpty Kind = "empty"

	// KindString is a plain string payload.
	KindString Kind = "string"

	// KindBoolean is a true/false payload.
	KindBoolean Kind = "boolean"

	// KindList is an ordered list of strings.
	KindList Kind = "list"

	// KindDynamic is a string whose target type is not known yet; it
	// coerces on demand at evaluation time.
	KindDynamic Kind = "dynamic"
)

// Sentinel errors for coercion failures.
var (
	ErrNotPresent = errors.New("value is not present")
	ErrCoercion   = errors.New("value cannot be coerced")
)

// Value is an immutable tagged value. The zero Value carries no kind and is
// not the untyped empty value; that is Empty.
type Value struct {
	kind  Kind
	typed Kind // for typed empties: the kind the value would have had
	str   string
	b     bool
	list  []string
}

// Empty is the untyped absent value.
var Empty = Value{kind: KindEmpty}

// OfString returns a string value.
func OfString(s string) Value {
	return Value{kind: KindString, str: s}
}

// OfBool returns a boolean value.
func OfBool(b bool) Value {
	return Value{kind: KindBoolean, b: b}
}

// OfList returns a list value. The slice is copied.
func OfList(items []string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Dynamic returns a late-typed string value; it behaves as a string until a
// consumer coerces it.
func Dynamic(s string) Value {
	return Value{kind: KindDynamic, str: s}
}

// Typed returns the empty value of a known kind. It is used by variable
// stubs, where the declaration type is known but no payload exists.
func Typed(kind Kind) Value {
	return Value{kind: KindEmpty, typed: kind}
}

// Kind reports the value's kind.
func (v Value) Kind() Kind {
	return v.kind
}

// TypedKind reports the declared kind of a typed empty, or the empty Kind ""
// when the value is present or fully untyped.
func (v Value) TypedKind() Kind {
	return v.typed
}

// IsPresent reports whether the value carries a payload.
func (v Value) IsPresent() bool {
	return v.kind != KindEmpty
}

// AsString returns the string form of the value.
func (v Value) AsString() (string, error) {
	switch v.kind {
	case KindString, KindDynamic:
		return v.str, nil
	case KindBoolean:
		return cast.ToString(v.b), nil
	case KindList:
		return strings.Join(v.list, ","), nil
	default:
		if v.typed == KindString || v.typed == KindDynamic {
			return "", nil
		}
		return "", ErrNotPresent
	}
}

// AsBool coerces the value to a boolean. Strings coerce case-insensitively
// from "true"/"false" only.
func (v Value) AsBool() (bool, error) {
	switch v.kind {
	case KindBoolean:
		return v.b, nil
	case KindString, KindDynamic:
		switch strings.ToLower(v.str) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return false, fmt.Errorf("%w: %q to boolean", ErrCoercion, v.str)
	case KindEmpty:
		if v.typed == KindBoolean {
			return false, nil
		}
		return false, ErrNotPresent
	default:
		return false, fmt.Errorf("%w: %s to boolean", ErrCoercion, v.kind)
	}
}

// AsList coerces the value to a list. Strings split on commas; the empty
// string yields an empty list.
func (v Value) AsList() ([]string, error) {
	switch v.kind {
	case KindList:
		cp := make([]string, len(v.list))
		copy(cp, v.list)
		return cp, nil
	case KindString, KindDynamic:
		if v.str == "" {
			return nil, nil
		}
		parts := strings.Split(v.str, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	case KindEmpty:
		if v.typed == KindList {
			return nil, nil
		}
		return nil, ErrNotPresent
	default:
		return nil, fmt.Errorf("%w: %s to list", ErrCoercion, v.kind)
	}
}

// AsInt coerces the value to an integer via decimal parse.
func (v Value) AsInt() (int, error) {
	switch v.kind {
	case KindString, KindDynamic:
		n, err := strconv.Atoi(v.str)
		if err != nil {
			return 0, fmt.Errorf("%w: %q to int", ErrCoercion, v.str)
		}
		return n, nil
	case KindBoolean:
		return 0, fmt.Errorf("%w: boolean to int", ErrCoercion)
	case KindEmpty:
		if v.typed != "" && v.typed != KindEmpty {
			return 0, nil
		}
		return 0, ErrNotPresent
	default:
		return 0, fmt.Errorf("%w: %s to int", ErrCoercion, v.kind)
	}
}

// Equal reports payload equality. Kinds must match, except that a dynamic
// value equals a string value with the same payload. Empty never equals a
// present value; typed empties are equal only to same-typed empties.
func (v Value) Equal(o Value) bool {
	if v.kind == KindEmpty || o.kind == KindEmpty {
		return v.kind == o.kind && v.typed == o.typed
	}
	vk, ok := v.kind, o.kind
	if vk == KindDynamic {
		vk = KindString
	}
	if ok == KindDynamic {
		ok = KindString
	}
	if vk != ok {
		return false
	}
	switch vk {
	case KindString:
		return v.str == o.str
	case KindBoolean:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Compare imposes a total order on values: by kind name, then by string
// form. Used to sort commutative expression operands deterministically.
func (v Value) Compare(o Value) int {
	if v.kind != o.kind {
		return strings.Compare(string(v.kind), string(o.kind))
	}
	vs, _ := v.AsString()
	os, _ := o.AsString()
	return strings.Compare(vs, os)
}

// String implements fmt.Stringer for diagnostics; it is not the literal
// form used by expressions.
func (v Value) String() string {
	switch v.kind {
	case KindEmpty:
		if v.typed != "" && v.typed != KindEmpty {
			return fmt.Sprintf("<empty %s>", v.typed)
		}
		return "<empty>"
	case KindList:
		return "[" + strings.Join(v.list, ",") + "]"
	case KindBoolean:
		return cast.ToString(v.b)
	default:
		return v.str
	}
}
