package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oxhq/archc/internal/value"
)

// UnresolvedVariableError reports a variable with no binding during full
// evaluation.
type UnresolvedVariableError struct {
	Name string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("unresolved variable: %s", e.Name)
}

// EvalError reports a type error or unsupported operation during
// evaluation or constant folding.
type EvalError struct {
	Msg string
}

func (e *EvalError) Error() string {
	return e.Msg
}

func evalErrorf(format string, args ...any) error {
	return &EvalError{Msg: fmt.Sprintf(format, args...)}
}

// Lookup resolves a variable name to its value. The second result reports
// whether a binding exists.
type Lookup func(name string) (value.Value, bool)

// Eval fully evaluates the expression to a boolean. Every variable must
// resolve; a missing binding yields UnresolvedVariableError, a type error
// yields EvalError.
func (e *Expression) Eval(lookup Lookup) (bool, error) {
	var stack []value.Value
	for _, t := range e.tokens {
		switch t.Kind {
		case TokenLiteral:
			stack = append(stack, t.Value)
		case TokenVariable:
			v, ok := lookup(t.Name)
			if !ok {
				return false, &UnresolvedVariableError{Name: t.Name}
			}
			stack = append(stack, v)
		case TokenOperator:
			n := t.Op.Arity()
			if len(stack) < n {
				return false, evalErrorf("operator %s lacks operands", t.Op.Symbol())
			}
			args := make([]value.Value, n)
			copy(args, stack[len(stack)-n:])
			stack = stack[:len(stack)-n]
			res, err := applyOperator(t.Op, args)
			if err != nil {
				return false, err
			}
			stack = append(stack, res)
		}
	}
	if len(stack) != 1 {
		return false, evalErrorf("malformed expression: %d values left", len(stack))
	}
	b, err := stack[0].AsBool()
	if err != nil {
		return false, evalErrorf("expression does not evaluate to a boolean: %s", stack[0])
	}
	return b, nil
}

// applyOperator applies one operator to literal operands. It implements
// the coercion rules shared by evaluation and constant folding.
func applyOperator(op Operator, args []value.Value) (value.Value, error) {
	switch op {
	case OpAnd, OpOr:
		a, err := args[0].AsBool()
		if err != nil {
			return value.Empty, evalErrorf("%s: left operand: %v", op.Symbol(), err)
		}
		b, err := args[1].AsBool()
		if err != nil {
			return value.Empty, evalErrorf("%s: right operand: %v", op.Symbol(), err)
		}
		if op == OpAnd {
			return value.OfBool(a && b), nil
		}
		return value.OfBool(a || b), nil

	case OpNot:
		b, err := args[0].AsBool()
		if err != nil {
			return value.Empty, evalErrorf("!: %v", err)
		}
		return value.OfBool(!b), nil

	case OpEq, OpNe:
		eq, err := literalEqual(args[0], args[1])
		if err != nil {
			return value.Empty, err
		}
		if op == OpNe {
			eq = !eq
		}
		return value.OfBool(eq), nil

	case OpContains:
		list, err := args[0].AsList()
		if err != nil {
			return value.Empty, evalErrorf("contains: left operand: %v", err)
		}
		needle, err := args[1].AsString()
		if err != nil {
			return value.Empty, evalErrorf("contains: right operand: %v", err)
		}
		for _, item := range list {
			if item == needle {
				return value.OfBool(true), nil
			}
		}
		return value.OfBool(false), nil

	case OpGt, OpGe, OpLt, OpLe:
		a, err := args[0].AsInt()
		if err != nil {
			return value.Empty, evalErrorf("%s: left operand: %v", op.Symbol(), err)
		}
		b, err := args[1].AsInt()
		if err != nil {
			return value.Empty, evalErrorf("%s: right operand: %v", op.Symbol(), err)
		}
		var r bool
		switch op {
		case OpGt:
			r = a > b
		case OpGe:
			r = a >= b
		case OpLt:
			r = a < b
		default:
			r = a <= b
		}
		return value.OfBool(r), nil

	case OpAsInt:
		n, err := args[0].AsInt()
		if err != nil {
			return value.Empty, evalErrorf("as_int: %v", err)
		}
		return value.Dynamic(strconv.Itoa(n)), nil

	case OpAsList:
		l, err := args[0].AsList()
		if err != nil {
			return value.Empty, evalErrorf("as_list: %v", err)
		}
		return value.OfList(l), nil

	case OpAsString:
		s, err := args[0].AsString()
		if err != nil {
			return value.Empty, evalErrorf("as_string: %v", err)
		}
		return value.OfString(s), nil

	case OpSizeOf:
		l, err := args[0].AsList()
		if err != nil {
			return value.Empty, evalErrorf("sizeof: %v", err)
		}
		return value.Dynamic(strconv.Itoa(len(l))), nil
	}
	return value.Empty, evalErrorf("unsupported operator %s", op.Symbol())
}

// literalEqual compares two operand values under ==. Typed empties compare
// structurally against compatible kinds; a kind clash between two present
// values is a type error, not inequality.
func literalEqual(a, b value.Value) (bool, error) {
	if !a.IsPresent() || !b.IsPresent() {
		if err := checkEmptyCompat(a, b); err != nil {
			return false, err
		}
		return a.Equal(b), nil
	}
	ak, bk := normalKind(a), normalKind(b)
	if ak != bk {
		return false, evalErrorf("==: cannot compare %s with %s", a.Kind(), b.Kind())
	}
	return a.Equal(b), nil
}

func normalKind(v value.Value) value.Kind {
	if v.Kind() == value.KindDynamic {
		return value.KindString
	}
	return v.Kind()
}

// checkEmptyCompat validates a comparison involving an absent operand:
// a typed empty may only meet a present value (or empty) of its own kind.
func checkEmptyCompat(a, b value.Value) error {
	kindOf := func(v value.Value) value.Kind {
		if v.IsPresent() {
			return normalKind(v)
		}
		if tk := v.TypedKind(); tk != "" && tk != value.KindEmpty {
			return tk
		}
		return "" // untyped empty is a wildcard
	}
	ak, bk := kindOf(a), kindOf(b)
	if ak != "" && bk != "" && ak != bk {
		return evalErrorf("==: cannot compare %s with %s", ak, bk)
	}
	return nil
}

// literalString renders the canonical string form of a literal value.
func literalString(v value.Value) string {
	switch v.Kind() {
	case value.KindString:
		return "'" + v.String() + "'"
	case value.KindBoolean, value.KindDynamic:
		return v.String()
	case value.KindList:
		l, _ := v.AsList()
		quoted := make([]string, len(l))
		for i, item := range l {
			quoted[i] = "'" + item + "'"
		}
		return "[" + strings.Join(quoted, ",") + "]"
	default:
		return "''"
	}
}
