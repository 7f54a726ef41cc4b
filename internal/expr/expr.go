package expr

import (
	"sort"

	"github.com/oxhq/archc/internal/value"
)

// Expression is an immutable, reduced boolean expression in reverse Polish
// form. All compositional operations return a reduced expression; equality
// is structural and order-normalized for commutative operators.
type Expression struct {
	tokens []Token
}

// True and False are the canonical constant expressions. Reduction returns
// these exact instances whenever an expression folds to a constant, so
// pointer comparison against them is valid after any public operation.
var (
	True  = &Expression{tokens: []Token{litToken(value.OfBool(true))}}
	False = &Expression{tokens: []Token{litToken(value.OfBool(false))}}
)

// Var returns the expression consisting of a single variable reference.
func Var(name string) *Expression {
	return &Expression{tokens: []Token{varToken(name)}}
}

// VarEq returns the reduced equality of a variable against a literal.
func VarEq(name string, v value.Value) *Expression {
	n, err := reduce(&tnode{op: OpEq, kids: []*tnode{leaf(varToken(name)), litNode(v)}})
	if err != nil {
		return &Expression{tokens: []Token{litToken(v), varToken(name), opToken(OpEq)}}
	}
	return fromTree(n)
}

// VarContains returns the reduced membership test of an item in a list
// variable.
func VarContains(name, item string) *Expression {
	n, err := reduce(&tnode{op: OpContains, kids: []*tnode{leaf(varToken(name)), litNode(value.OfString(item))}})
	if err != nil {
		return &Expression{tokens: []Token{varToken(name), litToken(value.OfString(item)), opToken(OpContains)}}
	}
	return fromTree(n)
}

// fromTree freezes a reduced tree into an Expression, canonicalizing the
// boolean constants to the shared singletons.
func fromTree(n *tnode) *Expression {
	if n.isBool(true) {
		return True
	}
	if n.isBool(false) {
		return False
	}
	return &Expression{tokens: n.tokens(nil)}
}

func (e *Expression) tree() *tnode {
	return toTree(e.tokens)
}

// Tokens returns the reverse Polish token sequence. The slice is a copy.
func (e *Expression) Tokens() []Token {
	cp := make([]Token, len(e.tokens))
	copy(cp, e.tokens)
	return cp
}

// IsTrue reports whether the expression is the constant TRUE.
func (e *Expression) IsTrue() bool {
	return e == True || len(e.tokens) == 1 && e.tokens[0].Equal(True.tokens[0])
}

// IsFalse reports whether the expression is the constant FALSE.
func (e *Expression) IsFalse() bool {
	return e == False || len(e.tokens) == 1 && e.tokens[0].Equal(False.tokens[0])
}

// And returns the reduced conjunction of e and o.
func (e *Expression) And(o *Expression) *Expression {
	return e.combine(OpAnd, o)
}

// Or returns the reduced disjunction of e and o.
func (e *Expression) Or(o *Expression) *Expression {
	return e.combine(OpOr, o)
}

func (e *Expression) combine(op Operator, o *Expression) *Expression {
	n, err := reduce(&tnode{op: op, kids: []*tnode{e.tree(), o.tree()}})
	if err != nil {
		// Reduced operands cannot introduce new foldable type errors;
		// keep the unreduced combination if they somehow do.
		return &Expression{tokens: append(append(append([]Token{}, e.tokens...), o.tokens...), opToken(op))}
	}
	return fromTree(n)
}

// Negate returns the reduced negation of e.
func (e *Expression) Negate() *Expression {
	n, err := reduceNot(e.tree())
	if err != nil {
		return &Expression{tokens: append(append([]Token{}, e.tokens...), opToken(OpNot))}
	}
	return fromTree(n)
}

// Inline substitutes variables with known values and reduces. Unknown
// variables stay symbolic. A substitution that makes a subtree fold into a
// type error fails with EvalError; callers keep the original expression in
// that case.
func (e *Expression) Inline(lookup Lookup) (*Expression, error) {
	var sub func(n *tnode) *tnode
	sub = func(n *tnode) *tnode {
		if n.leaf {
			if n.tok.Kind == TokenVariable {
				if v, ok := lookup(n.tok.Name); ok && v.IsPresent() {
					return litNode(v)
				}
			}
			return n
		}
		kids := make([]*tnode, len(n.kids))
		for i, k := range n.kids {
			kids[i] = sub(k)
		}
		return &tnode{op: n.op, kids: kids}
	}
	n, err := reduce(sub(e.tree()))
	if err != nil {
		return nil, err
	}
	return fromTree(n), nil
}

// Relativize simplifies the expression under the assumption that the
// antecedent holds: subtrees entailed by the antecedent collapse to TRUE,
// contradicted ones to FALSE.
func (e *Expression) Relativize(antecedent *Expression) *Expression {
	if antecedent.IsTrue() {
		return e
	}
	if antecedent.IsFalse() {
		return True
	}
	conjuncts := conjunctsOf(antecedent.tree())

	var sub func(n *tnode) *tnode
	sub = func(n *tnode) *tnode {
		for _, c := range conjuncts {
			if equalTrees(n, c) {
				return boolNode(true)
			}
			if negation(n, c) {
				return boolNode(false)
			}
		}
		if n.leaf {
			return n
		}
		kids := make([]*tnode, len(n.kids))
		for i, k := range n.kids {
			kids[i] = sub(k)
		}
		return &tnode{op: n.op, kids: kids}
	}
	rewritten := fromTreeOr(sub(e.tree()), e)

	// Conjuncts that pin a variable to a concrete value propagate into
	// the remaining terms as substitutions.
	pins := pinnedValues(conjuncts)
	if len(pins) == 0 {
		return rewritten
	}
	inlined, err := rewritten.Inline(func(name string) (value.Value, bool) {
		v, ok := pins[name]
		return v, ok
	})
	if err != nil {
		return rewritten
	}
	return inlined
}

func fromTreeOr(n *tnode, fallback *Expression) *Expression {
	r, err := reduce(n)
	if err != nil {
		return fallback
	}
	return fromTree(r)
}

// conjunctsOf flattens the top-level ∧ chain of a tree.
func conjunctsOf(n *tnode) []*tnode {
	if !n.leaf && n.op == OpAnd {
		var out []*tnode
		for _, k := range n.kids {
			out = append(out, conjunctsOf(k)...)
		}
		return out
	}
	return []*tnode{n}
}

// pinnedValues extracts variable assignments implied by conjuncts: an
// equality against a literal, a bare boolean variable, or its negation.
func pinnedValues(conjuncts []*tnode) map[string]value.Value {
	pins := map[string]value.Value{}
	for _, c := range conjuncts {
		switch {
		case c.leaf && c.tok.Kind == TokenVariable:
			pins[c.tok.Name] = value.OfBool(true)
		case !c.leaf && c.op == OpNot && c.kids[0].leaf && c.kids[0].tok.Kind == TokenVariable:
			pins[c.kids[0].tok.Name] = value.OfBool(false)
		case !c.leaf && c.op == OpEq:
			if name, v, ok := varEqLiteral(c); ok {
				pins[name] = v
			}
		}
	}
	return pins
}

func varEqLiteral(n *tnode) (string, value.Value, bool) {
	a, b := n.kids[0], n.kids[1]
	if a.leaf && a.tok.Kind == TokenLiteral && b.leaf && b.tok.Kind == TokenVariable {
		return b.tok.Name, a.tok.Value, true
	}
	if b.leaf && b.tok.Kind == TokenLiteral && a.leaf && a.tok.Kind == TokenVariable {
		return a.tok.Name, b.tok.Value, true
	}
	return "", value.Empty, false
}

// RewriteVars returns the expression with every variable name mapped
// through fn, reduced. Used to normalize references to absolute scope keys.
func (e *Expression) RewriteVars(fn func(string) string) *Expression {
	toks := e.Tokens()
	for i := range toks {
		if toks[i].Kind == TokenVariable {
			toks[i].Name = fn(toks[i].Name)
		}
	}
	n, err := reduce(toTree(toks))
	if err != nil {
		return &Expression{tokens: toks}
	}
	return fromTree(n)
}

// Variables returns the sorted set of variable names in the expression.
func (e *Expression) Variables() []string {
	seen := map[string]struct{}{}
	for _, t := range e.tokens {
		if t.Kind == TokenVariable {
			seen[t.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Equal reports structural equality. Both sides are already reduced, so a
// token-wise comparison suffices.
func (e *Expression) Equal(o *Expression) bool {
	return e.Compare(o) == 0
}

// Compare imposes a deterministic total order on expressions, used to sort
// file groups and transformations.
func (e *Expression) Compare(o *Expression) int {
	for i := 0; i < len(e.tokens) && i < len(o.tokens); i++ {
		if c := e.tokens[i].Compare(o.tokens[i]); c != 0 {
			return c
		}
	}
	return len(e.tokens) - len(o.tokens)
}

// Literal renders the canonical infix source form.
func (e *Expression) Literal() string {
	var render func(n *tnode, parentPrec int) string
	render = func(n *tnode, parentPrec int) string {
		if n.leaf {
			switch n.tok.Kind {
			case TokenVariable:
				return "${" + n.tok.Name + "}"
			default:
				return literalString(n.tok.Value)
			}
		}
		prec := n.op.precedence()
		var s string
		switch n.op.Arity() {
		case 1:
			if n.op == OpNot {
				s = "!" + render(n.kids[0], prec)
			} else {
				s = n.op.Symbol() + "(" + render(n.kids[0], 0) + ")"
			}
		default:
			s = render(n.kids[0], prec) + " " + n.op.Symbol() + " " + render(n.kids[1], prec+1)
		}
		if prec < parentPrec {
			return "(" + s + ")"
		}
		return s
	}
	return render(e.tree(), 0)
}

// String implements fmt.Stringer.
func (e *Expression) String() string {
	return e.Literal()
}

// Join reduces a slice of expressions with the given connective; the empty
// slice yields the connective's identity.
func Join(op Operator, exprs []*Expression) *Expression {
	acc := True
	if op == OpOr {
		acc = False
	}
	for i, x := range exprs {
		if i == 0 {
			acc = x
			continue
		}
		if op == OpOr {
			acc = acc.Or(x)
		} else {
			acc = acc.And(x)
		}
	}
	return acc
}
