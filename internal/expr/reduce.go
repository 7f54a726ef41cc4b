package expr

import (
	"sort"

	"github.com/oxhq/archc/internal/value"
)

// tnode is the internal tree form used for structural rewrites. Leaves hold
// a literal or variable token; interior nodes hold an operator.
type tnode struct {
	leaf bool
	tok  Token
	op   Operator
	kids []*tnode
}

func leaf(t Token) *tnode {
	return &tnode{leaf: true, tok: t}
}

func litNode(v value.Value) *tnode {
	return leaf(litToken(v))
}

func boolNode(b bool) *tnode {
	return litNode(value.OfBool(b))
}

func (n *tnode) isBool(b bool) bool {
	if !n.leaf || n.tok.Kind != TokenLiteral {
		return false
	}
	got, err := n.tok.Value.AsBool()
	return err == nil && n.tok.Value.Kind() == value.KindBoolean && got == b
}

func (n *tnode) isLiteral() bool {
	return n.leaf && n.tok.Kind == TokenLiteral
}

// tokens flattens the tree to reverse Polish order.
func (n *tnode) tokens(out []Token) []Token {
	if n.leaf {
		return append(out, n.tok)
	}
	for _, k := range n.kids {
		out = k.tokens(out)
	}
	return append(out, opToken(n.op))
}

// toTree rebuilds the tree form from a reverse Polish token sequence. The
// sequence is trusted to be well-formed; Expressions are only built from
// reduced trees.
func toTree(tokens []Token) *tnode {
	var stack []*tnode
	for _, t := range tokens {
		if t.Kind != TokenOperator {
			stack = append(stack, leaf(t))
			continue
		}
		n := t.Op.Arity()
		kids := make([]*tnode, n)
		copy(kids, stack[len(stack)-n:])
		stack = stack[:len(stack)-n]
		stack = append(stack, &tnode{op: t.Op, kids: kids})
	}
	return stack[len(stack)-1]
}

func compareTrees(a, b *tnode) int {
	at := a.tokens(nil)
	bt := b.tokens(nil)
	for i := 0; i < len(at) && i < len(bt); i++ {
		if c := at[i].Compare(bt[i]); c != 0 {
			return c
		}
	}
	return len(at) - len(bt)
}

func equalTrees(a, b *tnode) bool {
	return compareTrees(a, b) == 0
}

// negation reports whether a is structurally ¬b or b is ¬a.
func negation(a, b *tnode) bool {
	if !a.leaf && a.op == OpNot && equalTrees(a.kids[0], b) {
		return true
	}
	if !b.leaf && b.op == OpNot && equalTrees(b.kids[0], a) {
		return true
	}
	return false
}

// reduce rewrites the tree to the canonical reduced form: constants folded,
// trivial identities removed, double negations collapsed, commutative
// operands ordered, idempotent and absorbed terms dropped. Reduction is a
// fixed point: reduce(reduce(n)) == reduce(n).
func reduce(n *tnode) (*tnode, error) {
	if n.leaf {
		return n, nil
	}
	kids := make([]*tnode, len(n.kids))
	for i, k := range n.kids {
		rk, err := reduce(k)
		if err != nil {
			return nil, err
		}
		kids[i] = rk
	}
	switch n.op {
	case OpAnd, OpOr:
		return reduceJunction(n.op, kids)
	case OpNot:
		return reduceNot(kids[0])
	default:
		return reduceApply(n.op, kids)
	}
}

// reduceJunction canonicalizes an ∧/∨ node: flatten same-op chains, fold
// constants, drop duplicates, detect complementary pairs, apply absorption,
// then order operands.
func reduceJunction(op Operator, kids []*tnode) (*tnode, error) {
	short := op == OpOr // the short-circuit constant: ⊥ for ∧, ⊤ for ∨
	var flat []*tnode
	var gather func(n *tnode)
	gather = func(n *tnode) {
		if !n.leaf && n.op == op {
			for _, k := range n.kids {
				gather(k)
			}
			return
		}
		flat = append(flat, n)
	}
	for _, k := range kids {
		gather(k)
	}

	var terms []*tnode
	for _, k := range flat {
		if k.isBool(short) {
			return boolNode(short), nil
		}
		if k.isBool(!short) {
			continue // identity element
		}
		dup := false
		for _, t := range terms {
			if equalTrees(t, k) {
				dup = true
				break
			}
			if negation(t, k) {
				return boolNode(short), nil
			}
		}
		if !dup {
			terms = append(terms, k)
		}
	}

	terms = absorb(op, terms)

	switch len(terms) {
	case 0:
		return boolNode(!short), nil
	case 1:
		return terms[0], nil
	}
	sort.SliceStable(terms, func(i, j int) bool {
		return compareTrees(terms[i], terms[j]) < 0
	})
	node := terms[0]
	for _, t := range terms[1:] {
		node = &tnode{op: op, kids: []*tnode{node, t}}
	}
	return node, nil
}

// absorb drops terms swallowed by absorption: for ∧, a term (x∨y) is
// dropped when x is also a conjunct; dually for ∨.
func absorb(op Operator, terms []*tnode) []*tnode {
	dual := OpOr
	if op == OpOr {
		dual = OpAnd
	}
	keep := make([]*tnode, 0, len(terms))
	for _, t := range terms {
		absorbed := false
		if !t.leaf && t.op == dual {
			var parts []*tnode
			var gather func(n *tnode)
			gather = func(n *tnode) {
				if !n.leaf && n.op == dual {
					for _, k := range n.kids {
						gather(k)
					}
					return
				}
				parts = append(parts, n)
			}
			gather(t)
			for _, other := range terms {
				if other == t {
					continue
				}
				for _, p := range parts {
					if equalTrees(p, other) {
						absorbed = true
						break
					}
				}
				if absorbed {
					break
				}
			}
		}
		if !absorbed {
			keep = append(keep, t)
		}
	}
	return keep
}

// reduceNot collapses double negation, folds constants, and applies the
// shrinking direction of De Morgan (all operands already negated).
func reduceNot(child *tnode) (*tnode, error) {
	if !child.leaf && child.op == OpNot {
		return child.kids[0], nil
	}
	if child.isLiteral() {
		b, err := child.tok.Value.AsBool()
		if err != nil {
			return nil, evalErrorf("!: %v", err)
		}
		return boolNode(!b), nil
	}
	if !child.leaf {
		switch child.op {
		case OpEq:
			return reduceApply(OpNe, child.kids)
		case OpNe:
			return reduceApply(OpEq, child.kids)
		case OpAnd, OpOr:
			if allNegated(child) {
				dual := OpAnd
				if child.op == OpAnd {
					dual = OpOr
				}
				flipped := make([]*tnode, len(child.kids))
				for i, k := range child.kids {
					f, err := reduceNot(k)
					if err != nil {
						return nil, err
					}
					flipped[i] = f
				}
				return reduceJunction(dual, flipped)
			}
		}
	}
	return &tnode{op: OpNot, kids: []*tnode{child}}, nil
}

// allNegated reports whether every operand of an ∧/∨ chain is a negation,
// so that De Morgan strictly shrinks the token count.
func allNegated(n *tnode) bool {
	if n.leaf {
		return false
	}
	if n.op == OpAnd || n.op == OpOr {
		for _, k := range n.kids {
			if !allNegated(k) && !(!k.leaf && k.op == OpNot) {
				return false
			}
		}
		return true
	}
	return n.op == OpNot
}

// reduceApply handles comparison and coercion operators: constant operands
// fold to a literal, commutative operands are ordered, everything else is
// rebuilt as-is.
func reduceApply(op Operator, kids []*tnode) (*tnode, error) {
	allLit := true
	for _, k := range kids {
		if !k.isLiteral() {
			allLit = false
			break
		}
	}
	if allLit {
		vals := make([]value.Value, len(kids))
		for i, k := range kids {
			vals[i] = k.tok.Value
		}
		folded, err := applyOperator(op, vals)
		if err != nil {
			return nil, err
		}
		return litNode(folded), nil
	}
	ordered := kids
	if op.commutative() && len(kids) == 2 && compareTrees(kids[0], kids[1]) > 0 {
		ordered = []*tnode{kids[1], kids[0]}
	}
	// x == x and x != x fold even when x is not a literal.
	if (op == OpEq || op == OpNe) && equalTrees(kids[0], kids[1]) {
		return boolNode(op == OpEq), nil
	}
	return &tnode{op: op, kids: ordered}, nil
}
