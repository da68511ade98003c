// Package constraint compiles the user-facing relation language into
// bit-vector predicates over the two sides' header-field variables. A
// relation such as
//
//	hdr_l.ipv4.src == hdr_r.ipv4.src and hdr_r.eth.type != 0x0800_16
//
// constrains the accepting or disagreeing pairs the bisimulation reports.
// The AST is intentionally simple to keep evaluation predictable and fast.
package constraint

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/jortvanleenen/Octopus/pkg/formula"
)

// ErrUnsafeExpression marks any syntactic construct outside the relation
// grammar. Compilation errors are fatal before the engine runs.
var ErrUnsafeExpression = errors.New("unsafe expression")

// Constraint is a compiled relation, instantiated against a pure formula at
// query time.
type Constraint struct {
	source string
	root   boolNode
}

// Compile parses a relation expression. The grammar:
//
//	or     := and ("or" and)*
//	and    := cmp ("and" cmp)*
//	cmp    := "(" or ")" | value ("==" | "!=") value
//	value  := term ("+" term)*                      // + is concatenation
//	term   := literal | field | term "[" hi ":" lo "]"
//	literal:= <value> "_" <bitwidth>                // e.g. 0x4503_16
//	field  := ("hdr_l." | "hdr_r.") dotted-name
func Compile(source string) (*Constraint, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty relation", ErrUnsafeExpression)
	}
	p := &parser{input: trimmed}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if !p.eof() {
		return nil, fmt.Errorf("%w: unexpected token at position %d", ErrUnsafeExpression, p.pos+1)
	}
	return &Constraint{source: trimmed, root: root}, nil
}

// Sides carries the store parameter names the hdr_l/hdr_r prefixes map to.
type Sides struct {
	OutputLeft  string
	OutputRight string
}

// Formula instantiates the relation against pf. The second return value is
// false when every comparison touches only unresolved fields, in which case
// the relation is omitted (trivially satisfied). A comparison with exactly
// one resolved side evaluates to false.
func (c *Constraint) Formula(pf *formula.PureFormula, sides Sides) (formula.Formula, bool, error) {
	f, known, err := c.root.eval(pf, sides)
	if err != nil {
		return nil, false, err
	}
	if !known {
		return nil, false, nil
	}
	return f, true, nil
}

func (c *Constraint) String() string { return c.source }

// boolNode is a boolean-valued relation node. eval returns known=false when
// the node's value is undetermined because its fields are unresolved.
type boolNode interface {
	eval(pf *formula.PureFormula, sides Sides) (f formula.Formula, known bool, err error)
}

// valueNode is a bit-vector-valued relation node. eval returns resolved=false
// when a referenced field carries no variable in the pure formula.
type valueNode interface {
	eval(pf *formula.PureFormula, sides Sides) (e formula.Expr, resolved bool, err error)
}

// binaryBoolNode represents both "and" and "or".
type binaryBoolNode struct {
	op    string
	left  boolNode
	right boolNode
}

func (n *binaryBoolNode) eval(pf *formula.PureFormula, sides Sides) (formula.Formula, bool, error) {
	l, lKnown, err := n.left.eval(pf, sides)
	if err != nil {
		return nil, false, err
	}
	r, rKnown, err := n.right.eval(pf, sides)
	if err != nil {
		return nil, false, err
	}
	if lKnown != rKnown {
		return formula.False(), true, nil
	}
	if !lKnown {
		return nil, false, nil
	}
	if n.op == "and" {
		return formula.Conj(l, r), true, nil
	}
	return formula.Disj(l, r), true, nil
}

// compareNode represents == and !=.
type compareNode struct {
	op    string
	left  valueNode
	right valueNode
}

func (n *compareNode) eval(pf *formula.PureFormula, sides Sides) (formula.Formula, bool, error) {
	l, lResolved, err := n.left.eval(pf, sides)
	if err != nil {
		return nil, false, err
	}
	r, rResolved, err := n.right.eval(pf, sides)
	if err != nil {
		return nil, false, err
	}
	if lResolved != rResolved {
		return formula.False(), true, nil
	}
	if !lResolved {
		return nil, false, nil
	}
	if l.Width() != r.Width() {
		return nil, false, fmt.Errorf("%w: comparison of widths %d and %d", ErrUnsafeExpression, l.Width(), r.Width())
	}
	eq := &formula.Equals{Left: l, Right: r}
	if n.op == "!=" {
		return &formula.Not{Sub: eq}, true, nil
	}
	return eq, true, nil
}

// literalNode is a width-annotated constant.
type literalNode struct {
	value *big.Int
	bits  int
}

func (n *literalNode) eval(*formula.PureFormula, Sides) (formula.Expr, bool, error) {
	return formula.NewConst(n.value, n.bits), true, nil
}

// fieldNode names one side's header field.
type fieldNode struct {
	left bool
	path string
}

func (n *fieldNode) eval(pf *formula.PureFormula, sides Sides) (formula.Expr, bool, error) {
	prefix := sides.OutputRight
	if n.left {
		prefix = sides.OutputLeft
	}
	v := pf.HeaderVar(prefix+"."+n.path, n.left)
	if v == nil {
		return nil, false, nil
	}
	return v, true, nil
}

// concatNode joins values with +, the leftmost part most significant.
type concatNode struct {
	left  valueNode
	right valueNode
}

func (n *concatNode) eval(pf *formula.PureFormula, sides Sides) (formula.Expr, bool, error) {
	l, lResolved, err := n.left.eval(pf, sides)
	if err != nil {
		return nil, false, err
	}
	r, rResolved, err := n.right.eval(pf, sides)
	if err != nil {
		return nil, false, err
	}
	if !lResolved || !rResolved {
		return nil, false, nil
	}
	return &formula.Concat{Left: l, Right: r}, true, nil
}

// sliceNode selects the inclusive bit range [lo, hi] of its base.
type sliceNode struct {
	base valueNode
	hi   int
	lo   int
}

func (n *sliceNode) eval(pf *formula.PureFormula, sides Sides) (formula.Expr, bool, error) {
	base, resolved, err := n.base.eval(pf, sides)
	if err != nil {
		return nil, false, err
	}
	if !resolved {
		return nil, false, nil
	}
	s, err := formula.NewSlice(base, n.hi, n.lo)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnsafeExpression, err)
	}
	return s, true, nil
}
