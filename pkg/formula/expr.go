// Package formula implements the symbolic machinery of the equivalence
// checker: width-typed bit-vector expressions, boolean formulas over them,
// fresh-variable management, and the pure/guarded formula containers consumed
// by the bisimulation engine.
//
// Expression and formula nodes are immutable value trees. Operations that
// change a tree (substitution, reference resolution) return fresh trees, so
// sharing subtrees between formulas is always safe.
package formula

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrUnboundReference is returned when a header reference is resolved against
// a pure formula that carries no variable for it.
var ErrUnboundReference = errors.New("reference is not bound in the pure formula")

// Expr is a bit-vector expression node with a width determinable without
// context.
type Expr interface {
	// Width returns the bit width of the expression.
	Width() int
	fmt.Stringer
}

// Var is a named bit-vector variable. Two variables are the same variable
// exactly when their names are equal; the Manager guarantees run-wide unique
// names.
type Var struct {
	Name string
	Bits int
}

// Width implements Expr.
func (v *Var) Width() int { return v.Bits }

func (v *Var) String() string { return fmt.Sprintf("%s(%d)", v.Name, v.Bits) }

// Const is a bit-vector constant. Its width is inherited from the surrounding
// context (the counterpart of an equality, the matching selector) at parse
// time and fixed from then on.
type Const struct {
	Value *big.Int
	Bits  int
}

// NewConst builds a constant of the given width from a non-negative value.
func NewConst(value *big.Int, bits int) *Const {
	return &Const{Value: new(big.Int).Set(value), Bits: bits}
}

// NewConstUint64 builds a constant of the given width from a uint64.
func NewConstUint64(value uint64, bits int) *Const {
	return &Const{Value: new(big.Int).SetUint64(value), Bits: bits}
}

// Width implements Expr.
func (c *Const) Width() int { return c.Bits }

func (c *Const) String() string { return fmt.Sprintf("%#x(%d)", c.Value, c.Bits) }

// Concat is the bit-vector concatenation of two expressions, Left holding the
// most significant bits.
type Concat struct {
	Left  Expr
	Right Expr
}

// Width implements Expr.
func (c *Concat) Width() int { return c.Left.Width() + c.Right.Width() }

func (c *Concat) String() string { return fmt.Sprintf("(%s ++ %s)", c.Left, c.Right) }

// Slice selects the inclusive bit range [Lo, Hi] of Inner, bit 0 being the
// least significant.
type Slice struct {
	Inner Expr
	Hi    int
	Lo    int
}

// NewSlice validates the slice bounds against the inner expression.
func NewSlice(inner Expr, hi, lo int) (*Slice, error) {
	if lo < 0 || hi < lo {
		return nil, fmt.Errorf("invalid slice range [%d:%d]", hi, lo)
	}
	if hi >= inner.Width() {
		return nil, fmt.Errorf("slice [%d:%d] out of bounds for width %d", hi, lo, inner.Width())
	}
	return &Slice{Inner: inner, Hi: hi, Lo: lo}, nil
}

// Width implements Expr.
func (s *Slice) Width() int { return s.Hi - s.Lo + 1 }

func (s *Slice) String() string { return fmt.Sprintf("%s[%d:%d]", s.Inner, s.Hi, s.Lo) }

// BVAnd is the bitwise conjunction of two equal-width expressions.
type BVAnd struct {
	Left  Expr
	Right Expr
}

// Width implements Expr.
func (b *BVAnd) Width() int { return b.Left.Width() }

func (b *BVAnd) String() string { return fmt.Sprintf("(%s & %s)", b.Left, b.Right) }

// BVLShr is the logical right shift of Left by Right.
type BVLShr struct {
	Left  Expr
	Right Expr
}

// Width implements Expr.
func (b *BVLShr) Width() int { return b.Left.Width() }

func (b *BVLShr) String() string { return fmt.Sprintf("(%s >> %s)", b.Left, b.Right) }

// Reference is a symbolic pointer to a header field of one side's store. It
// carries the dotted store path and the IR-declared width; Resolve binds it
// to the variable currently installed for that field.
type Reference struct {
	Path string
	Left bool
	Bits int
}

// Width implements Expr.
func (r *Reference) Width() int { return r.Bits }

func (r *Reference) String() string {
	side := "R"
	if r.Left {
		side = "L"
	}
	return fmt.Sprintf("%s<%s>", r.Path, side)
}

// DontCare is the select-pattern wildcard. It matches any value and carries
// no width of its own.
type DontCare struct{}

// Width implements Expr.
func (DontCare) Width() int { return 0 }

func (DontCare) String() string { return "_" }

// Substitute returns e with every variable that occurs in mapping replaced by
// its image. Each image is itself rewritten with the rest of the mapping (the
// replaced variable excluded), so applying an acyclic mapping a second time
// changes nothing. Trees are immutable, so the operation is capture-free.
func Substitute(e Expr, mapping map[string]Expr) Expr {
	switch n := e.(type) {
	case *Var:
		if repl, ok := mapping[n.Name]; ok {
			rest := make(map[string]Expr, len(mapping)-1)
			for name, image := range mapping {
				if name != n.Name {
					rest[name] = image
				}
			}
			return Substitute(repl, rest)
		}
		return n
	case *Const, *Reference, DontCare:
		return e
	case *Concat:
		return &Concat{Left: Substitute(n.Left, mapping), Right: Substitute(n.Right, mapping)}
	case *Slice:
		return &Slice{Inner: Substitute(n.Inner, mapping), Hi: n.Hi, Lo: n.Lo}
	case *BVAnd:
		return &BVAnd{Left: Substitute(n.Left, mapping), Right: Substitute(n.Right, mapping)}
	case *BVLShr:
		return &BVLShr{Left: Substitute(n.Left, mapping), Right: Substitute(n.Right, mapping)}
	default:
		panic(fmt.Sprintf("formula: unknown expression node %T", e))
	}
}

// Resolve returns e with every Reference replaced by the variable the pure
// formula currently holds for it. The result contains no Reference nodes.
func Resolve(e Expr, pf *PureFormula) (Expr, error) {
	switch n := e.(type) {
	case *Reference:
		v := pf.HeaderVar(n.Path, n.Left)
		if v == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnboundReference, n.Path)
		}
		return v, nil
	case *Var, *Const, DontCare:
		return e, nil
	case *Concat:
		l, err := Resolve(n.Left, pf)
		if err != nil {
			return nil, err
		}
		r, err := Resolve(n.Right, pf)
		if err != nil {
			return nil, err
		}
		return &Concat{Left: l, Right: r}, nil
	case *Slice:
		inner, err := Resolve(n.Inner, pf)
		if err != nil {
			return nil, err
		}
		return &Slice{Inner: inner, Hi: n.Hi, Lo: n.Lo}, nil
	case *BVAnd:
		l, err := Resolve(n.Left, pf)
		if err != nil {
			return nil, err
		}
		r, err := Resolve(n.Right, pf)
		if err != nil {
			return nil, err
		}
		return &BVAnd{Left: l, Right: r}, nil
	case *BVLShr:
		l, err := Resolve(n.Left, pf)
		if err != nil {
			return nil, err
		}
		r, err := Resolve(n.Right, pf)
		if err != nil {
			return nil, err
		}
		return &BVLShr{Left: l, Right: r}, nil
	default:
		panic(fmt.Sprintf("formula: unknown expression node %T", e))
	}
}

// ExprVars collects the variables occurring in e into vars, keyed by name.
func ExprVars(e Expr, vars map[string]*Var) {
	switch n := e.(type) {
	case *Var:
		vars[n.Name] = n
	case *Const, *Reference, DontCare:
	case *Concat:
		ExprVars(n.Left, vars)
		ExprVars(n.Right, vars)
	case *Slice:
		ExprVars(n.Inner, vars)
	case *BVAnd:
		ExprVars(n.Left, vars)
		ExprVars(n.Right, vars)
	case *BVLShr:
		ExprVars(n.Left, vars)
		ExprVars(n.Right, vars)
	default:
		panic(fmt.Sprintf("formula: unknown expression node %T", e))
	}
}
