package formula

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExprWidths(t *testing.T) {
	a := &Var{Name: "a", Bits: 8}
	b := &Var{Name: "b", Bits: 4}

	assert.Equal(t, 12, (&Concat{Left: a, Right: b}).Width())
	assert.Equal(t, 8, (&BVAnd{Left: a, Right: a}).Width())
	assert.Equal(t, 8, (&BVLShr{Left: a, Right: a}).Width())
	assert.Equal(t, 16, NewConstUint64(0x4503, 16).Width())
	assert.Equal(t, 16, (&Reference{Path: "h.eth.type", Left: true, Bits: 16}).Width())

	s, err := NewSlice(a, 7, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Width())
}

func TestNewSliceBounds(t *testing.T) {
	a := &Var{Name: "a", Bits: 8}

	_, err := NewSlice(a, 3, 5)
	assert.Error(t, err)

	_, err = NewSlice(a, 8, 0)
	assert.Error(t, err)

	_, err = NewSlice(a, 7, -1)
	assert.Error(t, err)
}

func TestSubstituteIsIdempotent(t *testing.T) {
	a := &Var{Name: "a", Bits: 8}
	b := &Var{Name: "b", Bits: 4}
	c := &Var{Name: "c", Bits: 4}
	expr := &Concat{Left: a, Right: &BVAnd{Left: b, Right: b}}

	mapping := map[string]Expr{
		"a": &Concat{Left: b, Right: c},
		"b": c,
	}

	once := Substitute(expr, mapping)
	twice := Substitute(once, mapping)
	assert.Equal(t, once.String(), twice.String())
	assert.Equal(t, expr.Width(), once.Width())
}

func TestSubstituteLeavesOriginalIntact(t *testing.T) {
	a := &Var{Name: "a", Bits: 8}
	expr := &Concat{Left: a, Right: a}

	out := Substitute(expr, map[string]Expr{"a": NewConstUint64(1, 8)})

	assert.Equal(t, "(a(8) ++ a(8))", expr.String())
	assert.Equal(t, "(0x1(8) ++ 0x1(8))", out.String())
}

func TestResolveBindsReferences(t *testing.T) {
	pf := NewPureFormula()
	v := &Var{Name: "v0", Bits: 16}
	pf.SetHeaderVar("h.eth.type", true, v)

	ref := &Reference{Path: "h.eth.type", Left: true, Bits: 16}
	resolved, err := Resolve(&BVAnd{Left: ref, Right: NewConstUint64(0xff, 16)}, pf)
	require.NoError(t, err)

	vars := make(map[string]*Var)
	ExprVars(resolved, vars)
	assert.Contains(t, vars, "v0")
}

func TestResolveUnboundReference(t *testing.T) {
	pf := NewPureFormula()
	ref := &Reference{Path: "h.eth.type", Left: false, Bits: 16}

	_, err := Resolve(ref, pf)
	require.ErrorIs(t, err, ErrUnboundReference)
}

func TestResolveIsSideAware(t *testing.T) {
	pf := NewPureFormula()
	l := &Var{Name: "l", Bits: 8}
	r := &Var{Name: "r", Bits: 8}
	pf.SetHeaderVar("h.x", true, l)
	pf.SetHeaderVar("h.x", false, r)

	got, err := Resolve(&Reference{Path: "h.x", Left: false, Bits: 8}, pf)
	require.NoError(t, err)
	assert.Same(t, r, got)
}

func TestConstKeepsValueCopy(t *testing.T) {
	v := big.NewInt(0x45)
	c := NewConst(v, 8)
	v.SetInt64(0)
	assert.Equal(t, int64(0x45), c.Value.Int64())
}
