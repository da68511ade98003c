package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jortvanleenen/Octopus/pkg/formula"
)

var testSides = Sides{OutputLeft: "h", OutputRight: "g"}

func resolvedPF(t *testing.T) *formula.PureFormula {
	t.Helper()
	m := formula.NewManager()
	pf := formula.NewPureFormula()
	pf.SetHeaderVar("h.eth.type", true, m.Fresh(16))
	pf.SetHeaderVar("g.eth.type", false, m.Fresh(16))
	pf.SetHeaderVar("h.ipv4.src", true, m.Fresh(32))
	pf.SetHeaderVar("g.ipv4.src", false, m.Fresh(32))
	return pf
}

func TestCompileRejectsUnsafeSyntax(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", "   "},
		{"constant without width", "hdr_l.eth.type == 0x0800"},
		{"bare value", "hdr_l.eth.type"},
		{"unknown prefix", "pkt.eth.type == 0x1_16"},
		{"trailing garbage", "hdr_l.eth.type == 0x1_16 garbage"},
		{"unclosed paren", "(hdr_l.eth.type == 0x1_16"},
		{"bad slice", "hdr_l.eth.type[3:8] == 0x1_4"},
		{"unsupported operator", "hdr_l.eth.type < 0x1_16"},
		{"oversized constant", "hdr_l.eth.type == 0x10000_16"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.expr)
			assert.ErrorIs(t, err, ErrUnsafeExpression)
		})
	}
}

func TestCompileAcceptsRelationLanguage(t *testing.T) {
	exprs := []string{
		"hdr_l.eth.type == 0x0800_16",
		"hdr_r.eth.type != 0x0800_16 and hdr_r.eth.type != 0x86dd_16",
		"hdr_l.ipv4.src == hdr_r.ipv4.src or hdr_l.eth.type == hdr_r.eth.type",
		"(hdr_l.eth.type == 0x0800_16 or hdr_l.eth.type == 0x86dd_16) and hdr_r.eth.type == hdr_l.eth.type",
		"hdr_l.ipv4.src[31:16] + hdr_l.ipv4.src[15:0] == hdr_r.ipv4.src",
		"hdr_l.eth.type == 2048_16",
		"hdr_l.eth.type[3:0] == 0b0101_4",
	}
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			_, err := Compile(expr)
			assert.NoError(t, err)
		})
	}
}

func TestFormulaOverResolvedFields(t *testing.T) {
	pf := resolvedPF(t)
	c, err := Compile("hdr_r.eth.type != 0x0800_16")
	require.NoError(t, err)

	f, ok, err := c.Formula(pf, testSides)
	require.NoError(t, err)
	require.True(t, ok)

	vars := make(map[string]*formula.Var)
	formula.FormulaVars(f, vars)
	assert.Contains(t, vars, pf.HeaderVar("g.eth.type", false).Name)
	assert.Contains(t, f.String(), "~(")
}

func TestFormulaOmittedWhenFullyUnresolved(t *testing.T) {
	pf := formula.NewPureFormula()
	c, err := Compile("hdr_l.vlan.id == hdr_r.vlan.id")
	require.NoError(t, err)

	_, ok, err := c.Formula(pf, testSides)
	require.NoError(t, err)
	assert.False(t, ok, "a relation over only unresolved fields is omitted")
}

func TestFormulaHalfResolvedComparisonIsFalse(t *testing.T) {
	pf := resolvedPF(t)
	c, err := Compile("hdr_l.eth.type == hdr_r.vlan.id")
	require.NoError(t, err)

	f, ok, err := c.Formula(pf, testSides)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, formula.False().String(), f.String())
}

func TestFormulaHalfResolvedBooleanIsFalse(t *testing.T) {
	pf := resolvedPF(t)
	c, err := Compile("hdr_l.eth.type == 0x1_16 and hdr_l.vlan.id == hdr_r.vlan.id")
	require.NoError(t, err)

	f, ok, err := c.Formula(pf, testSides)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, formula.False().String(), f.String())
}

func TestFormulaWidthMismatch(t *testing.T) {
	pf := resolvedPF(t)
	c, err := Compile("hdr_l.eth.type == hdr_r.ipv4.src")
	require.NoError(t, err)

	_, _, err = c.Formula(pf, testSides)
	assert.ErrorIs(t, err, ErrUnsafeExpression)
}

func TestConcatenationWidths(t *testing.T) {
	pf := resolvedPF(t)
	c, err := Compile("hdr_l.eth.type + hdr_l.eth.type == hdr_r.ipv4.src")
	require.NoError(t, err)

	f, ok, err := c.Formula(pf, testSides)
	require.NoError(t, err)
	require.True(t, ok)

	eq, isEq := f.(*formula.Equals)
	require.True(t, isEq)
	assert.Equal(t, 32, eq.Left.Width())
}
