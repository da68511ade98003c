package smt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jortvanleenen/Octopus/pkg/formula"
)

// Script renders a complete SMT-LIB2 query for f: variable declarations, the
// assertion, a check-sat, and a get-value for valueVars when a model is
// wanted. Every variable is declared, including value variables that do not
// occur in f.
func Script(f formula.Formula, valueVars []*formula.Var) (string, error) {
	vars := make(map[string]*formula.Var)
	formula.FormulaVars(f, vars)
	for _, v := range valueVars {
		vars[v.Name] = v
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	if len(valueVars) > 0 {
		b.WriteString("(set-option :produce-models true)\n")
	}
	b.WriteString("(set-logic QF_BV)\n")
	for _, name := range names {
		fmt.Fprintf(&b, "(declare-const %s (_ BitVec %d))\n", name, vars[name].Bits)
	}
	body, err := renderFormula(f)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "(assert %s)\n", body)
	b.WriteString("(check-sat)\n")
	if len(valueVars) > 0 {
		b.WriteString("(get-value (")
		for i, v := range valueVars {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(v.Name)
		}
		b.WriteString("))\n")
	}
	return b.String(), nil
}

func renderFormula(f formula.Formula) (string, error) {
	switch n := f.(type) {
	case formula.True:
		return "true", nil
	case *formula.And:
		l, err := renderFormula(n.Left)
		if err != nil {
			return "", err
		}
		r, err := renderFormula(n.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(and %s %s)", l, r), nil
	case *formula.Not:
		sub, err := renderFormula(n.Sub)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(not %s)", sub), nil
	case *formula.Equals:
		l, err := renderExpr(n.Left)
		if err != nil {
			return "", err
		}
		r, err := renderExpr(n.Right)
		if err != nil {
			return "", err
		}
		if n.Left.Width() != n.Right.Width() {
			return "", fmt.Errorf("equality over widths %d and %d", n.Left.Width(), n.Right.Width())
		}
		return fmt.Sprintf("(= %s %s)", l, r), nil
	default:
		return "", fmt.Errorf("cannot lower formula node %T", f)
	}
}

func renderExpr(e formula.Expr) (string, error) {
	switch n := e.(type) {
	case *formula.Var:
		return n.Name, nil
	case *formula.Const:
		return fmt.Sprintf("(_ bv%s %d)", n.Value.String(), n.Bits), nil
	case *formula.Concat:
		l, err := renderExpr(n.Left)
		if err != nil {
			return "", err
		}
		r, err := renderExpr(n.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(concat %s %s)", l, r), nil
	case *formula.Slice:
		inner, err := renderExpr(n.Inner)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("((_ extract %d %d) %s)", n.Hi, n.Lo, inner), nil
	case *formula.BVAnd:
		l, err := renderExpr(n.Left)
		if err != nil {
			return "", err
		}
		r, err := renderExpr(n.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(bvand %s %s)", l, r), nil
	case *formula.BVLShr:
		l, err := renderExpr(n.Left)
		if err != nil {
			return "", err
		}
		r, err := renderExpr(n.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(bvlshr %s %s)", l, r), nil
	case *formula.Reference:
		return "", fmt.Errorf("unresolved reference %s reached the solver boundary", n)
	case formula.DontCare:
		return "", fmt.Errorf("wildcard reached the solver boundary")
	default:
		return "", fmt.Errorf("cannot lower expression node %T", e)
	}
}
