package program

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jortvanleenen/Octopus/pkg/formula"
)

// Case is one ordered arm of a select expression.
type Case struct {
	Patterns []formula.Expr
	Target   string
}

// TransitionBlock is the select expression of a parser state. Either
// Selectors is empty and there is a single wildcard case (a direct
// transition), or every case's pattern widths match the selectors
// componentwise.
type TransitionBlock struct {
	Selectors []formula.Expr
	Cases     []Case
}

// SymbolicCase pairs the guard under which a transition fires with its
// target state.
type SymbolicCase struct {
	Guard  formula.Formula
	Target string
}

// parseTransitionBlock lowers a selectExpression node. Unusual shapes are
// warnings, not errors: a block that yields no cases falls through to
// reject, which is what a P4 select with nothing matching does anyway.
func (p *Program) parseTransitionBlock(selectExpr node) (*TransitionBlock, error) {
	block := &TransitionBlock{}
	if selectExpr == nil {
		p.logger.Warn("state without selectExpression, treating as reject")
		return block, nil
	}
	switch selectExpr.nodeType() {
	case "PathExpression":
		block.Cases = append(block.Cases, Case{
			Patterns: []formula.Expr{formula.DontCare{}},
			Target:   selectExpr.pathName(),
		})
		return block, nil

	case "SelectExpression":
		sel := selectExpr.child("select")
		if sel == nil {
			return nil, fmt.Errorf("%w: select expression without selectors", ErrMalformedIR)
		}
		for _, comp := range sel.vec("components") {
			expr, err := p.parseExpression(comp, 0)
			if err != nil {
				return nil, err
			}
			block.Selectors = append(block.Selectors, expr)
		}
		for _, c := range selectExpr.vec("selectCases") {
			target := c.child("state").pathName()
			if target == "" {
				return nil, fmt.Errorf("%w: select case without target state", ErrMalformedIR)
			}
			keyset := c.child("keyset")
			if keyset == nil {
				return nil, fmt.Errorf("%w: select case without keyset", ErrMalformedIR)
			}
			var patterns []formula.Expr
			if keyset.nodeType() == "ListExpression" {
				for i, el := range keyset.vec("components") {
					if i >= len(block.Selectors) {
						return nil, fmt.Errorf("%w: keyset wider than selector list", ErrMalformedIR)
					}
					expr, err := p.parseExpression(el, block.Selectors[i].Width())
					if err != nil {
						return nil, err
					}
					patterns = append(patterns, expr)
				}
			} else {
				if len(block.Selectors) == 0 {
					return nil, fmt.Errorf("%w: keyset present without selectors", ErrMalformedIR)
				}
				expr, err := p.parseExpression(keyset, block.Selectors[0].Width())
				if err != nil {
					return nil, err
				}
				patterns = append(patterns, expr)
			}
			if len(patterns) != len(block.Selectors) {
				return nil, fmt.Errorf("%w: case for %q has %d patterns for %d selectors",
					ErrMalformedIR, target, len(patterns), len(block.Selectors))
			}
			block.Cases = append(block.Cases, Case{Patterns: patterns, Target: target})
		}
		return block, nil

	default:
		p.logger.Warn("ignoring selectExpression of unknown type",
			zap.String("node_type", selectExpr.nodeType()))
		return block, nil
	}
}

// SymbolicTransition lowers the block against a pure formula into a
// priority-ordered, pairwise-disjoint list of guards: case j fires exactly
// when it matches and no earlier case does. Streams matched by no case fall
// through to reject.
func (t *TransitionBlock) SymbolicTransition(pf *formula.PureFormula) ([]SymbolicCase, error) {
	if len(t.Selectors) == 0 {
		if len(t.Cases) == 0 {
			return []SymbolicCase{{Guard: formula.True{}, Target: StateReject}}, nil
		}
		return []SymbolicCase{{Guard: formula.True{}, Target: t.Cases[0].Target}}, nil
	}

	selectors := make([]formula.Expr, len(t.Selectors))
	for i, s := range t.Selectors {
		resolved, err := formula.Resolve(s, pf)
		if err != nil {
			return nil, err
		}
		selectors[i] = resolved
	}

	matches := make([]formula.Formula, len(t.Cases))
	for j, c := range t.Cases {
		conj := make([]formula.Formula, 0, len(c.Patterns))
		for i, pat := range c.Patterns {
			if _, wildcard := pat.(formula.DontCare); wildcard {
				continue
			}
			resolved, err := formula.Resolve(pat, pf)
			if err != nil {
				return nil, err
			}
			if resolved.Width() != selectors[i].Width() {
				return nil, fmt.Errorf("%w: pattern width %d does not match selector width %d",
					ErrMalformedIR, resolved.Width(), selectors[i].Width())
			}
			conj = append(conj, &formula.Equals{Left: selectors[i], Right: resolved})
		}
		matches[j] = formula.Conj(conj...)
	}

	out := make([]SymbolicCase, 0, len(t.Cases)+1)
	for j, c := range t.Cases {
		guard := matches[j]
		for k := 0; k < j; k++ {
			guard = formula.Conj(guard, &formula.Not{Sub: matches[k]})
		}
		out = append(out, SymbolicCase{Guard: guard, Target: c.Target})
	}

	// No case matched: P4 select rejects.
	fallthroughGuard := formula.Formula(formula.True{})
	for _, m := range matches {
		fallthroughGuard = formula.Conj(fallthroughGuard, &formula.Not{Sub: m})
	}
	out = append(out, SymbolicCase{Guard: fallthroughGuard, Target: StateReject})

	return out, nil
}

func (t *TransitionBlock) String() string {
	var b strings.Builder
	if len(t.Selectors) > 0 {
		parts := make([]string, len(t.Selectors))
		for i, s := range t.Selectors {
			parts[i] = s.String()
		}
		fmt.Fprintf(&b, "Select: (%s)\n", strings.Join(parts, ", "))
	}
	b.WriteString("Cases:\n")
	for _, c := range t.Cases {
		parts := make([]string, len(c.Patterns))
		for i, pat := range c.Patterns {
			parts[i] = pat.String()
		}
		fmt.Fprintf(&b, "  (%s) -> %s\n", strings.Join(parts, ", "), c.Target)
	}
	return b.String()
}
