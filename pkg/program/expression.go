package program

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jortvanleenen/Octopus/pkg/formula"
)

// referencePath rebuilds the dotted path of a Member/PathExpression chain,
// e.g. h.ethernet.etherType.
func referencePath(n node) string {
	var parts []string
	for n != nil {
		if member := n.str("member"); member != "" {
			parts = append([]string{member}, parts...)
		}
		if expr := n.child("expr"); expr != nil {
			n = expr
			continue
		}
		if name := n.pathName(); name != "" {
			parts = append([]string{name}, parts...)
		}
		break
	}
	return strings.Join(parts, ".")
}

// parseExpression lowers an IR expression node to a formula expression.
// widthHint supplies the context width for constants; sites without context
// pass 0, and a constant met there is a build error.
func (p *Program) parseExpression(n node, widthHint int) (formula.Expr, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: missing expression node", ErrMalformedIR)
	}
	switch n.nodeType() {
	case "Constant":
		value, ok := n.number("value")
		if !ok {
			return nil, fmt.Errorf("%w: constant without a numeric value", ErrMalformedIR)
		}
		if widthHint <= 0 {
			return nil, fmt.Errorf("%w: constant %v has no width context", ErrMalformedIR, value)
		}
		return formula.NewConst(value, widthHint), nil

	case "Member", "PathExpression":
		path := p.normalizePath(referencePath(n))
		bits, err := p.WidthOf(path)
		if err != nil {
			return nil, err
		}
		return &formula.Reference{Path: path, Left: p.Left, Bits: bits}, nil

	case "Slice":
		inner, err := p.parseExpression(n.child("e0"), 0)
		if err != nil {
			return nil, err
		}
		hi, okHi := n.child("e1").intValue("value")
		lo, okLo := n.child("e2").intValue("value")
		if !okHi || !okLo {
			return nil, fmt.Errorf("%w: slice without numeric bounds", ErrMalformedIR)
		}
		s, err := formula.NewSlice(inner, hi, lo)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedIR, err)
		}
		return s, nil

	case "Concat":
		left, err := p.parseExpression(n.child("left"), 0)
		if err != nil {
			return nil, err
		}
		right, err := p.parseExpression(n.child("right"), 0)
		if err != nil {
			return nil, err
		}
		return &formula.Concat{Left: left, Right: right}, nil

	case "BAnd":
		left, err := p.parseExpression(n.child("left"), widthHint)
		if err != nil {
			return nil, err
		}
		right, err := p.parseExpression(n.child("right"), left.Width())
		if err != nil {
			return nil, err
		}
		return &formula.BVAnd{Left: left, Right: right}, nil

	case "Shr":
		left, err := p.parseExpression(n.child("left"), widthHint)
		if err != nil {
			return nil, err
		}
		// SMT shifts want equal widths, so the shift amount adopts the
		// operand's width.
		right, err := p.parseExpression(n.child("right"), left.Width())
		if err != nil {
			return nil, err
		}
		return &formula.BVLShr{Left: left, Right: right}, nil

	case "DefaultExpression":
		return formula.DontCare{}, nil

	default:
		p.logger.Warn("unsupported expression node", zap.String("node_type", n.nodeType()))
		return nil, fmt.Errorf("%w: expression node %q", ErrUnsupportedIR, n.nodeType())
	}
}
