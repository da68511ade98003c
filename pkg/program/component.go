package program

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jortvanleenen/Octopus/pkg/formula"
)

// Component is one executable element of a state's operation block. SP
// applies the component's strongest postcondition to pf in place; the engine
// clones before transforming, so only its working formula is ever mutated.
type Component interface {
	SP(m *formula.Manager, pf *formula.PureFormula) error
	fmt.Stringer
}

// Assign models `lhs = rhs`. The left-hand side must resolve to a whole
// header field; bit-slice targets are rejected at transform time.
type Assign struct {
	Lhs formula.Expr
	Rhs formula.Expr
}

// SP introduces a fresh variable for the assigned field and equates it with
// the right-hand side evaluated over the previous field values.
func (a *Assign) SP(m *formula.Manager, pf *formula.PureFormula) error {
	ref, ok := a.Lhs.(*formula.Reference)
	if !ok {
		return fmt.Errorf("%w: assignment to %s (only whole fields are assignable)", ErrUnsupportedIR, a.Lhs)
	}
	// Resolve the RHS before installing the fresh variable, so the equation
	// captures the update in terms of the old value.
	rhs, err := formula.Resolve(a.Rhs, pf)
	if err != nil {
		return err
	}
	fresh := m.Fresh(ref.Bits)
	pf.SetHeaderVar(ref.Path, ref.Left, fresh)
	pf.Root = formula.Conj(pf.Root, &formula.Equals{Left: fresh, Right: rhs})
	return nil
}

func (a *Assign) String() string { return fmt.Sprintf("%s = %s", a.Lhs, a.Rhs) }

// Extract models `packet.extract(hdr.x)`: it consumes the leading bits of
// the side's buffer into fresh variables for the header's fields.
type Extract struct {
	HeaderPath string
	Fields     []Field
	Size       int
	LeftSide   bool
}

// SP splits the buffer variable into one fresh variable per header field,
// MSB first, plus a fresh remainder when bits are left over. The engine
// guarantees the buffer holds at least Size bits when the block fires.
func (e *Extract) SP(m *formula.Manager, pf *formula.PureFormula) error {
	buf := pf.BufferVar(e.LeftSide)
	if buf == nil {
		return fmt.Errorf("extract %s: no buffer variable installed", e.HeaderPath)
	}
	if buf.Bits < e.Size {
		return fmt.Errorf("extract %s: buffer holds %d bits, header needs %d", e.HeaderPath, buf.Bits, e.Size)
	}

	var parts formula.Expr
	for _, f := range e.Fields {
		fresh := m.Fresh(f.Bits)
		pf.SetHeaderVar(e.HeaderPath+"."+f.Name, e.LeftSide, fresh)
		if parts == nil {
			parts = fresh
		} else {
			parts = &formula.Concat{Left: parts, Right: fresh}
		}
	}

	remainder := buf.Bits - e.Size
	if remainder > 0 {
		rest := m.Fresh(remainder)
		parts = &formula.Concat{Left: parts, Right: rest}
		pf.SetBufferVar(e.LeftSide, rest)
	} else {
		pf.SetBufferVar(e.LeftSide, nil)
	}

	pf.Root = formula.Conj(pf.Root, &formula.Equals{Left: buf, Right: parts})
	return nil
}

func (e *Extract) String() string { return fmt.Sprintf("extract(%s)", e.HeaderPath) }

// parseComponent lowers one components.vec entry. Unknown statement kinds
// and unsupported method calls are skipped with a warning, mirroring the
// front end's permissiveness for nodes that do not affect semantics.
func (p *Program) parseComponent(n node) (Component, error) {
	switch n.nodeType() {
	case "AssignmentStatement":
		lhs, err := p.parseExpression(n.child("left"), 0)
		if err != nil {
			return nil, err
		}
		rhs, err := p.parseExpression(n.child("right"), lhs.Width())
		if err != nil {
			return nil, err
		}
		return &Assign{Lhs: lhs, Rhs: rhs}, nil

	case "MethodCallStatement":
		call := n.child("methodCall")
		if call == nil {
			p.logger.Warn("method call statement without methodCall")
			return nil, nil
		}
		method := call.child("method").str("member")
		if method != "extract" {
			p.logger.Warn("unsupported method call", zap.String("method", method))
			return nil, nil
		}
		args := call.vec("arguments")
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: extract expects one argument, found %d", ErrMalformedIR, len(args))
		}
		argExpr := args[0].child("expression")
		if argExpr == nil {
			argExpr = args[0]
		}
		headerPath := p.normalizePath(referencePath(argExpr))
		fields, err := p.FieldsOf(headerPath)
		if err != nil {
			return nil, err
		}
		size := 0
		for _, f := range fields {
			size += f.Bits
		}
		return &Extract{HeaderPath: headerPath, Fields: fields, Size: size, LeftSide: p.Left}, nil

	default:
		p.logger.Warn("ignoring unknown component node", zap.String("node_type", n.nodeType()))
		return nil, nil
	}
}
