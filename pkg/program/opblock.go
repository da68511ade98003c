package program

import (
	"strings"

	"github.com/jortvanleenen/Octopus/pkg/formula"
)

// OperationBlock is the straight-line body of a parser state. Size is the
// number of input bits the block consumes per visit: the sum of its extract
// sizes, with assignments contributing nothing.
type OperationBlock struct {
	Components []Component
	Size       int
}

// parseOperationBlock lowers a components.vec wrapper.
func (p *Program) parseOperationBlock(components node) (*OperationBlock, error) {
	block := &OperationBlock{}
	if components == nil {
		return block, nil
	}
	for _, c := range components.elements() {
		parsed, err := p.parseComponent(c)
		if err != nil {
			return nil, err
		}
		if parsed == nil {
			continue
		}
		block.Components = append(block.Components, parsed)
		if ex, ok := parsed.(*Extract); ok {
			block.Size += ex.Size
		}
	}
	return block, nil
}

// SP applies the strongest postcondition of the whole block: the left-fold
// of its components in source order.
func (b *OperationBlock) SP(m *formula.Manager, pf *formula.PureFormula) error {
	for _, c := range b.Components {
		if err := c.SP(m, pf); err != nil {
			return err
		}
	}
	return nil
}

func (b *OperationBlock) String() string {
	if len(b.Components) == 0 {
		return "Operations: (none)\n"
	}
	var sb strings.Builder
	sb.WriteString("Operations:\n")
	for _, c := range b.Components {
		sb.WriteString("  ")
		sb.WriteString(c.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
