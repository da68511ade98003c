// Package program models one side of the product as a typed P4 parser
// program: declared header/struct types, the two parser parameters, and the
// named states with their operation and transition blocks. Programs are
// built once from p4c IR JSON and are read-only afterwards.
package program

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Reserved state names of every P4 parser.
const (
	StateStart  = "start"
	StateAccept = "accept"
	StateReject = "reject"
)

// IsTerminal reports whether a state name is one of the two terminal states.
func IsTerminal(state string) bool {
	return state == StateAccept || state == StateReject
}

// Field is one declared field of a header or struct type. Exactly one of
// Bits (a Type_Bits leaf) and TypeName (a Type_Name reference) is set.
type Field struct {
	Name     string
	Bits     int
	TypeName string
}

// FieldPath is a fully resolved leaf field of the store, as installed in the
// initial pure formula.
type FieldPath struct {
	Path string
	Bits int
}

// State is a named non-terminal parser state.
type State struct {
	Name  string
	Ops   *OperationBlock
	Trans *TransitionBlock
}

// Program is one parser of the product. Left records which side it plays;
// every Reference parsed under this program carries the same side.
type Program struct {
	Left bool

	InputName  string
	OutputName string
	OutputType string

	types     map[string][]Field
	typeOrder []string

	states     map[string]*State
	stateOrder []string

	logger *zap.Logger
}

// Build parses an IR JSON document into a Program for the given side. Only
// the first P4Parser object is honoured; later ones are ignored with a
// warning. Unknown top-level node types are skipped with a warning.
func Build(data []byte, left bool, logger *zap.Logger) (*Program, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	objects := doc.vec("objects")
	if doc.child("objects") == nil {
		return nil, fmt.Errorf("%w: document has no objects.vec", ErrMalformedIR)
	}

	p := &Program{
		Left:   left,
		types:  make(map[string][]Field),
		states: make(map[string]*State),
		logger: logger,
	}

	seenParser := false
	for _, obj := range objects {
		switch obj.nodeType() {
		case "Type_Header", "Type_Struct":
			if err := p.parseDataType(obj); err != nil {
				return nil, err
			}
		case "P4Parser":
			if seenParser {
				logger.Warn("multiple parser blocks found, only the first one is used")
				continue
			}
			seenParser = true
			if err := p.parseParserBlock(obj); err != nil {
				return nil, err
			}
		default:
			logger.Warn("ignoring IR object", zap.String("node_type", obj.nodeType()))
		}
	}
	if !seenParser {
		return nil, fmt.Errorf("%w: document contains no P4Parser object", ErrMalformedIR)
	}
	if err := p.validateTargets(); err != nil {
		return nil, err
	}
	return p, nil
}

// parseDataType records a Type_Header or Type_Struct declaration. Fields
// must be Type_Bits or Type_Name; anything else is skipped with a warning.
func (p *Program) parseDataType(obj node) error {
	typeName := obj.str("name")
	if typeName == "" {
		return fmt.Errorf("%w: type declaration without a name", ErrMalformedIR)
	}
	var fields []Field
	for _, f := range obj.vec("fields") {
		name := f.str("name")
		ft := f.child("type")
		if name == "" || ft == nil {
			return fmt.Errorf("%w: field of type %q without name or type", ErrMalformedIR, typeName)
		}
		switch ft.nodeType() {
		case "Type_Bits":
			size, ok := ft.intValue("size")
			if !ok || size <= 0 {
				return fmt.Errorf("%w: field %s.%s has no usable bit width", ErrMalformedIR, typeName, name)
			}
			fields = append(fields, Field{Name: name, Bits: size})
		case "Type_Name":
			ref := ft.pathName()
			if ref == "" {
				return fmt.Errorf("%w: field %s.%s references an unnamed type", ErrMalformedIR, typeName, name)
			}
			fields = append(fields, Field{Name: name, TypeName: ref})
		default:
			p.logger.Warn("skipping field with unknown type node",
				zap.String("type", typeName),
				zap.String("field", name),
				zap.String("node_type", ft.nodeType()))
		}
	}
	p.types[typeName] = fields
	p.typeOrder = append(p.typeOrder, typeName)
	return nil
}

// parseParserBlock records the parser parameters and states. Exactly two
// parameters are expected: the "out" one names the store, the other the
// input packet.
func (p *Program) parseParserBlock(obj node) error {
	typ := obj.child("type")
	if typ == nil {
		return fmt.Errorf("%w: parser object without type", ErrMalformedIR)
	}
	applyParams := typ.child("applyParams")
	if applyParams == nil {
		return fmt.Errorf("%w: parser object without applyParams", ErrMalformedIR)
	}
	params := applyParams.vec("parameters")
	if len(params) != 2 {
		p.logger.Warn("expected 2 parameters for the parser", zap.Int("found", len(params)))
	}
	for _, param := range params {
		name := param.str("name")
		if param.str("direction") == "out" {
			p.OutputName = name
			if t := param.child("type"); t != nil {
				p.OutputType = t.pathName()
			}
		} else {
			p.InputName = name
		}
	}
	if p.InputName == "" || p.OutputName == "" || p.OutputType == "" {
		return fmt.Errorf("%w: could not determine both input and output parameters", ErrMalformedIR)
	}

	for _, st := range obj.vec("states") {
		name := st.str("name")
		if name == "" {
			return fmt.Errorf("%w: parser state without a name", ErrMalformedIR)
		}
		if IsTerminal(name) {
			continue
		}
		ops, err := p.parseOperationBlock(st.child("components"))
		if err != nil {
			return fmt.Errorf("state %q: %w", name, err)
		}
		trans, err := p.parseTransitionBlock(st.child("selectExpression"))
		if err != nil {
			return fmt.Errorf("state %q: %w", name, err)
		}
		p.states[name] = &State{Name: name, Ops: ops, Trans: trans}
		p.stateOrder = append(p.stateOrder, name)
	}
	return nil
}

// validateTargets checks that every transition target names a declared state
// or a terminal.
func (p *Program) validateTargets() error {
	for _, name := range p.stateOrder {
		for _, c := range p.states[name].Trans.Cases {
			if IsTerminal(c.Target) {
				continue
			}
			if _, ok := p.states[c.Target]; !ok {
				return fmt.Errorf("%w: state %q transitions to undeclared state %q", ErrMalformedIR, name, c.Target)
			}
		}
	}
	return nil
}

// State returns the named state, or nil for the two reserved terminal names.
func (p *Program) State(name string) *State {
	if IsTerminal(name) {
		return nil
	}
	return p.states[name]
}

// StateNames returns the non-terminal state names in declaration order.
func (p *Program) StateNames() []string {
	return append([]string(nil), p.stateOrder...)
}

func (p *Program) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Parser\n")
	fmt.Fprintf(&b, "  Input name: %s\n", p.InputName)
	fmt.Fprintf(&b, "  Output: %s (%s)\n", p.OutputName, p.OutputType)
	fmt.Fprintf(&b, "  Types:\n")
	for _, name := range p.typeOrder {
		parts := make([]string, 0, len(p.types[name]))
		for _, f := range p.types[name] {
			if f.Bits > 0 {
				parts = append(parts, fmt.Sprintf("%s:%d", f.Name, f.Bits))
			} else {
				parts = append(parts, fmt.Sprintf("%s:%s", f.Name, f.TypeName))
			}
		}
		fmt.Fprintf(&b, "    %s: {%s}\n", name, strings.Join(parts, ", "))
	}
	fmt.Fprintf(&b, "  States:\n")
	for _, name := range p.stateOrder {
		st := p.states[name]
		fmt.Fprintf(&b, "    %s:\n", name)
		fmt.Fprintf(&b, "%s", indent(st.Ops.String(), "      "))
		fmt.Fprintf(&b, "%s", indent(st.Trans.String(), "      "))
	}
	return b.String()
}

func indent(s, prefix string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
