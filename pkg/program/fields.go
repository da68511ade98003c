package program

import (
	"fmt"
	"strings"
)

// resolve walks the declared types along a dotted store path. It returns the
// fields of the container the walk stops at, or the width of the leaf bit
// field. P4 programs are compile-time checked, so nothing beyond path
// existence is verified here.
func (p *Program) resolve(path string) (fields []Field, bits int, err error) {
	rest := strings.TrimPrefix(path, p.OutputName+".")
	if rest == path && path == p.OutputName {
		rest = ""
	}
	current, ok := p.types[p.OutputType]
	if !ok {
		return nil, 0, fmt.Errorf("%w: output type %q is not declared", ErrUnknownField, p.OutputType)
	}
	if rest == "" {
		return current, 0, nil
	}
	parts := strings.Split(rest, ".")
	for i, part := range parts {
		var match *Field
		for j := range current {
			if current[j].Name == part {
				match = &current[j]
				break
			}
		}
		if match == nil {
			return nil, 0, fmt.Errorf("%w: %q has no field %q", ErrUnknownField, path, part)
		}
		if match.Bits > 0 {
			if i != len(parts)-1 {
				return nil, 0, fmt.Errorf("%w: %q descends into bit field %q", ErrUnknownField, path, part)
			}
			return nil, match.Bits, nil
		}
		current, ok = p.types[match.TypeName]
		if !ok {
			return nil, 0, fmt.Errorf("%w: type %q of %q is not declared", ErrUnknownField, match.TypeName, path)
		}
	}
	return current, 0, nil
}

// FieldsOf returns the leaf fields of the header or struct the path names,
// in declaration order. All fields must be bit fields; nested containers in
// an extract target are not supported.
func (p *Program) FieldsOf(path string) ([]Field, error) {
	fields, bits, err := p.resolve(path)
	if err != nil {
		return nil, err
	}
	if bits > 0 {
		return nil, fmt.Errorf("%w: %q names a bit field, not a header", ErrUnknownField, path)
	}
	for _, f := range fields {
		if f.Bits <= 0 {
			return nil, fmt.Errorf("%w: header %q has non-bit field %q", ErrUnsupportedIR, path, f.Name)
		}
	}
	return fields, nil
}

// WidthOf returns the declared width of the leaf bit field the path names.
func (p *Program) WidthOf(path string) (int, error) {
	_, bits, err := p.resolve(path)
	if err != nil {
		return 0, err
	}
	if bits == 0 {
		return 0, fmt.Errorf("%w: %q names a container, not a bit field", ErrUnknownField, path)
	}
	return bits, nil
}

// AllFieldPaths returns every leaf field of the store with its width, in
// declaration order. The engine allocates one fresh variable per entry when
// building the initial pure formula.
func (p *Program) AllFieldPaths() ([]FieldPath, error) {
	var out []FieldPath
	var walk func(prefix, typeName string) error
	walk = func(prefix, typeName string) error {
		fields, ok := p.types[typeName]
		if !ok {
			return fmt.Errorf("%w: type %q is not declared", ErrUnknownField, typeName)
		}
		for _, f := range fields {
			path := prefix + "." + f.Name
			if f.Bits > 0 {
				out = append(out, FieldPath{Path: path, Bits: f.Bits})
				continue
			}
			if err := walk(path, f.TypeName); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(p.OutputName, p.OutputType); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizePath prefixes a store-relative path with the output parameter
// name, leaving already-absolute paths untouched.
func (p *Program) normalizePath(path string) string {
	if path == p.OutputName || strings.HasPrefix(path, p.OutputName+".") {
		return path
	}
	return p.OutputName + "." + path
}
