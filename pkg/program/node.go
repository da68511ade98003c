package program

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
)

// node is one object of the p4c IR document. The IR is polymorphic on the
// Node_Type key, so it is walked generically rather than decoded into a
// closed set of structs.
type node map[string]any

// decodeDocument parses an IR JSON document, preserving numeric literals as
// json.Number so that >64-bit P4 constants survive.
func decodeDocument(data []byte) (node, error) {
	var root any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedIR, err)
	}
	doc, ok := root.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document root is not an object", ErrMalformedIR)
	}
	return node(doc), nil
}

// nodeType returns the Node_Type discriminator, or "" when absent.
func (n node) nodeType() string {
	s, _ := n["Node_Type"].(string)
	return s
}

// child returns the named sub-object, or nil when absent or not an object.
func (n node) child(key string) node {
	m, _ := n[key].(map[string]any)
	if m == nil {
		return nil
	}
	return node(m)
}

// str returns the named string value, or "".
func (n node) str(key string) string {
	s, _ := n[key].(string)
	return s
}

// vec returns the elements of the named {"vec": [...]} wrapper.
func (n node) vec(key string) []node {
	wrapper := n.child(key)
	if wrapper == nil {
		return nil
	}
	return wrapper.elements()
}

// elements returns the entries of a {"vec": [...]} node itself.
func (n node) elements() []node {
	raw, _ := n["vec"].([]any)
	out := make([]node, 0, len(raw))
	for _, el := range raw {
		if m, ok := el.(map[string]any); ok {
			out = append(out, node(m))
		}
	}
	return out
}

// number returns the named numeric value as a big integer.
func (n node) number(key string) (*big.Int, bool) {
	switch v := n[key].(type) {
	case json.Number:
		i, ok := new(big.Int).SetString(v.String(), 10)
		return i, ok
	case string:
		// p4c serialises very large constants as strings.
		i, ok := new(big.Int).SetString(v, 0)
		return i, ok
	default:
		return nil, false
	}
}

// intValue returns the named numeric value as an int.
func (n node) intValue(key string) (int, bool) {
	i, ok := n.number(key)
	if !ok || !i.IsInt64() {
		return 0, false
	}
	return int(i.Int64()), true
}

// pathName returns obj.path.name, the IR's usual spelling of a reference to
// a named entity.
func (n node) pathName() string {
	p := n.child("path")
	if p == nil {
		return ""
	}
	return p.str("name")
}
