// Package programtest builds minimal p4c IR JSON documents for tests. The
// builders cover exactly the node shapes the checker consumes: header and
// struct types, one parser with two parameters, states with extract and
// assignment components, and select expressions.
package programtest

import "encoding/json"

// Document wraps the given objects into an IR JSON document.
func Document(objects ...map[string]any) []byte {
	doc := map[string]any{
		"objects": map[string]any{"vec": toAnySlice(objects)},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return data
}

// HeaderType declares a Type_Header.
func HeaderType(name string, fields ...map[string]any) map[string]any {
	return dataType("Type_Header", name, fields)
}

// StructType declares a Type_Struct.
func StructType(name string, fields ...map[string]any) map[string]any {
	return dataType("Type_Struct", name, fields)
}

func dataType(nodeType, name string, fields []map[string]any) map[string]any {
	return map[string]any{
		"Node_Type": nodeType,
		"name":      name,
		"fields":    map[string]any{"vec": toAnySlice(fields)},
	}
}

// BitsField declares a fixed-width unsigned field.
func BitsField(name string, size int) map[string]any {
	return map[string]any{
		"name": name,
		"type": map[string]any{"Node_Type": "Type_Bits", "size": size},
	}
}

// NameField declares a field of a named header/struct type.
func NameField(name, typeName string) map[string]any {
	return map[string]any{
		"name": name,
		"type": map[string]any{
			"Node_Type": "Type_Name",
			"path":      map[string]any{"name": typeName},
		},
	}
}

// Parser declares a P4Parser with the standard two parameters.
func Parser(inputName, outputName, outputType string, states ...map[string]any) map[string]any {
	return map[string]any{
		"Node_Type": "P4Parser",
		"type": map[string]any{
			"applyParams": map[string]any{
				"parameters": map[string]any{"vec": []any{
					map[string]any{
						"name":      inputName,
						"direction": "",
						"type":      map[string]any{"path": map[string]any{"name": "packet_in"}},
					},
					map[string]any{
						"name":      outputName,
						"direction": "out",
						"type":      map[string]any{"path": map[string]any{"name": outputType}},
					},
				}},
			},
		},
		"states": map[string]any{"vec": toAnySlice(states)},
	}
}

// State declares one parser state.
func State(name string, components []map[string]any, selectExpr map[string]any) map[string]any {
	return map[string]any{
		"name":             name,
		"components":       map[string]any{"vec": toAnySlice(components)},
		"selectExpression": selectExpr,
	}
}

// ExtractCall builds packet.extract(<output>.<member>).
func ExtractCall(outputName, member string) map[string]any {
	return map[string]any{
		"Node_Type": "MethodCallStatement",
		"methodCall": map[string]any{
			"method": map[string]any{"member": "extract"},
			"arguments": map[string]any{"vec": []any{
				map[string]any{"expression": Member(outputName, member)},
			}},
		},
	}
}

// Assignment builds lhs = rhs.
func Assignment(left, right map[string]any) map[string]any {
	return map[string]any{
		"Node_Type": "AssignmentStatement",
		"left":      left,
		"right":     right,
	}
}

// Member builds a dotted reference such as h.eth.type.
func Member(parts ...string) map[string]any {
	expr := map[string]any{
		"Node_Type": "PathExpression",
		"path":      map[string]any{"name": parts[0]},
	}
	for _, part := range parts[1:] {
		expr = map[string]any{
			"Node_Type": "Member",
			"member":    part,
			"expr":      expr,
		}
	}
	return expr
}

// Constant builds a width-inferred numeric literal.
func Constant(value uint64) map[string]any {
	return map[string]any{"Node_Type": "Constant", "value": value}
}

// Default builds the wildcard keyset.
func Default() map[string]any {
	return map[string]any{"Node_Type": "DefaultExpression"}
}

// DirectTransition builds `transition <target>`.
func DirectTransition(target string) map[string]any {
	return map[string]any{
		"Node_Type": "PathExpression",
		"path":      map[string]any{"name": target},
	}
}

// Select builds a select expression over the given selectors.
func Select(selectors []map[string]any, cases ...map[string]any) map[string]any {
	return map[string]any{
		"Node_Type": "SelectExpression",
		"select": map[string]any{
			"components": map[string]any{"vec": toAnySlice(selectors)},
		},
		"selectCases": map[string]any{"vec": toAnySlice(cases)},
	}
}

// Case builds one select arm with a single-value keyset.
func Case(keyset map[string]any, target string) map[string]any {
	return map[string]any{
		"keyset": keyset,
		"state":  map[string]any{"path": map[string]any{"name": target}},
	}
}

func toAnySlice(maps []map[string]any) []any {
	out := make([]any, len(maps))
	for i, m := range maps {
		out[i] = m
	}
	return out
}
