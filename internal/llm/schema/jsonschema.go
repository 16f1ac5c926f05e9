package schema

// JSONSchema exports the node as a plain map in JSON Schema form, suitable
// for backends with a native structured-output mode. Objects list every
// non-optional field as required and forbid additional properties.
func (n *Node) JSONSchema() map[string]any {
	out := map[string]any{}
	switch n.Kind {
	case KindObject:
		props := map[string]any{}
		required := []string{}
		for _, f := range n.Fields {
			props[f.Name] = f.Node.JSONSchema()
			if !f.Node.Optional {
				required = append(required, f.Name)
			}
		}
		out["type"] = typeName("object", n.Nullable)
		out["properties"] = props
		out["required"] = required
		out["additionalProperties"] = false
	case KindString:
		out["type"] = typeName("string", n.Nullable)
	case KindNumber:
		out["type"] = typeName("number", n.Nullable)
	case KindInteger:
		out["type"] = typeName("integer", n.Nullable)
	case KindBool:
		out["type"] = typeName("boolean", n.Nullable)
	case KindArray:
		out["type"] = typeName("array", n.Nullable)
		out["items"] = n.Elem.JSONSchema()
	case KindEnum:
		out["type"] = typeName("string", n.Nullable)
		out["enum"] = enumValues(n)
	}
	if n.Description != "" {
		out["description"] = n.Description
	}
	return out
}

func typeName(base string, nullable bool) any {
	if nullable {
		return []string{base, "null"}
	}
	return base
}

func enumValues(n *Node) []any {
	vals := make([]any, 0, len(n.Values)+1)
	for _, v := range n.Values {
		vals = append(vals, v)
	}
	if n.Nullable {
		vals = append(vals, nil)
	}
	return vals
}
