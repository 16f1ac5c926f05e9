package schema

import (
	"fmt"
	"math"
)

// Validate walks a decoded JSON value (map[string]any / []any / string /
// float64 / bool / nil) against the node. Unknown object keys are ignored;
// Strip removes them.
func (n *Node) Validate(v any) error {
	return validate(n, v, "$")
}

func validate(n *Node, v any, path string) error {
	if v == nil {
		if n.Nullable {
			return nil
		}
		return fmt.Errorf("%s: unexpected null", path)
	}
	switch n.Kind {
	case KindObject:
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object, got %T", path, v)
		}
		for _, f := range n.Fields {
			fv, present := m[f.Name]
			if !present {
				if f.Node.Optional {
					continue
				}
				return fmt.Errorf("%s.%s: required field missing", path, f.Name)
			}
			if err := validate(f.Node, fv, path+"."+f.Name); err != nil {
				return err
			}
		}
		return nil
	case KindString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%s: expected string, got %T", path, v)
		}
		return nil
	case KindNumber:
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("%s: expected number, got %T", path, v)
		}
		return nil
	case KindInteger:
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("%s: expected integer, got %T", path, v)
		}
		if f != math.Trunc(f) {
			return fmt.Errorf("%s: expected integer, got %v", path, f)
		}
		return nil
	case KindBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%s: expected boolean, got %T", path, v)
		}
		return nil
	case KindArray:
		arr, ok := v.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array, got %T", path, v)
		}
		for i, item := range arr {
			if err := validate(n.Elem, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case KindEnum:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s: expected enum string, got %T", path, v)
		}
		for _, allowed := range n.Values {
			if s == allowed {
				return nil
			}
		}
		return fmt.Errorf("%s: %q is not one of %v", path, s, n.Values)
	}
	return fmt.Errorf("%s: unknown schema kind %d", path, n.Kind)
}

// Strip returns a copy of v limited to the keys the schema declares,
// recursively. Non-object values pass through unchanged.
func Strip(n *Node, v any) any {
	if v == nil {
		return nil
	}
	switch n.Kind {
	case KindObject:
		m, ok := v.(map[string]any)
		if !ok {
			return v
		}
		out := make(map[string]any, len(n.Fields))
		for _, f := range n.Fields {
			fv, present := m[f.Name]
			if !present {
				continue
			}
			out[f.Name] = Strip(f.Node, fv)
		}
		return out
	case KindArray:
		arr, ok := v.([]any)
		if !ok {
			return v
		}
		out := make([]any, len(arr))
		for i, item := range arr {
			out[i] = Strip(n.Elem, item)
		}
		return out
	default:
		return v
	}
}
