// Package schema defines a small language-neutral schema tree used to
// describe the shape of structured model output. The same tree drives
// native structured-output requests (via JSONSchema) and post-hoc
// validation and repair of free-text responses.
package schema

type Kind int

const (
	KindObject Kind = iota
	KindString
	KindNumber
	KindInteger
	KindBool
	KindArray
	KindEnum
)

// Node is one node of the schema tree. Optional and Nullable are wrapper
// flags rather than separate kinds so walkers can switch on Kind directly.
type Node struct {
	Kind        Kind
	Description string

	Fields []ObjectField // KindObject, in declaration order
	Elem   *Node         // KindArray
	Values []string      // KindEnum, in declaration order

	Optional bool // field may be absent from its parent object
	Nullable bool // value may be JSON null
}

type ObjectField struct {
	Name string
	Node *Node
}

func Object(fields ...ObjectField) *Node {
	return &Node{Kind: KindObject, Fields: fields}
}

func Field(name string, node *Node) ObjectField {
	return ObjectField{Name: name, Node: node}
}

func String() *Node  { return &Node{Kind: KindString} }
func Number() *Node  { return &Node{Kind: KindNumber} }
func Integer() *Node { return &Node{Kind: KindInteger} }
func Bool() *Node    { return &Node{Kind: KindBool} }

func ArrayOf(elem *Node) *Node {
	return &Node{Kind: KindArray, Elem: elem}
}

func Enum(values ...string) *Node {
	return &Node{Kind: KindEnum, Values: values}
}

// Optional marks the node as omittable from its parent object.
func Optional(n *Node) *Node {
	c := *n
	c.Optional = true
	return &c
}

// Nullable marks the node as accepting JSON null.
func Nullable(n *Node) *Node {
	c := *n
	c.Nullable = true
	return &c
}

// Describe attaches a human-readable description carried into the exported
// JSON Schema.
func Describe(n *Node, desc string) *Node {
	c := *n
	c.Description = desc
	return &c
}

// Field lookup by name; nil if absent.
func (n *Node) Lookup(name string) *Node {
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Node
		}
	}
	return nil
}

// Default returns the schema-appropriate zero value for a node: empty
// string, zero, false, empty array, the first enum value, or an object of
// recursive defaults. Nullable nodes default to nil.
func Default(n *Node) any {
	if n.Nullable {
		return nil
	}
	switch n.Kind {
	case KindObject:
		out := make(map[string]any, len(n.Fields))
		for _, f := range n.Fields {
			if f.Node.Optional {
				continue
			}
			out[f.Name] = Default(f.Node)
		}
		return out
	case KindString:
		return ""
	case KindNumber:
		return float64(0)
	case KindInteger:
		return float64(0)
	case KindBool:
		return false
	case KindArray:
		return []any{}
	case KindEnum:
		if len(n.Values) > 0 {
			return n.Values[0]
		}
		return ""
	}
	return nil
}
