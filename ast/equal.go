package ast

// Clone deep-copies a subtree. Spans and syntax are shared, the dirty flag is
// kept, so an untouched clone still prints as its original text.
func Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	cp := &Node{Kind: n.Kind, Span: n.Span, Syntax: n.Syntax, dirty: n.dirty}
	cp.fields = make([]Field, len(n.fields))
	for i, f := range n.fields {
		cp.fields[i] = Field{Name: f.Name, Value: cloneValue(f.Value)}
	}
	return cp
}

func cloneValue(v Value) Value {
	switch v.Kind {
	case NodeValue:
		return Child(Clone(v.Node))
	case ListValue:
		if v.List == nil {
			return Value{Kind: ListValue}
		}
		out := make([]*Node, len(v.List))
		for i, c := range v.List {
			out[i] = Clone(c)
		}
		return List(out...)
	default:
		return v
	}
}

// Equal is structural equality: same kind and equal fields, recursively.
// Spans, syntax and dirty state are ignored, and a field missing on one side
// equals an empty field on the other.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a == b {
		return true
	}
	if a.Kind != b.Kind {
		return false
	}
	for _, f := range a.fields {
		if !ValueEqual(f.Value, lookup(b, f.Name, f.Value.Kind)) {
			return false
		}
	}
	for _, f := range b.fields {
		if a.FieldIndex(f.Name) < 0 && !f.Value.Empty() {
			return false
		}
	}
	return true
}

func lookup(n *Node, name string, kind ValueKind) Value {
	if v, ok := n.Get(name); ok {
		return v
	}
	return Value{Kind: kind}
}

// ValueEqual compares two field values structurally.
func ValueEqual(a, b Value) bool {
	if a.Empty() && b.Empty() {
		return true
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ScalarValue:
		return a.Scalar == b.Scalar
	case NodeValue:
		return Equal(a.Node, b.Node)
	default:
		return ListEqual(a.List, b.List)
	}
}

// ListEqual compares two node lists element-wise.
func ListEqual(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
