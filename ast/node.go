// Package ast is the language-neutral syntax tree shared by the matcher,
// the replacement compiler and the frontends.
//
// A Node has a kind and an ordered list of named fields. Each field holds
// exactly one of a scalar string, a single child node (nil when absent) or an
// ordered list of child nodes. Frontends record the concrete syntax a node was
// parsed from in Span and Syntax; the rest of the module only copies them.
package ast

// ValueKind tells which of the three shapes a field value has.
type ValueKind int

const (
	ScalarValue ValueKind = iota
	NodeValue
	ListValue
)

func (k ValueKind) String() string {
	switch k {
	case ScalarValue:
		return "scalar"
	case NodeValue:
		return "node"
	case ListValue:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a field value.
type Value struct {
	Kind   ValueKind
	Scalar string
	Node   *Node
	List   []*Node
}

// Scalar builds a scalar value.
func Scalar(s string) Value { return Value{Kind: ScalarValue, Scalar: s} }

// Child builds a single node value. A nil node means the child is absent.
func Child(n *Node) Value { return Value{Kind: NodeValue, Node: n} }

// List builds a list value.
func List(nodes ...*Node) Value { return Value{Kind: ListValue, List: nodes} }

// Empty reports whether the value carries nothing: an empty scalar, an absent
// child or an empty list.
func (v Value) Empty() bool {
	switch v.Kind {
	case ScalarValue:
		return v.Scalar == ""
	case NodeValue:
		return v.Node == nil
	default:
		return len(v.List) == 0
	}
}

// Field is a named field value.
type Field struct {
	Name  string
	Value Value
}

// Source is a parsed input.
type Source struct {
	Name string
	Text []byte
}

// Span locates a node in the source it was parsed from.
type Span struct {
	Source *Source
	Start  int
	End    int
}

// Text returns the source text covered by the span.
func (s *Span) Text() string {
	if s == nil || s.Source == nil || s.End > len(s.Source.Text) || s.Start > s.End {
		return ""
	}
	return string(s.Source.Text[s.Start:s.End])
}

// Node is a syntax tree node.
type Node struct {
	Kind   string
	Span   *Span
	Syntax any

	fields []Field
	dirty  bool
}

// NewNode builds a node with the given fields in order. The node is clean:
// frontends use it while converting a parse tree.
func NewNode(kind string, fields ...Field) *Node {
	return &Node{Kind: kind, fields: fields}
}

// Leaf builds a node holding only a "text" scalar.
func Leaf(kind, text string) *Node {
	return NewNode(kind, Field{Name: TextField, Value: Scalar(text)})
}

// TextField is the scalar field leaves carry their text in.
const TextField = "text"

// Fields returns the ordered fields. Callers must not modify the slice.
func (n *Node) Fields() []Field {
	return n.fields
}

// FieldIndex returns the ordinal of the named field or -1.
func (n *Node) FieldIndex(name string) int {
	for i := range n.fields {
		if n.fields[i].Name == name {
			return i
		}
	}
	return -1
}

// Get returns the value of a field. ok is false when the node has no such
// field.
func (n *Node) Get(name string) (Value, bool) {
	if i := n.FieldIndex(name); i >= 0 {
		return n.fields[i].Value, true
	}
	return Value{}, false
}

// Text returns the "text" scalar of a leaf.
func (n *Node) Text() string {
	v, _ := n.Get(TextField)
	return v.Scalar
}

// ChildNode returns a single child, nil when absent.
func (n *Node) ChildNode(name string) *Node {
	v, _ := n.Get(name)
	return v.Node
}

// ChildList returns a list field, nil when absent.
func (n *Node) ChildList(name string) []*Node {
	v, _ := n.Get(name)
	return v.List
}

// IsLeaf reports whether the node carries only a text scalar.
func (n *Node) IsLeaf() bool {
	return len(n.fields) == 1 && n.fields[0].Name == TextField && n.fields[0].Value.Kind == ScalarValue
}

// Set replaces or appends a field and marks the node dirty.
func (n *Node) Set(name string, v Value) {
	n.dirty = true
	if i := n.FieldIndex(name); i >= 0 {
		n.fields[i].Value = v
		return
	}
	n.fields = append(n.fields, Field{Name: name, Value: v})
}

// Dirty reports whether the node was mutated after it was built.
func (n *Node) Dirty() bool { return n.dirty }

// MarkDirty flags the node as no longer matching its span.
func (n *Node) MarkDirty() { n.dirty = true }

// WithKind returns a shallow copy of the node with another kind. The copy
// shares child nodes and is dirty.
func (n *Node) WithKind(kind string) *Node {
	cp := n.shallow()
	cp.Kind = kind
	cp.dirty = true
	return cp
}

func (n *Node) shallow() *Node {
	cp := &Node{Kind: n.Kind, Span: n.Span, Syntax: n.Syntax, dirty: n.dirty}
	cp.fields = make([]Field, len(n.fields))
	for i, f := range n.fields {
		if f.Value.Kind == ListValue {
			f.Value.List = append([]*Node(nil), f.Value.List...)
		}
		cp.fields[i] = f
	}
	return cp
}

// Walk calls fn for n and every descendant in pre-order. Returning false
// from fn skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, f := range n.fields {
		switch f.Value.Kind {
		case NodeValue:
			Walk(f.Value.Node, fn)
		case ListValue:
			for _, c := range f.Value.List {
				Walk(c, fn)
			}
		}
	}
}
