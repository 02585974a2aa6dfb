package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ident(name string) *Node { return Leaf("identifier", name) }

func binary(op string, l, r *Node) *Node {
	return NewNode("binary_expression",
		Field{Name: "left", Value: Child(l)},
		Field{Name: "operator", Value: Scalar(op)},
		Field{Name: "right", Value: Child(r)},
	)
}

func TestValueEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  bool
	}{
		{"empty scalar", Scalar(""), true},
		{"scalar", Scalar("x"), false},
		{"absent child", Child(nil), true},
		{"child", Child(ident("a")), false},
		{"empty list", List(), true},
		{"list", List(ident("a")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.Empty())
		})
	}
}

func TestEqualIgnoresSpanAndDirty(t *testing.T) {
	src := &Source{Text: []byte("a + b")}
	a := binary("+", ident("a"), ident("b"))
	a.Span = &Span{Source: src, Start: 0, End: 5}

	b := binary("+", ident("a"), ident("b"))
	b.MarkDirty()

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, binary("-", ident("a"), ident("b"))))
	assert.False(t, Equal(a, binary("+", ident("a"), ident("c"))))
}

func TestEqualMissingFieldIsEmpty(t *testing.T) {
	a := NewNode("return_statement")
	b := NewNode("return_statement", Field{Name: "argument", Value: Child(nil)})
	c := NewNode("return_statement", Field{Name: "argument", Value: Child(ident("x"))})

	assert.True(t, Equal(a, b))
	assert.True(t, Equal(b, a))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(c, a))
}

func TestCloneIsDeep(t *testing.T) {
	orig := NewNode("arguments", Field{Name: "items", Value: List(ident("a"), ident("b"))})
	cp := Clone(orig)

	require.True(t, Equal(orig, cp))
	cp.ChildList("items")[0].Set(TextField, Scalar("z"))

	assert.Equal(t, "a", orig.ChildList("items")[0].Text())
	assert.False(t, orig.Dirty())
}

func TestSetMarksDirty(t *testing.T) {
	n := ident("a")
	assert.False(t, n.Dirty())
	n.Set(TextField, Scalar("b"))
	assert.True(t, n.Dirty())
	assert.Equal(t, "b", n.Text())
}

func TestWithKindCopies(t *testing.T) {
	n := NewNode("function_declaration", Field{Name: "name", Value: Child(ident("f"))})
	cp := n.WithKind("function_expression")

	assert.Equal(t, "function_declaration", n.Kind)
	assert.Equal(t, "function_expression", cp.Kind)
	assert.True(t, cp.Dirty())
	assert.Same(t, n.ChildNode("name"), cp.ChildNode("name"))
}

func TestWalkPreOrder(t *testing.T) {
	tree := binary("+", binary("*", ident("a"), ident("b")), ident("c"))
	var kinds []string
	Walk(tree, func(n *Node) bool {
		if n.IsLeaf() {
			kinds = append(kinds, n.Text())
		} else {
			kinds = append(kinds, n.Kind)
		}
		return true
	})

	assert.Equal(t, []string{"binary_expression", "binary_expression", "a", "b", "c"}, kinds)
}
