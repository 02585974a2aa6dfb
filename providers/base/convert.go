package base

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/termfx/astmorph/ast"
)

// Piece is one element of a node's layout: literal text, a single-child
// slot or a list slot.
type Piece struct {
	Text  string
	Field string
	List  bool
}

// ListLayout remembers how a parsed list was separated.
type ListLayout struct {
	Source *ast.Source
	// Seps maps the start offsets of two originally adjacent elements to
	// the text between them.
	Seps    map[[2]int]string
	Default string
}

// Layout is the concrete syntax of a node: the source text around its
// children. It is stored in ast.Node.Syntax.
type Layout struct {
	Pieces []Piece
	Lists  map[string]*ListLayout
}

func (l *Layout) hasSlot(field string) bool {
	for _, p := range l.Pieces {
		if p.Field == field {
			return true
		}
	}
	return false
}

type tsChild struct {
	node  *sitter.Node
	field string
}

func childrenOf(n *sitter.Node) []tsChild {
	cur := sitter.NewTreeCursor(n)
	defer cur.Close()

	if !cur.GoToFirstChild() {
		return nil
	}
	var out []tsChild
	for {
		out = append(out, tsChild{node: cur.CurrentNode(), field: cur.CurrentFieldName()})
		if !cur.GoToNextSibling() {
			break
		}
	}
	return out
}

type converter struct {
	grammar *Grammar
	src     *ast.Source
}

// build accumulates the fields and layout of one node.
type build struct {
	c      *converter
	desc   *ast.KindDesc
	values map[string]*ast.Value
	order  []string
	layout *Layout
	cursor int
	prev   map[string]int
}

func (c *converter) text(start, end int) string {
	return string(c.src.Text[start:end])
}

func (c *converter) convert(n *sitter.Node) *ast.Node {
	kind := n.Type()
	start, end := int(n.StartByte()), int(n.EndByte())
	span := &ast.Span{Source: c.src, Start: start, End: end}
	children := childrenOf(n)

	desc, known := c.grammar.Describe(kind)
	if (known && desc.Leaf) || (!known && !c.hasNamed(children)) {
		leaf := ast.Leaf(kind, c.text(start, end))
		leaf.Span = span
		return leaf
	}
	if !known {
		desc = &ast.KindDesc{Kind: kind}
	}

	b := &build{
		c:      c,
		desc:   desc,
		values: make(map[string]*ast.Value),
		layout: &Layout{Lists: make(map[string]*ListLayout)},
		cursor: start,
		prev:   make(map[string]int),
	}
	for _, fd := range desc.Fields {
		b.declare(fd.Name, fd.Kind)
	}

	slots := positional(desc)
	for _, ch := range children {
		b.add(ch, &slots)
	}
	b.emit(end)
	b.placeEmptyLists()

	fields := make([]ast.Field, 0, len(b.order))
	for _, name := range b.order {
		fields = append(fields, ast.Field{Name: name, Value: *b.values[name]})
	}
	out := ast.NewNode(kind, fields...)
	out.Span = span
	out.Syntax = b.layout
	return out
}

func (c *converter) hasNamed(children []tsChild) bool {
	for _, ch := range children {
		if ch.node.IsNamed() && !c.grammar.extras[ch.node.Type()] {
			return true
		}
	}
	return false
}

func (b *build) declare(name string, kind ast.ValueKind) *ast.Value {
	if v, ok := b.values[name]; ok {
		return v
	}
	v := &ast.Value{Kind: kind}
	b.values[name] = v
	b.order = append(b.order, name)
	return v
}

func (b *build) emit(upTo int) {
	if upTo > b.cursor {
		b.layout.Pieces = append(b.layout.Pieces, Piece{Text: b.c.text(b.cursor, upTo)})
		b.cursor = upTo
	}
}

func (b *build) add(ch tsChild, slots *[]*ast.FieldDesc) {
	n := ch.node
	kind := n.Type()
	if b.c.grammar.extras[kind] {
		return
	}
	start, end := int(n.StartByte()), int(n.EndByte())

	if !n.IsNamed() {
		if ch.field != "" {
			fd := fieldBySource(b.desc, ch.field)
			if fd == nil {
				b.scalar(ch.field, start, end)
				return
			}
			if fd.Kind == ast.ScalarValue {
				b.scalar(fd.Name, start, end)
				return
			}
		}
		if fd := flagField(b.desc, kind); fd != nil {
			b.declare(fd.Name, ast.ScalarValue).Scalar = kind
		}
		return
	}

	var fd *ast.FieldDesc
	if ch.field != "" {
		fd = fieldBySource(b.desc, ch.field)
	} else if len(*slots) > 0 {
		fd = (*slots)[0]
		if fd.Kind != ast.ListValue {
			*slots = (*slots)[1:]
		}
	}

	name, kind2 := "children", ast.ListValue
	if fd != nil {
		name, kind2 = fd.Name, fd.Kind
	} else if ch.field != "" {
		name, kind2 = ch.field, ast.NodeValue
	}

	v := b.declare(name, kind2)
	if v.Kind == ast.NodeValue && v.Node != nil {
		// A repeated field without a list descriptor becomes a list.
		v.Kind, v.List, v.Node = ast.ListValue, []*ast.Node{v.Node}, nil
	}
	child := b.c.convert(n)

	switch v.Kind {
	case ast.ScalarValue:
		b.scalar(name, start, end)
	case ast.NodeValue:
		b.emit(start)
		v.Node = child
		b.layout.Pieces = append(b.layout.Pieces, Piece{Field: name})
		b.cursor = end
	default:
		b.element(name, v, child, start, end)
	}
}

func (b *build) scalar(name string, start, end int) {
	b.emit(start)
	b.declare(name, ast.ScalarValue).Scalar = b.c.text(start, end)
	b.layout.Pieces = append(b.layout.Pieces, Piece{Field: name})
	b.cursor = end
}

func (b *build) element(name string, v *ast.Value, child *ast.Node, start, end int) {
	ll := b.layout.Lists[name]
	if ll == nil {
		ll = &ListLayout{Source: b.c.src, Seps: make(map[[2]int]string)}
		b.layout.Lists[name] = ll
	}
	if len(v.List) == 0 {
		b.emit(start)
		b.layout.Pieces = append(b.layout.Pieces, Piece{Field: name, List: true})
	} else {
		sep := b.c.text(b.cursor, start)
		ll.Seps[[2]int{b.prev[name], start}] = sep
		if len(ll.Seps) == 1 || len(sep) < len(ll.Default) {
			ll.Default = sep
		}
	}
	v.List = append(v.List, child)
	b.prev[name] = start
	b.cursor = end
}

// placeEmptyLists gives every list without elements a slot right after its
// opening delimiter, so elements added later have a place to print.
func (b *build) placeEmptyLists() {
	for _, fd := range b.desc.Fields {
		if fd.Kind != ast.ListValue || b.layout.hasSlot(fd.Name) {
			continue
		}
		slot := Piece{Field: fd.Name, List: true}
		pieces := b.layout.Pieces
		placed := false
		if fd.Open != "" {
			for i, p := range pieces {
				if p.Field != "" {
					continue
				}
				at := strings.IndexAny(p.Text, fd.Open)
				if at < 0 {
					continue
				}
				split := []Piece{{Text: p.Text[:at+1]}, slot}
				if rest := p.Text[at+1:]; rest != "" {
					split = append(split, Piece{Text: rest})
				}
				b.layout.Pieces = append(append(append([]Piece{}, pieces[:i]...), split...), pieces[i+1:]...)
				placed = true
				break
			}
		}
		if !placed {
			b.layout.Pieces = append([]Piece{slot}, pieces...)
		}
	}
}

// root converts the root node, widening it to the whole source so text
// outside the root's range survives printing.
func (c *converter) root(n *sitter.Node) *ast.Node {
	out := c.convert(n)
	size := len(c.src.Text)
	if out.Span.Start == 0 && out.Span.End == size {
		return out
	}
	if lay, ok := out.Syntax.(*Layout); ok {
		var pieces []Piece
		if out.Span.Start > 0 {
			pieces = append(pieces, Piece{Text: c.text(0, out.Span.Start)})
		}
		pieces = append(pieces, lay.Pieces...)
		if out.Span.End < size {
			pieces = append(pieces, Piece{Text: c.text(out.Span.End, size)})
		}
		lay.Pieces = pieces
	}
	out.Span = &ast.Span{Source: c.src, Start: 0, End: size}
	return out
}
