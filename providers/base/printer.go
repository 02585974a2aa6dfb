package base

import (
	"strings"

	"github.com/termfx/astmorph/ast"
)

// Print renders a tree. Untouched subtrees print as their original source
// text; edited nodes print their recorded layout around reprinted children.
func (g *Grammar) Print(n *ast.Node) string {
	p := &printer{grammar: g, intact: make(map[*ast.Node]bool)}
	p.node(n)
	return p.out.String()
}

type printer struct {
	grammar *Grammar
	out     strings.Builder
	intact  map[*ast.Node]bool
}

func (p *printer) isIntact(n *ast.Node) bool {
	if v, ok := p.intact[n]; ok {
		return v
	}
	ok := n.Span != nil && n.Span.Source != nil && !n.Dirty()
	if ok {
		for _, f := range n.Fields() {
			switch f.Value.Kind {
			case ast.NodeValue:
				ok = f.Value.Node == nil || p.isIntact(f.Value.Node)
			case ast.ListValue:
				for _, c := range f.Value.List {
					if ok = p.isIntact(c); !ok {
						break
					}
				}
			}
			if !ok {
				break
			}
		}
	}
	p.intact[n] = ok
	return ok
}

func (p *printer) node(n *ast.Node) {
	if n == nil {
		return
	}
	if p.isIntact(n) {
		p.out.WriteString(n.Span.Text())
		return
	}
	layout, _ := n.Syntax.(*Layout)
	switch {
	case layout != nil:
		p.layout(n, layout)
	case n.IsLeaf():
		p.out.WriteString(n.Text())
	default:
		p.bare(n)
	}
}

func (p *printer) layout(n *ast.Node, l *Layout) {
	insert := p.missingName(n, l)
	for _, piece := range l.Pieces {
		if piece.Field == "" {
			text := piece.Text
			if insert != "" {
				if kw := p.grammar.syntax.NameKeywords[n.Kind]; kw != "" {
					if at := strings.Index(text, kw); at >= 0 {
						at += len(kw)
						text = text[:at] + " " + insert + text[at:]
						insert = ""
					}
				}
			}
			p.out.WriteString(text)
			continue
		}
		v, _ := n.Get(piece.Field)
		switch v.Kind {
		case ast.ScalarValue:
			p.out.WriteString(v.Scalar)
		case ast.NodeValue:
			p.node(v.Node)
		default:
			p.list(n, piece.Field, v.List, l.Lists[piece.Field])
		}
	}
}

// missingName returns the printed name of a node that gained a name its
// layout has no slot for, as when an anonymous function becomes a
// declaration.
func (p *printer) missingName(n *ast.Node, l *Layout) string {
	if p.grammar.syntax.NameKeywords[n.Kind] == "" {
		return ""
	}
	for _, fp := range p.grammar.forms {
		if fp.Declaration != n.Kind && fp.Expression != n.Kind {
			continue
		}
		name := n.ChildNode(fp.NameField)
		if name == nil || l.hasSlot(fp.NameField) {
			return ""
		}
		sub := &printer{grammar: p.grammar, intact: p.intact}
		sub.node(name)
		return sub.out.String()
	}
	return ""
}

func (p *printer) list(owner *ast.Node, field string, items []*ast.Node, l *ListLayout) {
	for i, item := range items {
		if i > 0 {
			p.out.WriteString(p.separator(owner, field, items[i-1], item, l))
		}
		p.node(item)
	}
}

func (p *printer) separator(owner *ast.Node, field string, prev, next *ast.Node, l *ListLayout) string {
	if l != nil {
		if prev.Span != nil && next.Span != nil && prev.Span.Source == l.Source && next.Span.Source == l.Source {
			if sep, ok := l.Seps[[2]int{prev.Span.Start, next.Span.Start}]; ok {
				return sep
			}
		}
		if len(l.Seps) > 0 {
			return l.Default
		}
	}
	if d, ok := p.grammar.Describe(owner.Kind); ok {
		if fd := d.Field(field); fd != nil && fd.Sep != "" {
			return fd.Sep
		}
	}
	return " "
}

// bare prints a node built without a layout by joining its children.
func (p *printer) bare(n *ast.Node) {
	first := true
	space := func() {
		if !first {
			p.out.WriteByte(' ')
		}
		first = false
	}
	for _, f := range n.Fields() {
		switch f.Value.Kind {
		case ast.ScalarValue:
			if f.Value.Scalar != "" {
				space()
				p.out.WriteString(f.Value.Scalar)
			}
		case ast.NodeValue:
			if f.Value.Node != nil {
				space()
				p.node(f.Value.Node)
			}
		default:
			if len(f.Value.List) > 0 {
				space()
				p.list(n, f.Name, f.Value.List, nil)
			}
		}
	}
}
