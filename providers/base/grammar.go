package base

import (
	"fmt"
	"strings"

	"github.com/termfx/astmorph/ast"
)

// LiteralSyntax describes a string-like literal kind.
type LiteralSyntax struct {
	// Parts is the list field holding the literal's content.
	Parts string
	// Fragment is the kind of a plain text part.
	Fragment string
	// Interpolation is the kind of an embedded expression part, if any.
	Interpolation string
}

// Syntax is the concrete-syntax knowledge a frontend needs on top of the
// kind table.
type Syntax struct {
	// Program is the list field of the root node holding top-level
	// statements.
	Program string

	ExpressionStatement string
	ExpressionField     string
	Terminator          string

	Identifier  string
	Identifiers []string
	Extras      []string

	Literals map[string]LiteralSyntax
	// Escape encodes text for a literal delimited by quote, Unescape
	// decodes a literal body.
	Escape   func(text, quote string) string
	Unescape func(raw string) string

	// NameKeywords maps a kind to the keyword its name follows, used when a
	// name is added to a node that was printed without one.
	NameKeywords map[string]string
}

// Grammar is the ast.Grammar of a tree-sitter language, built from a
// language config.
type Grammar struct {
	name        string
	kinds       map[string]*ast.KindDesc
	classes     []ast.EquivalenceClass
	forms       []ast.FormPair
	syntax      Syntax
	identifiers map[string]bool
	extras      map[string]bool
}

// NewGrammar indexes a language config.
func NewGrammar(config LanguageConfig) *Grammar {
	g := &Grammar{
		name:        config.Language(),
		kinds:       make(map[string]*ast.KindDesc),
		classes:     config.EquivalenceClasses(),
		forms:       config.FormPairs(),
		syntax:      config.Syntax(),
		identifiers: make(map[string]bool),
		extras:      make(map[string]bool),
	}
	for _, d := range config.Kinds() {
		d := d
		g.kinds[d.Kind] = &d
	}
	for _, k := range g.syntax.Identifiers {
		g.identifiers[k] = true
	}
	for _, k := range g.syntax.Extras {
		g.extras[k] = true
	}
	return g
}

func (g *Grammar) Name() string { return g.name }

func (g *Grammar) Describe(kind string) (*ast.KindDesc, bool) {
	d, ok := g.kinds[kind]
	return d, ok
}

func (g *Grammar) Category(kind string) ast.Category {
	if d, ok := g.kinds[kind]; ok {
		return d.Category
	}
	return ast.CategoryOther
}

func (g *Grammar) EquivalenceClasses() []ast.EquivalenceClass { return g.classes }

func (g *Grammar) FormPairs() []ast.FormPair { return g.forms }

func (g *Grammar) ExpressionStatement() (string, string) {
	return g.syntax.ExpressionStatement, g.syntax.ExpressionField
}

func (g *Grammar) IsIdentifier(kind string) bool { return g.identifiers[kind] }

func (g *Grammar) IsLiteral(kind string) bool {
	_, ok := g.syntax.Literals[kind]
	return ok
}

// LiteralValue decodes a literal. Literals with interpolations have no
// static value.
func (g *Grammar) LiteralValue(n *ast.Node) (string, bool) {
	ls, ok := g.syntax.Literals[n.Kind]
	if !ok {
		return "", false
	}
	if ls.Interpolation != "" {
		for _, part := range n.ChildList(ls.Parts) {
			if part.Kind == ls.Interpolation {
				return "", false
			}
		}
	}
	text := g.Print(n)
	if len(text) < 2 {
		return "", false
	}
	return g.syntax.Unescape(text[1 : len(text)-1]), true
}

// NewLiteral builds a literal with the same kind and quotes as like whose
// decoded value is value.
func (g *Grammar) NewLiteral(like *ast.Node, value string) (*ast.Node, error) {
	ls, ok := g.syntax.Literals[like.Kind]
	if !ok {
		return nil, fmt.Errorf("%s is not a literal kind", like.Kind)
	}
	quote := g.quoteOf(like)
	if quote == "" {
		return nil, fmt.Errorf("cannot find the delimiter of %s", like.Kind)
	}

	fragment := ast.Leaf(ls.Fragment, g.syntax.Escape(value, quote))
	out := ast.NewNode(like.Kind, ast.Field{Name: ls.Parts, Value: ast.List(fragment)})
	out.Syntax = &Layout{Pieces: []Piece{
		{Text: quote},
		{Field: ls.Parts, List: true},
		{Text: quote},
	}}
	return out, nil
}

func (g *Grammar) quoteOf(n *ast.Node) string {
	if n.Span != nil {
		if text := n.Span.Text(); text != "" {
			return text[:1]
		}
	}
	if lay, ok := n.Syntax.(*Layout); ok {
		for _, p := range lay.Pieces {
			if p.Field == "" && p.Text != "" {
				return p.Text[:1]
			}
		}
	}
	return ""
}

func (g *Grammar) NewIdentifier(name string) *ast.Node {
	return ast.Leaf(g.syntax.Identifier, name)
}

func (g *Grammar) NewExpressionStatement(expr *ast.Node) *ast.Node {
	out := ast.NewNode(g.syntax.ExpressionStatement,
		ast.Field{Name: g.syntax.ExpressionField, Value: ast.Child(expr)})
	out.Syntax = &Layout{Pieces: []Piece{
		{Field: g.syntax.ExpressionField},
		{Text: g.syntax.Terminator},
	}}
	return out
}

// fieldBySource finds the descriptor field fed by a parse-tree field.
func fieldBySource(d *ast.KindDesc, name string) *ast.FieldDesc {
	for i := range d.Fields {
		for _, alt := range strings.Split(d.Fields[i].Source, "|") {
			if alt == name {
				return &d.Fields[i]
			}
		}
	}
	return nil
}

// flagField finds the flag set by a keyword token.
func flagField(d *ast.KindDesc, token string) *ast.FieldDesc {
	return fieldBySource(d, "@"+token)
}

// positional returns the fields fed by unnamed children, in order.
func positional(d *ast.KindDesc) []*ast.FieldDesc {
	var out []*ast.FieldDesc
	for i := range d.Fields {
		for _, alt := range strings.Split(d.Fields[i].Source, "|") {
			if alt == "_" {
				out = append(out, &d.Fields[i])
				break
			}
		}
	}
	return out
}
