// Package replace builds replacement trees from templates and splices them
// into matched trees.
package replace

import (
	"fmt"

	"github.com/termfx/astmorph/ast"
	"github.com/termfx/astmorph/match"
)

type nodeGen func(env *match.Env) (*ast.Node, error)

type listGen func(env *match.Env) ([]*ast.Node, error)

// Template is a compiled replacement: a pure function from a capture
// environment to new statements. It never aliases captured nodes.
type Template struct {
	Source  string
	grammar ast.Grammar
	body    listGen
}

// Compile compiles the statements a frontend parsed from a replacement
// source.
func Compile(g ast.Grammar, source string, stmts []*ast.Node) (*Template, error) {
	c := &compiler{grammar: g}
	body, err := c.list(stmts)
	if err != nil {
		return nil, fmt.Errorf("compile replacement %q: %w", source, err)
	}
	return &Template{Source: source, grammar: g, body: body}, nil
}

// Build synthesizes the replacement statements for an environment.
func (t *Template) Build(env *match.Env) ([]*ast.Node, error) {
	return t.body(env)
}

// Generate implements Replacement.
func (t *Template) Generate(m *match.Match) ([]*ast.Node, error) {
	return t.body(m.Env)
}

type compiler struct {
	grammar ast.Grammar
}

func (c *compiler) node(n *ast.Node) (nodeGen, error) {
	if n == nil {
		return func(*match.Env) (*ast.Node, error) { return nil, nil }, nil
	}

	name, kind := match.CaptureName(c.grammar, n)
	switch kind {
	case match.ArrayCapture:
		return nil, &match.CompileError{Kind: n.Kind, Capture: name, Err: match.ErrArrayCaptureOutsideList}
	case match.NodeCapture:
		return c.capture(n, name), nil
	}

	if c.grammar.IsIdentifier(n.Kind) {
		if text, ok := match.Unescape(n.Text()); ok {
			return constant(c.grammar.NewIdentifier(text)), nil
		}
	}
	if c.grammar.IsLiteral(n.Kind) {
		if value, ok := c.grammar.LiteralValue(n); ok {
			if text, escaped := match.Unescape(value); escaped {
				lit, err := c.grammar.NewLiteral(n, text)
				if err != nil {
					return nil, err
				}
				return constant(lit), nil
			}
			if match.ParseCapture(value) != match.NotCapture {
				return c.literal(n, value), nil
			}
		}
	}

	if !hasPlaceholder(c.grammar, n) {
		return constant(n), nil
	}
	return c.generic(n)
}

func constant(n *ast.Node) nodeGen {
	return func(*match.Env) (*ast.Node, error) { return ast.Clone(n), nil }
}

// capture substitutes a node binding. An expression statement placeholder
// bound to a statement yields the statement itself, and a statement bound
// into an expression position yields its expression.
func (c *compiler) capture(tpl *ast.Node, name string) nodeGen {
	stmtKind, stmtField := c.grammar.ExpressionStatement()
	wrapped := tpl.Kind == stmtKind
	return func(env *match.Env) (*ast.Node, error) {
		p, ok := env.Node(name)
		if !ok || p.Node() == nil {
			return ast.Clone(tpl), nil
		}
		captured := ast.Clone(p.Node())
		if wrapped {
			if c.grammar.Category(captured.Kind) == ast.CategoryStatement {
				return captured, nil
			}
			out := ast.Clone(tpl)
			out.Set(stmtField, ast.Child(captured))
			return out, nil
		}
		if captured.Kind == stmtKind {
			if inner := captured.ChildNode(stmtField); inner != nil {
				return inner, nil
			}
		}
		return captured, nil
	}
}

// literal substitutes raw text into a literal, re-escaped for its quoting.
func (c *compiler) literal(tpl *ast.Node, name string) nodeGen {
	return func(env *match.Env) (*ast.Node, error) {
		text, ok := env.Text(name)
		if !ok {
			p, bound := env.Node(name)
			if !bound || p.Node() == nil || !c.grammar.IsLiteral(p.Node().Kind) {
				return ast.Clone(tpl), nil
			}
			if text, ok = c.grammar.LiteralValue(p.Node()); !ok {
				return ast.Clone(p.Node()), nil
			}
		}
		return c.grammar.NewLiteral(tpl, text)
	}
}

func (c *compiler) generic(n *ast.Node) (nodeGen, error) {
	type fieldGen struct {
		name  string
		value ast.Value
		node  nodeGen
		list  listGen
	}
	gens := make([]fieldGen, 0, len(n.Fields()))
	for _, f := range n.Fields() {
		fg := fieldGen{name: f.Name, value: f.Value}
		var err error
		switch f.Value.Kind {
		case ast.NodeValue:
			fg.node, err = c.node(f.Value.Node)
		case ast.ListValue:
			fg.list, err = c.list(f.Value.List)
		}
		if err != nil {
			return nil, err
		}
		gens = append(gens, fg)
	}

	return func(env *match.Env) (*ast.Node, error) {
		fields := make([]ast.Field, 0, len(gens))
		for _, fg := range gens {
			v := fg.value
			switch {
			case fg.node != nil:
				child, err := fg.node(env)
				if err != nil {
					return nil, err
				}
				v = ast.Child(child)
			case fg.list != nil:
				items, err := fg.list(env)
				if err != nil {
					return nil, err
				}
				v = ast.List(items...)
			}
			fields = append(fields, ast.Field{Name: fg.name, Value: v})
		}
		out := ast.NewNode(n.Kind, fields...)
		out.Span = n.Span
		out.Syntax = n.Syntax
		out.MarkDirty()
		return out, nil
	}, nil
}

func (c *compiler) list(elems []*ast.Node) (listGen, error) {
	gens := make([]listGen, 0, len(elems))
	for _, e := range elems {
		if name, kind := match.CaptureName(c.grammar, e); kind == match.ArrayCapture {
			gens = append(gens, spliceGen(e, name))
			continue
		}
		g, err := c.node(e)
		if err != nil {
			return nil, err
		}
		gens = append(gens, func(env *match.Env) ([]*ast.Node, error) {
			n, err := g(env)
			if err != nil || n == nil {
				return nil, err
			}
			return []*ast.Node{n}, nil
		})
	}
	return func(env *match.Env) ([]*ast.Node, error) {
		out := make([]*ast.Node, 0, len(gens))
		for _, g := range gens {
			items, err := g(env)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		}
		return out, nil
	}, nil
}

func spliceGen(tpl *ast.Node, name string) listGen {
	return func(env *match.Env) ([]*ast.Node, error) {
		span, ok := env.List(name)
		if !ok {
			return []*ast.Node{ast.Clone(tpl)}, nil
		}
		out := make([]*ast.Node, len(span))
		for i, p := range span {
			out[i] = ast.Clone(p.Node())
		}
		return out, nil
	}
}

// hasPlaceholder reports whether a template subtree needs substitution.
func hasPlaceholder(g ast.Grammar, n *ast.Node) bool {
	found := false
	ast.Walk(n, func(c *ast.Node) bool {
		if found {
			return false
		}
		if g.IsIdentifier(c.Kind) {
			text := c.Text()
			if match.ParseCapture(text) != match.NotCapture {
				found = true
			} else if _, ok := match.Unescape(text); ok {
				found = true
			}
		}
		if g.IsLiteral(c.Kind) {
			if v, ok := g.LiteralValue(c); ok {
				if match.ParseCapture(v) != match.NotCapture {
					found = true
				} else if _, esc := match.Unescape(v); esc {
					found = true
				}
			}
		}
		return !found
	})
	return found
}
