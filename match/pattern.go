package match

import (
	"fmt"
	"sort"

	"github.com/termfx/astmorph/ast"
)

// Shape is the form a pattern source compiles to.
type Shape int

const (
	// ShapeExpression is a single expression statement; the expression is
	// the pattern.
	ShapeExpression Shape = iota
	// ShapeStatement is a single statement of any other kind.
	ShapeStatement
	// ShapeSequence is a run of sibling statements, possibly with gaps.
	ShapeSequence
)

func (s Shape) String() string {
	switch s {
	case ShapeExpression:
		return "expression"
	case ShapeStatement:
		return "statement"
	default:
		return "sequence"
	}
}

// Pattern is a compiled pattern source, immutable and reusable.
type Pattern struct {
	Source string
	Shape  Shape

	node     Matcher
	seq      *listPattern
	captures []string
	grammar  ast.Grammar
}

// CompilePattern compiles the statements a frontend parsed from a pattern
// source.
func (c *Compiler) CompilePattern(source string, stmts []*ast.Node) (*Pattern, error) {
	if len(stmts) == 0 {
		return nil, fmt.Errorf("compile %q: %w", source, ErrEmptyPattern)
	}
	s := c.begin()
	p := &Pattern{Source: source, grammar: c.grammar}

	if len(stmts) == 1 {
		if _, kind := CaptureName(c.grammar, stmts[0]); kind != ArrayCapture {
			target := stmts[0]
			p.Shape = ShapeStatement
			if kind, field := c.grammar.ExpressionStatement(); target.Kind == kind {
				if expr := target.ChildNode(field); expr != nil {
					target, p.Shape = expr, ShapeExpression
				}
			}
			m, err := s.node(target)
			if err != nil {
				return nil, fmt.Errorf("compile %q: %w", source, err)
			}
			p.node = m
			p.captures = names(s.bound)
			return p, nil
		}
	}

	lp, err := s.list(stmts)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", source, err)
	}
	if len(lp.steps) == 0 {
		return nil, fmt.Errorf("compile %q: %w", source, ErrNoAnchor)
	}
	p.Shape = ShapeSequence
	p.seq = lp
	p.captures = names(s.bound)
	return p, nil
}

func names(bound map[string]bindKind) []string {
	out := make([]string, 0, len(bound))
	for k := range bound {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Captures returns the capture names the pattern binds.
func (p *Pattern) Captures() []string {
	return append([]string(nil), p.captures...)
}

// Kinds returns the kinds the pattern's root (or first anchor) accepts.
func (p *Pattern) Kinds() []string {
	if p.node != nil {
		return p.node.Kinds()
	}
	return p.seq.steps[0].m.Kinds()
}

// MatchNode matches an expression or statement pattern at one location.
func (p *Pattern) MatchNode(at *ast.Path) *Env {
	if p.node == nil {
		return nil
	}
	return p.node.Match(at, NewEnv())
}

// MatchSpan matches a sequence pattern against the list holding at,
// starting at at's index, and returns the consumed span.
func (p *Pattern) MatchSpan(at *ast.Path) ([]*ast.Path, *Env) {
	if p.seq == nil || at.Parent() == nil || !at.InList() {
		return nil, nil
	}
	elems := at.Parent().Elems(at.Field())
	end, env := p.seq.align(elems, at.Index(), NewEnv(), false)
	if env == nil {
		return nil, nil
	}
	return elems[at.Index():end], env
}

// Grammar returns the grammar the pattern was compiled for.
func (p *Pattern) Grammar() ast.Grammar { return p.grammar }
