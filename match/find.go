package match

import (
	"github.com/termfx/astmorph/ast"
)

// Predicate filters a capture after a structural match. For an array
// capture it is called for every element.
type Predicate func(p *ast.Path) bool

// FindOptions tunes a search.
type FindOptions struct {
	// Where maps capture names to predicates. A match is kept only when
	// every predicate whose capture is bound accepts it.
	Where map[string]Predicate
}

// Find returns every match of the pattern in the tree rooted at root.
//
// Expression and statement patterns are tried at every node in document
// order. Sequence patterns are tried against every list in the tree; the
// matches of a nested list come before those of the list that encloses it,
// and matches within one list never overlap.
func Find(root *ast.Node, p *Pattern, opts FindOptions) []*Match {
	return FindAt(ast.Root(root), p, opts)
}

// FindAt searches the subtree at a location.
func FindAt(root *ast.Path, p *Pattern, opts FindOptions) []*Match {
	s := &search{pattern: p, where: opts.Where}
	if p.seq != nil {
		s.sequences(root)
		return s.out
	}
	if root.Parent() != nil || p.grammar.Category(root.Node().Kind) != ast.CategoryOther {
		s.visit(root)
	} else {
		s.children(root)
	}
	return s.out
}

type search struct {
	pattern *Pattern
	where   map[string]Predicate
	out     []*Match
}

func (s *search) visit(p *ast.Path) {
	if p.Node() == nil {
		return
	}
	if env := s.pattern.node.Match(p, NewEnv()); env != nil && s.accept(env) {
		s.out = append(s.out, &Match{Path: p, Env: env})
	}
	s.children(p)
}

func (s *search) children(p *ast.Path) {
	for _, f := range p.Node().Fields() {
		switch f.Value.Kind {
		case ast.NodeValue:
			s.visit(p.Child(f.Name))
		case ast.ListValue:
			for _, e := range p.Elems(f.Name) {
				s.visit(e)
			}
		}
	}
}

func (s *search) sequences(p *ast.Path) {
	n := p.Node()
	if n == nil {
		return
	}
	for _, f := range n.Fields() {
		switch f.Value.Kind {
		case ast.NodeValue:
			s.sequences(p.Child(f.Name))
		case ast.ListValue:
			for _, e := range p.Elems(f.Name) {
				s.sequences(e)
			}
		}
	}
	for _, f := range n.Fields() {
		if f.Value.Kind == ast.ListValue {
			s.scan(p.Elems(f.Name))
		}
	}
}

// scan enumerates non-overlapping alignments in one list: after a match
// ending at k the next attempt starts at k+1, after a failure at the next
// offset. A leading gap absorbs the elements from the start offset up to
// the first anchor, so it never reaches back into an earlier match.
func (s *search) scan(elems []*ast.Path) {
	lp := s.pattern.seq
	for start := 0; start < len(elems); {
		end, env := lp.align(elems, start, NewEnv(), false)
		if env != nil && s.accept(env) {
			s.out = append(s.out, &Match{Span: elems[start:end:end], Env: env})
			start = end
		} else {
			start++
		}
	}
}

func (s *search) accept(env *Env) bool {
	return Accept(env, s.where)
}

// Accept evaluates where predicates against an environment. A raw-text
// capture is checked against the literal it was read from.
func Accept(env *Env, where map[string]Predicate) bool {
	for name, pred := range where {
		if p, ok := env.Node(name); ok {
			if !pred(p) {
				return false
			}
			continue
		}
		if list, ok := env.List(name); ok {
			for _, p := range list {
				if !pred(p) {
					return false
				}
			}
			continue
		}
		if p, ok := env.TextAt(name); ok && !pred(p) {
			return false
		}
	}
	return true
}
