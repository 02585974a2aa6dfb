package replace

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/termfx/astmorph/ast"
	"github.com/termfx/astmorph/match"
)

// ErrMultipleIntoSingleSlot is returned when several nodes (or none) must
// fill a single child slot.
var ErrMultipleIntoSingleSlot = errors.New("replacement does not fit a single slot")

// Replacement produces the nodes that replace one match.
type Replacement interface {
	Generate(m *match.Match) ([]*ast.Node, error)
}

// Func adapts a function to Replacement.
type Func func(m *match.Match) ([]*ast.Node, error)

// Generate implements Replacement.
func (f Func) Generate(m *match.Match) ([]*ast.Node, error) { return f(m) }

// Options tunes Replace.
type Options struct {
	Where  map[string]match.Predicate
	Logger *slog.Logger
}

// Replace replaces every match of p in root and returns how many matches
// were rewritten. All matches are found before the tree is touched, then
// applied from the last to the first in document order, innermost first.
// Each match is re-matched in place before it is applied so captures see
// the result of replacements nested inside them; a match that no longer
// holds is skipped.
func Replace(root *ast.Node, p *match.Pattern, r Replacement, opts Options) (int, error) {
	matches := match.Find(root, p, match.FindOptions{Where: opts.Where})
	return Apply(p, matches, r, opts)
}

// Apply rewrites a snapshot of matches taken from one tree.
func Apply(p *match.Pattern, matches []*match.Match, r Replacement, opts Options) (int, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ordered := append([]*match.Match(nil), matches...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ast.Compare(ordered[i].Location(), ordered[j].Location()) > 0
	})

	g := p.Grammar()
	count := 0
	for _, m := range ordered {
		fresh := refresh(p, m, opts.Where)
		if fresh == nil {
			log.Debug("skipping match that no longer holds", "kind", m.Location().Node().Kind)
			continue
		}
		nodes, err := r.Generate(fresh)
		if err != nil {
			return count, fmt.Errorf("generate replacement: %w", err)
		}
		if err := Splice(g, fresh, nodes); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func refresh(p *match.Pattern, m *match.Match, where map[string]match.Predicate) *match.Match {
	if m.Span != nil {
		for _, sp := range m.Span {
			if !sp.Valid() {
				return nil
			}
		}
		span, env := p.MatchSpan(m.Span[0])
		if env == nil || !match.Accept(env, where) {
			return nil
		}
		return &match.Match{Span: span, Env: env}
	}
	if !m.Path.Valid() {
		return nil
	}
	env := p.MatchNode(m.Path)
	if env == nil || !match.Accept(env, where) {
		return nil
	}
	return &match.Match{Path: m.Path, Env: env}
}

// Splice puts nodes in place of a match, coercing them to the slot.
//
// A span is replaced by inserting the nodes where its first element was and
// removing every element of the span. A node whose parent is an expression
// statement keeps the statement when the replacement is a single
// expression, otherwise the statement itself is replaced.
func Splice(g ast.Grammar, m *match.Match, nodes []*ast.Node) error {
	if m.Span != nil {
		first := m.Span[0]
		slot := g.Category(first.Node().Kind)
		return place(g, first.Parent(), first.Field(), first.Index(), len(m.Span), nodes, slot)
	}

	p := m.Path
	stmtKind, _ := g.ExpressionStatement()
	if parent := p.Parent(); parent != nil && parent.Node() != nil && parent.Node().Kind == stmtKind {
		if len(nodes) == 1 {
			if expr, err := ToExpression(g, nodes[0]); err == nil {
				_, err = p.Replace(expr)
				return err
			}
		}
		p = parent
	}

	slot := g.Category(p.Node().Kind)
	if p.InList() {
		return place(g, p.Parent(), p.Field(), p.Index(), 1, nodes, slot)
	}
	coerced, err := Coerce(g, nodes, slot)
	if err != nil {
		return err
	}
	if len(coerced) != 1 {
		return fmt.Errorf("%d nodes for %s: %w", len(coerced), p.Field(), ErrMultipleIntoSingleSlot)
	}
	_, err = p.Replace(coerced[0])
	return err
}

func place(g ast.Grammar, owner *ast.Path, field string, index, count int, nodes []*ast.Node, slot ast.Category) error {
	coerced, err := Coerce(g, nodes, slot)
	if err != nil {
		return err
	}
	if err := owner.RemoveAt(field, index, count); err != nil {
		return err
	}
	return owner.InsertAt(field, index, coerced...)
}
