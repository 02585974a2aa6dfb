package match

import (
	"context"
	"log/slog"
	"strings"

	"github.com/termfx/astmorph/ast"
)

// Matcher tests the node at a location against a compiled pattern. It
// returns the extended environment on success and nil on failure. Matchers
// are immutable and safe for concurrent use.
type Matcher interface {
	Match(p *ast.Path, env *Env) *Env
	Kinds() []string
}

// FieldMatcher tests one field of the node at parent. Generic node matchers
// are a sequence of field matchers, and callers can override any of them.
type FieldMatcher interface {
	MatchField(parent *ast.Path, env *Env) *Env
}

type fieldCheck struct {
	name string
	m    FieldMatcher
	// base is true when the field is compared against candidates of another
	// kind of the same base class.
	base bool
}

// nodeMatcher is the generic matcher: a kind check followed by field
// matchers evaluated left to right.
type nodeMatcher struct {
	kind     string
	registry *Registry
	fields   []fieldCheck
	log      *slog.Logger
	depth    int
}

func (m *nodeMatcher) Kinds() []string { return m.registry.Kinds(m.kind) }

func (m *nodeMatcher) Match(p *ast.Path, env *Env) *Env {
	n := p.Node()
	if n == nil {
		return nil
	}
	if !m.registry.Compatible(m.kind, n.Kind) {
		trace(m.log, m.depth, "kind mismatch", "want", m.kind, "got", n.Kind)
		return nil
	}
	cross := n.Kind != m.kind
	for _, f := range m.fields {
		if cross && !f.base {
			continue
		}
		if env = f.m.MatchField(p, env); env == nil {
			trace(m.log, m.depth, "field mismatch", "kind", n.Kind, "field", f.name)
			return nil
		}
	}
	trace(m.log, m.depth, "matched", "kind", n.Kind)
	return env
}

// exactMatcher handles kinds the grammar does not describe.
type exactMatcher struct {
	node *ast.Node
}

func (m *exactMatcher) Kinds() []string { return []string{m.node.Kind} }

func (m *exactMatcher) Match(p *ast.Path, env *Env) *Env {
	if ast.Equal(m.node, p.Node()) {
		return env
	}
	return nil
}

type scalarField struct {
	name  string
	value string
}

func (f *scalarField) MatchField(parent *ast.Path, env *Env) *Env {
	v, _ := parent.Node().Get(f.name)
	if v.Kind != ast.ScalarValue && !v.Empty() {
		return nil
	}
	if v.Scalar != f.value {
		return nil
	}
	return env
}

type nodeField struct {
	name string
	m    Matcher
}

func (f *nodeField) MatchField(parent *ast.Path, env *Env) *Env {
	child := parent.Child(f.name)
	if f.m == nil {
		if child.Node() != nil {
			return nil
		}
		return env
	}
	return f.m.Match(child, env)
}

type listField struct {
	name string
	list *listPattern
}

func (f *listField) MatchField(parent *ast.Path, env *Env) *Env {
	_, out := f.list.align(parent.Elems(f.name), 0, env, true)
	return out
}

// valueField compares a field the grammar does not describe.
type valueField struct {
	name  string
	value ast.Value
}

func (f *valueField) MatchField(parent *ast.Path, env *Env) *Env {
	v, ok := parent.Node().Get(f.name)
	if !ok {
		v = ast.Value{Kind: f.value.Kind}
	}
	if ast.ValueEqual(f.value, v) {
		return env
	}
	return nil
}

// anyField accepts whatever the candidate holds.
type anyField struct{}

func (anyField) MatchField(_ *ast.Path, env *Env) *Env { return env }

func trace(log *slog.Logger, depth int, msg string, args ...any) {
	if log == nil || !log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	log.Debug(strings.Repeat("  ", depth)+msg, args...)
}
