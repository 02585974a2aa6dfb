package match

import (
	"sort"

	"github.com/termfx/astmorph/ast"
)

// Env is a capture environment. Each name is bound to exactly one of a node,
// a text or a node list. Envs are persistent: binding returns a new Env and
// never changes the receiver, so a failed branch cannot leak bindings.
type Env struct {
	nodes map[string]*ast.Path
	texts map[string]string
	lists map[string][]*ast.Path
	// textAt holds the literal a text binding was read from.
	textAt map[string]*ast.Path
}

// NewEnv returns an empty environment.
func NewEnv() *Env { return &Env{} }

// Node returns a node binding.
func (e *Env) Node(name string) (*ast.Path, bool) {
	p, ok := e.nodes[name]
	return p, ok
}

// Text returns a raw-text binding.
func (e *Env) Text(name string) (string, bool) {
	s, ok := e.texts[name]
	return s, ok
}

// TextAt returns the literal a raw-text binding was read from.
func (e *Env) TextAt(name string) (*ast.Path, bool) {
	p, ok := e.textAt[name]
	return p, ok
}

// List returns an array-capture binding.
func (e *Env) List(name string) ([]*ast.Path, bool) {
	l, ok := e.lists[name]
	return l, ok
}

// Has reports whether name is bound in any form.
func (e *Env) Has(name string) bool {
	_, n := e.nodes[name]
	_, t := e.texts[name]
	_, l := e.lists[name]
	return n || t || l
}

// Len is the number of bound names.
func (e *Env) Len() int {
	return len(e.nodes) + len(e.texts) + len(e.lists)
}

// Names returns the bound names in sorted order.
func (e *Env) Names() []string {
	names := make([]string, 0, e.Len())
	for k := range e.nodes {
		names = append(names, k)
	}
	for k := range e.texts {
		names = append(names, k)
	}
	for k := range e.lists {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// BindNode returns a copy of e with name bound to p.
func (e *Env) BindNode(name string, p *ast.Path) *Env {
	out := *e
	out.nodes = make(map[string]*ast.Path, len(e.nodes)+1)
	for k, v := range e.nodes {
		out.nodes[k] = v
	}
	out.nodes[name] = p
	return &out
}

// BindText returns a copy of e with name bound to s.
func (e *Env) BindText(name, s string) *Env {
	out := *e
	out.texts = make(map[string]string, len(e.texts)+1)
	for k, v := range e.texts {
		out.texts[k] = v
	}
	out.texts[name] = s
	return &out
}

// BindTextAt is BindText for text read from the literal at p.
func (e *Env) BindTextAt(name, s string, p *ast.Path) *Env {
	out := e.BindText(name, s)
	out.textAt = make(map[string]*ast.Path, len(e.textAt)+1)
	for k, v := range e.textAt {
		out.textAt[k] = v
	}
	out.textAt[name] = p
	return out
}

// BindList returns a copy of e with name bound to an ordered span.
func (e *Env) BindList(name string, span []*ast.Path) *Env {
	out := *e
	out.lists = make(map[string][]*ast.Path, len(e.lists)+1)
	for k, v := range e.lists {
		out.lists[k] = v
	}
	out.lists[name] = append([]*ast.Path(nil), span...)
	return &out
}

// Merge combines two environments. It fails when a name bound on both sides
// disagrees structurally, and always fails for a name that is an array
// capture on both sides: each array capture is bound once.
func (e *Env) Merge(o *Env) (*Env, bool) {
	out := e
	for name, p := range o.nodes {
		if cur, ok := out.nodes[name]; ok {
			if !ast.Equal(cur.Node(), p.Node()) {
				return nil, false
			}
			continue
		}
		if out.Has(name) {
			return nil, false
		}
		out = out.BindNode(name, p)
	}
	for name, s := range o.texts {
		if cur, ok := out.texts[name]; ok {
			if cur != s {
				return nil, false
			}
			continue
		}
		if out.Has(name) {
			return nil, false
		}
		if at, ok := o.textAt[name]; ok {
			out = out.BindTextAt(name, s, at)
			continue
		}
		out = out.BindText(name, s)
	}
	for name, l := range o.lists {
		if out.Has(name) {
			return nil, false
		}
		out = out.BindList(name, l)
	}
	return out, true
}

// Match is one successful alignment of a pattern.
type Match struct {
	// Path is the matched node for expression and single statement patterns.
	Path *ast.Path
	// Span holds the consumed siblings, in order, for sequence patterns.
	Span []*ast.Path
	Env  *Env
}

// Paths returns the consumed locations.
func (m *Match) Paths() []*ast.Path {
	if m.Span != nil {
		return m.Span
	}
	return []*ast.Path{m.Path}
}

// Nodes returns the consumed nodes.
func (m *Match) Nodes() []*ast.Node {
	paths := m.Paths()
	out := make([]*ast.Node, len(paths))
	for i, p := range paths {
		out[i] = p.Node()
	}
	return out
}

// Location returns the first consumed location.
func (m *Match) Location() *ast.Path {
	if m.Span != nil {
		return m.Span[0]
	}
	return m.Path
}
