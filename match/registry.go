package match

import "github.com/termfx/astmorph/ast"

type class struct {
	members    map[string]bool
	kinds      []string
	base       string
	baseFields map[string]bool
}

// Registry answers which candidate kinds a pattern kind accepts. It is built
// once per grammar and is read-only afterwards.
type Registry struct {
	classOf map[string]*class
}

// NewRegistry builds a registry from equivalence classes. A kind listed in
// several classes belongs to the first one.
func NewRegistry(classes []ast.EquivalenceClass) *Registry {
	r := &Registry{classOf: make(map[string]*class)}
	for _, ec := range classes {
		c := &class{
			members:    make(map[string]bool, len(ec.Kinds)),
			kinds:      append([]string(nil), ec.Kinds...),
			base:       ec.Base,
			baseFields: make(map[string]bool, len(ec.BaseFields)),
		}
		for _, k := range ec.Kinds {
			c.members[k] = true
		}
		for _, f := range ec.BaseFields {
			c.baseFields[f] = true
		}
		for _, k := range ec.Kinds {
			if _, taken := r.classOf[k]; !taken {
				r.classOf[k] = c
			}
		}
	}
	return r
}

// Compatible reports whether a candidate kind can match a pattern kind.
func (r *Registry) Compatible(query, candidate string) bool {
	if query == candidate {
		return true
	}
	c, ok := r.classOf[query]
	return ok && c.members[candidate]
}

// Kinds returns what a pattern kind matches, for diagnostics: the base kind
// of a base class, the members of a plain class or the kind itself.
func (r *Registry) Kinds(query string) []string {
	c, ok := r.classOf[query]
	switch {
	case !ok:
		return []string{query}
	case c.base != "":
		return []string{c.base}
	default:
		return append([]string(nil), c.kinds...)
	}
}

// Members returns every kind a pattern kind accepts.
func (r *Registry) Members(query string) []string {
	if c, ok := r.classOf[query]; ok {
		return append([]string(nil), c.kinds...)
	}
	return []string{query}
}

// BaseField reports whether a field is compared when a pattern of kind query
// meets a candidate of another kind in the same base class. Fields outside
// the base are compared only when the pattern fills them in.
func (r *Registry) BaseField(query, field string) bool {
	c, ok := r.classOf[query]
	if !ok || c.base == "" {
		return true
	}
	return c.baseFields[field]
}

// HasBase reports whether query belongs to a base class.
func (r *Registry) HasBase(query string) bool {
	c, ok := r.classOf[query]
	return ok && c.base != ""
}
