package ast

import (
	"errors"
	"fmt"
)

var (
	// ErrStalePath is returned when a path no longer points at its node.
	ErrStalePath = errors.New("stale path")
	// ErrNotList is returned by list edits on a field that is not a list.
	ErrNotList = errors.New("field is not a list")
	// ErrRootEdit is returned when a caller tries to replace the root.
	ErrRootEdit = errors.New("cannot replace the root node")
)

// Path is a location in a tree: a node together with the chain of parents
// that leads to it. Paths are immutable; edits return new paths.
type Path struct {
	parent *Path
	node   *Node
	field  string
	index  int
}

// Root returns the path of a tree's root.
func Root(n *Node) *Path {
	return &Path{node: n, index: -1}
}

// Node returns the node at this location. It is nil for an absent child.
func (p *Path) Node() *Node { return p.node }

// Parent returns the enclosing path, nil at the root.
func (p *Path) Parent() *Path { return p.parent }

// Field returns the parent field this location belongs to.
func (p *Path) Field() string { return p.field }

// Index returns the list index, or -1 when the location is a single child.
func (p *Path) Index() int { return p.index }

// InList reports whether the location is a list element.
func (p *Path) InList() bool { return p.index >= 0 }

// Child returns the location of a single-child field.
func (p *Path) Child(field string) *Path {
	var n *Node
	if p.node != nil {
		n = p.node.ChildNode(field)
	}
	return &Path{parent: p, node: n, field: field, index: -1}
}

// Elem returns the location of element i of a list field.
func (p *Path) Elem(field string, i int) *Path {
	return &Path{parent: p, node: p.node.ChildList(field)[i], field: field, index: i}
}

// Elems returns the locations of every element of a list field.
func (p *Path) Elems(field string) []*Path {
	list := p.node.ChildList(field)
	out := make([]*Path, len(list))
	for i, n := range list {
		out[i] = &Path{parent: p, node: n, field: field, index: i}
	}
	return out
}

// Depth is the number of ancestors.
func (p *Path) Depth() int {
	d := 0
	for q := p.parent; q != nil; q = q.parent {
		d++
	}
	return d
}

// Valid reports whether every step of the path still holds the node it was
// created for.
func (p *Path) Valid() bool {
	for q := p; q.parent != nil; q = q.parent {
		parent := q.parent.node
		if parent == nil {
			return false
		}
		if q.index >= 0 {
			list := parent.ChildList(q.field)
			if q.index >= len(list) || list[q.index] != q.node {
				return false
			}
			continue
		}
		if parent.ChildNode(q.field) != q.node {
			return false
		}
	}
	return true
}

// Replace swaps the node at this location and returns the new location.
func (p *Path) Replace(n *Node) (*Path, error) {
	if p.parent == nil {
		return nil, ErrRootEdit
	}
	if !p.Valid() {
		return nil, fmt.Errorf("replace %s: %w", p.field, ErrStalePath)
	}
	owner := p.parent.node
	if p.index >= 0 {
		list := append([]*Node(nil), owner.ChildList(p.field)...)
		list[p.index] = n
		owner.Set(p.field, List(list...))
	} else {
		owner.Set(p.field, Child(n))
	}
	return &Path{parent: p.parent, node: n, field: p.field, index: p.index}, nil
}

// InsertAt inserts nodes into a list field of the node at p, before index i.
func (p *Path) InsertAt(field string, i int, nodes ...*Node) error {
	list, err := p.list(field)
	if err != nil {
		return err
	}
	if i < 0 || i > len(list) {
		return fmt.Errorf("insert %s[%d]: index out of range", field, i)
	}
	out := make([]*Node, 0, len(list)+len(nodes))
	out = append(out, list[:i]...)
	out = append(out, nodes...)
	out = append(out, list[i:]...)
	p.node.Set(field, List(out...))
	return nil
}

// RemoveAt removes count elements of a list field of the node at p, starting
// at index i.
func (p *Path) RemoveAt(field string, i, count int) error {
	list, err := p.list(field)
	if err != nil {
		return err
	}
	if i < 0 || count < 0 || i+count > len(list) {
		return fmt.Errorf("remove %s[%d:%d]: index out of range", field, i, i+count)
	}
	out := make([]*Node, 0, len(list)-count)
	out = append(out, list[:i]...)
	out = append(out, list[i+count:]...)
	p.node.Set(field, List(out...))
	return nil
}

func (p *Path) list(field string) ([]*Node, error) {
	if p.node == nil || !p.Valid() {
		return nil, fmt.Errorf("edit %s: %w", field, ErrStalePath)
	}
	v, ok := p.node.Get(field)
	if ok && v.Kind != ListValue {
		return nil, fmt.Errorf("edit %s: %w", field, ErrNotList)
	}
	return v.List, nil
}

type step struct{ field, index int }

func (p *Path) steps() []step {
	out := make([]step, p.Depth())
	i := len(out) - 1
	for q := p; q.parent != nil; q = q.parent {
		ord := -1
		if q.parent.node != nil {
			ord = q.parent.node.FieldIndex(q.field)
		}
		out[i] = step{field: ord, index: q.index}
		i--
	}
	return out
}

// Compare orders two paths of the same tree in document order. An ancestor
// sorts before its descendants.
func Compare(a, b *Path) int {
	sa, sb := a.steps(), b.steps()
	for i := 0; i < len(sa) && i < len(sb); i++ {
		if c := cmpInt(sa[i].field, sb[i].field); c != 0 {
			return c
		}
		if c := cmpInt(sa[i].index, sb[i].index); c != 0 {
			return c
		}
	}
	return cmpInt(len(sa), len(sb))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
