package replace

import (
	"errors"
	"fmt"

	"github.com/termfx/astmorph/ast"
)

// AnonymousName names an anonymous function or class that has to become a
// declaration.
const AnonymousName = "anonymous"

// ErrShapeMismatch is returned when a replacement cannot fill its slot.
var ErrShapeMismatch = errors.New("shape mismatch")

// ShapeError reports a replacement node that does not fit its slot.
type ShapeError struct {
	Kind string
	Slot ast.Category
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("cannot place %s in %s slot", e.Kind, e.Slot)
}

func (e *ShapeError) Unwrap() error { return ErrShapeMismatch }

// ToExpression coerces a node into an expression slot. Declarations with an
// expression form are converted and expression statements unwrapped.
func ToExpression(g ast.Grammar, n *ast.Node) (*ast.Node, error) {
	for _, fp := range g.FormPairs() {
		if n.Kind == fp.Declaration {
			return n.WithKind(fp.Expression), nil
		}
	}
	if kind, field := g.ExpressionStatement(); n.Kind == kind {
		if inner := n.ChildNode(field); inner != nil {
			return inner, nil
		}
	}
	if _, known := g.Describe(n.Kind); !known || g.Category(n.Kind) == ast.CategoryExpression {
		return n, nil
	}
	return nil, &ShapeError{Kind: n.Kind, Slot: ast.CategoryExpression}
}

// ToStatement coerces a node into a statement slot. Expression forms with a
// declaration form are converted, named "anonymous" when they had no name;
// other expressions are wrapped in an expression statement.
func ToStatement(g ast.Grammar, n *ast.Node) (*ast.Node, error) {
	if kind, field := g.ExpressionStatement(); n.Kind == kind {
		if inner := n.ChildNode(field); inner != nil && expressionForm(g, inner.Kind) {
			return ToStatement(g, inner)
		}
	}
	for _, fp := range g.FormPairs() {
		if n.Kind != fp.Expression {
			continue
		}
		decl := n.WithKind(fp.Declaration)
		if fp.NameField != "" && decl.ChildNode(fp.NameField) == nil {
			decl.Set(fp.NameField, ast.Child(g.NewIdentifier(AnonymousName)))
		}
		return decl, nil
	}
	if _, known := g.Describe(n.Kind); !known {
		return n, nil
	}
	switch g.Category(n.Kind) {
	case ast.CategoryStatement:
		return n, nil
	case ast.CategoryExpression:
		return g.NewExpressionStatement(n), nil
	default:
		return nil, &ShapeError{Kind: n.Kind, Slot: ast.CategoryStatement}
	}
}

// Coerce coerces every node for a slot. Slots of other categories take
// nodes as they are.
func Coerce(g ast.Grammar, nodes []*ast.Node, slot ast.Category) ([]*ast.Node, error) {
	out := make([]*ast.Node, len(nodes))
	for i, n := range nodes {
		var err error
		switch slot {
		case ast.CategoryExpression:
			out[i], err = ToExpression(g, n)
		case ast.CategoryStatement:
			out[i], err = ToStatement(g, n)
		default:
			out[i] = n
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func expressionForm(g ast.Grammar, kind string) bool {
	for _, fp := range g.FormPairs() {
		if fp.Expression == kind {
			return true
		}
	}
	return false
}
