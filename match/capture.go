package match

import (
	"regexp"
	"strings"

	"github.com/termfx/astmorph/ast"
)

var (
	nodeCaptureRe  = regexp.MustCompile(`^\$[A-Za-z0-9][A-Za-z0-9_]*$`)
	arrayCaptureRe = regexp.MustCompile(`^\$_[A-Za-z0-9_]*$`)
)

// CaptureKind classifies a placeholder name.
type CaptureKind int

const (
	NotCapture CaptureKind = iota
	NodeCapture
	ArrayCapture
)

// ParseCapture classifies a name: "$a" is a node capture, "$_a" an array
// capture.
func ParseCapture(name string) CaptureKind {
	switch {
	case nodeCaptureRe.MatchString(name):
		return NodeCapture
	case arrayCaptureRe.MatchString(name):
		return ArrayCapture
	default:
		return NotCapture
	}
}

// Unescape turns an escaped placeholder like "$$a" into the literal "$a".
// Other text is returned unchanged.
func Unescape(name string) (string, bool) {
	if !strings.HasPrefix(name, "$$") {
		return name, false
	}
	if ParseCapture(name[1:]) == NotCapture {
		return name, false
	}
	return name[1:], true
}

// CaptureName returns the placeholder name carried by an identifier node,
// or by an expression statement wrapping one.
func CaptureName(g ast.Grammar, n *ast.Node) (string, CaptureKind) {
	if n == nil {
		return "", NotCapture
	}
	if kind, field := g.ExpressionStatement(); n.Kind == kind {
		n = n.ChildNode(field)
		if n == nil {
			return "", NotCapture
		}
	}
	if !g.IsIdentifier(n.Kind) {
		return "", NotCapture
	}
	name := n.Text()
	return name, ParseCapture(name)
}

// captureMatcher binds the first occurrence of a name.
type captureMatcher struct {
	name string
}

func (m *captureMatcher) Kinds() []string { return nil }

func (m *captureMatcher) Match(p *ast.Path, env *Env) *Env {
	if p.Node() == nil || env.Has(m.name) {
		return nil
	}
	return env.BindNode(m.name, p)
}

// backrefMatcher is a later occurrence of a bound name: the candidate must
// equal the first binding.
type backrefMatcher struct {
	name string
}

func (m *backrefMatcher) Kinds() []string { return nil }

func (m *backrefMatcher) Match(p *ast.Path, env *Env) *Env {
	if p.Node() == nil {
		return nil
	}
	bound, ok := env.Node(m.name)
	if !ok {
		if env.Has(m.name) {
			return nil
		}
		return env.BindNode(m.name, p)
	}
	if !ast.Equal(bound.Node(), p.Node()) {
		return nil
	}
	return env
}

// textCapture overrides the content field of a literal pattern whose value
// is a placeholder, binding the decoded text of the candidate literal.
type textCapture struct {
	name    string
	grammar ast.Grammar
}

func (m *textCapture) MatchField(parent *ast.Path, env *Env) *Env {
	text, ok := m.grammar.LiteralValue(parent.Node())
	if !ok {
		return nil
	}
	if cur, bound := env.Text(m.name); bound {
		if cur != text {
			return nil
		}
		return env
	}
	if env.Has(m.name) {
		return nil
	}
	return env.BindTextAt(m.name, text, parent)
}
