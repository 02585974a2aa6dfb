package match

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/termfx/astmorph/ast"
)

var (
	// ErrEmptyPattern is returned for a pattern without statements.
	ErrEmptyPattern = errors.New("empty pattern")
	// ErrArrayCaptureOutsideList is returned when an array capture is used
	// where a single node is expected.
	ErrArrayCaptureOutsideList = errors.New("array capture outside a list")
	// ErrDuplicateArrayCapture is returned when one array capture name is
	// used twice.
	ErrDuplicateArrayCapture = errors.New("array capture used more than once")
	// ErrNoAnchor is returned for a sequence pattern made only of array
	// captures.
	ErrNoAnchor = errors.New("sequence pattern has no anchor")
	// ErrMixedCapture is returned when one name captures both a node and
	// the text of a literal.
	ErrMixedCapture = errors.New("capture used both as a node and as text")
)

// CompileError reports where compilation failed.
type CompileError struct {
	Kind    string
	Capture string
	Err     error
}

func (e *CompileError) Error() string {
	if e.Capture != "" {
		return fmt.Sprintf("compile %s: %s: %v", e.Kind, e.Capture, e.Err)
	}
	return fmt.Sprintf("compile %s: %v", e.Kind, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger traces compilation and matching at debug level.
func WithLogger(log *slog.Logger) Option {
	return func(c *Compiler) {
		if log != nil {
			c.log = log
		}
	}
}

// Compiler turns pattern trees into matchers for one grammar.
type Compiler struct {
	grammar  ast.Grammar
	registry *Registry
	log      *slog.Logger
}

// NewCompiler returns a compiler for a grammar.
func NewCompiler(g ast.Grammar, opts ...Option) *Compiler {
	c := &Compiler{
		grammar:  g,
		registry: NewRegistry(g.EquivalenceClasses()),
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Grammar returns the compiler's grammar.
func (c *Compiler) Grammar() ast.Grammar { return c.grammar }

// Registry returns the equivalence registry.
func (c *Compiler) Registry() *Registry { return c.registry }

type bindKind int

const (
	boundNode bindKind = iota + 1
	boundText
	boundList
)

// compilation holds per-pattern state. The first occurrence of a name in
// compile order binds, later ones become constraints.
type compilation struct {
	*Compiler
	bound map[string]bindKind
	depth int
}

func (c *Compiler) begin() *compilation {
	return &compilation{Compiler: c, bound: make(map[string]bindKind)}
}

// Compile compiles a single pattern node.
func (c *Compiler) Compile(n *ast.Node) (Matcher, error) {
	return c.begin().node(n)
}

// Generic compiles a pattern node with the generic algorithm, replacing the
// matchers of the named fields.
func (c *Compiler) Generic(n *ast.Node, overrides map[string]FieldMatcher) (Matcher, error) {
	return c.begin().generic(n, overrides)
}

func (s *compilation) node(n *ast.Node) (Matcher, error) {
	name, kind := CaptureName(s.grammar, n)
	if kind == ArrayCapture {
		return nil, &CompileError{Kind: n.Kind, Capture: name, Err: ErrArrayCaptureOutsideList}
	}
	if kind == NodeCapture {
		// An expression statement wrapping a placeholder stands for the
		// whole statement.
		return s.capture(n, name)
	}

	if s.grammar.IsLiteral(n.Kind) {
		if text, ok := s.grammar.LiteralValue(n); ok {
			if ParseCapture(text) != NotCapture {
				return s.literalCapture(n, text)
			}
		}
	}
	return s.generic(n, nil)
}

func (s *compilation) capture(n *ast.Node, name string) (Matcher, error) {
	if k, seen := s.bound[name]; seen {
		if k != boundNode {
			return nil, &CompileError{Kind: n.Kind, Capture: name, Err: ErrMixedCapture}
		}
		trace(s.log, s.depth, "constraint", "capture", name)
		return &backrefMatcher{name: name}, nil
	}
	s.bound[name] = boundNode
	trace(s.log, s.depth, "capture", "capture", name)
	return &captureMatcher{name: name}, nil
}

func (s *compilation) literalCapture(n *ast.Node, name string) (Matcher, error) {
	desc, ok := s.grammar.Describe(n.Kind)
	if !ok {
		return &exactMatcher{node: n}, nil
	}
	if k, seen := s.bound[name]; seen && k != boundText {
		return nil, &CompileError{Kind: n.Kind, Capture: name, Err: ErrMixedCapture}
	}
	s.bound[name] = boundText

	overrides := make(map[string]FieldMatcher, len(desc.Fields))
	first := true
	for _, fd := range desc.Fields {
		if fd.Kind == ast.ScalarValue {
			continue
		}
		if first {
			overrides[fd.Name] = &textCapture{name: name, grammar: s.grammar}
			first = false
			continue
		}
		overrides[fd.Name] = anyField{}
	}
	return s.generic(n, overrides)
}

func (s *compilation) generic(n *ast.Node, overrides map[string]FieldMatcher) (Matcher, error) {
	desc, ok := s.grammar.Describe(n.Kind)
	if !ok {
		trace(s.log, s.depth, "exact", "kind", n.Kind)
		return &exactMatcher{node: n}, nil
	}

	m := &nodeMatcher{kind: n.Kind, registry: s.registry, log: s.log, depth: s.depth}
	s.depth++
	defer func() { s.depth-- }()

	for _, fd := range desc.Fields {
		v, _ := n.Get(fd.Name)
		check := fieldCheck{
			name: fd.Name,
			base: s.registry.BaseField(n.Kind, fd.Name) || !v.Empty(),
		}
		if o, ok := overrides[fd.Name]; ok {
			check.m = o
			m.fields = append(m.fields, check)
			continue
		}
		fm, err := s.field(n, fd, v)
		if err != nil {
			return nil, err
		}
		check.m = fm
		m.fields = append(m.fields, check)
	}

	for _, f := range n.Fields() {
		if desc.Field(f.Name) != nil {
			continue
		}
		if f.Name == ast.TextField && f.Value.Kind == ast.ScalarValue {
			fm, _ := s.field(n, ast.FieldDesc{Name: f.Name, Kind: ast.ScalarValue}, f.Value)
			m.fields = append(m.fields, fieldCheck{name: f.Name, m: fm, base: true})
			continue
		}
		m.fields = append(m.fields, fieldCheck{
			name: f.Name,
			m:    &valueField{name: f.Name, value: f.Value},
			base: !f.Value.Empty(),
		})
	}
	return m, nil
}

func (s *compilation) field(n *ast.Node, fd ast.FieldDesc, v ast.Value) (FieldMatcher, error) {
	switch fd.Kind {
	case ast.ScalarValue:
		text := v.Scalar
		if fd.Name == ast.TextField && s.grammar.IsIdentifier(n.Kind) {
			text, _ = Unescape(text)
		}
		return &scalarField{name: fd.Name, value: text}, nil
	case ast.NodeValue:
		if v.Node == nil {
			return &nodeField{name: fd.Name}, nil
		}
		inner, err := s.node(v.Node)
		if err != nil {
			return nil, err
		}
		return &nodeField{name: fd.Name, m: inner}, nil
	default:
		lp, err := s.list(v.List)
		if err != nil {
			return nil, err
		}
		return &listField{name: fd.Name, list: lp}, nil
	}
}

func (s *compilation) list(elems []*ast.Node) (*listPattern, error) {
	lp := &listPattern{lastGap: -1}
	gap, pending := "", false
	for _, e := range elems {
		if name, kind := CaptureName(s.grammar, e); kind == ArrayCapture {
			if _, seen := s.bound[name]; seen {
				return nil, &CompileError{Kind: e.Kind, Capture: name, Err: ErrDuplicateArrayCapture}
			}
			s.bound[name] = boundList
			if pending {
				lp.empties = append(lp.empties, gap)
			}
			gap, pending = name, true
			continue
		}
		m, err := s.node(e)
		if err != nil {
			return nil, err
		}
		if pending {
			lp.lastGap = len(lp.steps)
		}
		lp.steps = append(lp.steps, listStep{m: m, gap: gap, hasGap: pending})
		gap, pending = "", false
	}
	if pending {
		lp.trail, lp.hasTrail = gap, true
	}
	return lp, nil
}
