package base

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/termfx/astmorph/ast"
	"github.com/termfx/astmorph/core"
	"github.com/termfx/astmorph/match"
	"github.com/termfx/astmorph/providers"
	"github.com/termfx/astmorph/replace"
)

// ErrSyntax is returned when a source does not parse cleanly.
var ErrSyntax = errors.New("syntax error")

// LanguageConfig defines language-specific behavior that must be implemented
type LanguageConfig interface {
	// Metadata
	Language() string
	Extensions() []string
	GetLanguage() *sitter.Language

	// Tree shape
	Kinds() []ast.KindDesc
	EquivalenceClasses() []ast.EquivalenceClass
	FormPairs() []ast.FormPair
	Syntax() Syntax
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger used for compile and replace tracing.
func WithLogger(log *slog.Logger) Option {
	return func(p *Provider) {
		if log != nil {
			p.log = log
		}
	}
}

// WithCache replaces the shared compile cache.
func WithCache(c *CompileCache) Option {
	return func(p *Provider) {
		if c != nil {
			p.cache = c
		}
	}
}

// Provider provides common functionality for all language providers
type Provider struct {
	config   LanguageConfig
	grammar  *Grammar
	pool     *parserPool
	compiler *match.Compiler
	cache    *CompileCache
	log      *slog.Logger
}

// New creates a base provider with language-specific config
func New(config LanguageConfig, opts ...Option) *Provider {
	lang := config.GetLanguage()
	if lang == nil {
		panic(fmt.Sprintf("Failed to load %s language for tree-sitter", config.Language()))
	}

	p := &Provider{
		config: config,
		pool:   newParserPool(lang),
		cache:  GlobalCache,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.grammar = NewGrammar(config)
	p.compiler = match.NewCompiler(p.grammar, match.WithLogger(p.log))
	return p
}

// Language returns language identifier
func (p *Provider) Language() string {
	return p.config.Language()
}

// Extensions returns supported file extensions
func (p *Provider) Extensions() []string {
	return p.config.Extensions()
}

// Grammar returns the tree grammar of the language.
func (p *Provider) Grammar() *Grammar {
	return p.grammar
}

// Stats reports parser pool usage.
func (p *Provider) Stats() providers.Stats {
	return p.pool.stats()
}

// Parse parses a whole source file into a tree.
func (p *Provider) Parse(source string) (*ast.Node, error) {
	return p.ParseContext(context.Background(), "", source)
}

// ParseContext parses source, naming it for diagnostics.
func (p *Provider) ParseContext(ctx context.Context, name, source string) (*ast.Node, error) {
	text := []byte(source)
	parser := p.pool.get()
	defer p.pool.put(parser)

	tree, err := parser.ParseCtx(ctx, nil, text)
	if err != nil || tree == nil {
		return nil, fmt.Errorf("failed to parse source: %v", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		var errs []string
		p.findErrors(root, &errs)
		if len(errs) == 0 {
			errs = append(errs, "unexpected input")
		}
		return nil, fmt.Errorf("%w: %s", ErrSyntax, errs[0])
	}

	c := &converter{grammar: p.grammar, src: &ast.Source{Name: name, Text: text}}
	return c.root(root), nil
}

// ParsePattern parses a pattern or replacement source into its top-level
// statements.
func (p *Provider) ParsePattern(source string) ([]*ast.Node, error) {
	root, err := p.ParseContext(context.Background(), "pattern", source)
	if err != nil {
		return nil, err
	}
	return root.ChildList(p.grammar.syntax.Program), nil
}

// Print renders a tree back to source text.
func (p *Provider) Print(n *ast.Node) string {
	return p.grammar.Print(n)
}

// CompilePattern compiles a pattern source, reusing earlier compilations.
func (p *Provider) CompilePattern(source string) (*match.Pattern, error) {
	v, hit, err := p.cache.GetOrCompile(p.cacheKey("pattern", source), func() (any, error) {
		stmts, err := p.ParsePattern(source)
		if err != nil {
			return nil, fmt.Errorf("parse pattern %q: %w", source, err)
		}
		return p.compiler.CompilePattern(source, stmts)
	})
	if err != nil {
		return nil, err
	}
	p.log.Debug("pattern compiled", "language", p.Language(), "cached", hit, "pattern", source)
	return v.(*match.Pattern), nil
}

// CompileTemplate compiles a replacement source, reusing earlier
// compilations.
func (p *Provider) CompileTemplate(source string) (*replace.Template, error) {
	v, _, err := p.cache.GetOrCompile(p.cacheKey("template", source), func() (any, error) {
		stmts, err := p.ParsePattern(source)
		if err != nil {
			return nil, fmt.Errorf("parse replacement %q: %w", source, err)
		}
		return replace.Compile(p.grammar, source, stmts)
	})
	if err != nil {
		return nil, err
	}
	return v.(*replace.Template), nil
}

func (p *Provider) cacheKey(what, source string) string {
	return p.Language() + "\x00" + what + "\x00" + source
}

// Find returns the matches of a pattern in a tree.
func (p *Provider) Find(root *ast.Node, pattern string, where map[string]match.Predicate) ([]*match.Match, error) {
	pat, err := p.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	return match.Find(root, pat, match.FindOptions{Where: where}), nil
}

// Replace rewrites every match of pattern in root with the replacement
// template and returns the number of rewritten matches.
func (p *Provider) Replace(root *ast.Node, pattern, replacement string, where map[string]match.Predicate) (int, error) {
	pat, err := p.CompilePattern(pattern)
	if err != nil {
		return 0, err
	}
	tmpl, err := p.CompileTemplate(replacement)
	if err != nil {
		return 0, err
	}
	return replace.Replace(root, pat, tmpl, replace.Options{Where: where, Logger: p.log})
}

// ReplaceFunc is Replace with a replacement source chosen per match.
func (p *Provider) ReplaceFunc(root *ast.Node, pattern string, gen func(m *match.Match) (string, error), where map[string]match.Predicate) (int, error) {
	pat, err := p.CompilePattern(pattern)
	if err != nil {
		return 0, err
	}
	r := replace.Func(func(m *match.Match) ([]*ast.Node, error) {
		source, err := gen(m)
		if err != nil {
			return nil, err
		}
		tmpl, err := p.CompileTemplate(source)
		if err != nil {
			return nil, err
		}
		return tmpl.Build(m.Env)
	})
	return replace.Replace(root, pat, r, replace.Options{Where: where, Logger: p.log})
}

// Rewrite parses source, replaces every match and prints the result.
func (p *Provider) Rewrite(source, pattern, replacement string, where map[string]match.Predicate) (string, int, error) {
	root, err := p.Parse(source)
	if err != nil {
		return "", 0, err
	}
	n, err := p.Replace(root, pattern, replacement, where)
	if err != nil {
		return "", 0, err
	}
	return p.Print(root), n, nil
}

// Predicates turns textual where clauses into predicates: each capture
// must print to text matching the regular expression. A literal also
// passes when its decoded value matches, so raw-text captures can be
// filtered by the text they bind.
func (p *Provider) Predicates(where map[string]string) (map[string]match.Predicate, error) {
	if len(where) == 0 {
		return nil, nil
	}
	out := make(map[string]match.Predicate, len(where))
	for name, expr := range where {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("where %s: %w", name, err)
		}
		if !strings.HasPrefix(name, "$") {
			name = "$" + name
		}
		out[name] = func(at *ast.Path) bool {
			n := at.Node()
			if re.MatchString(p.Print(n)) {
				return true
			}
			if !p.grammar.IsLiteral(n.Kind) {
				return false
			}
			value, ok := p.grammar.LiteralValue(n)
			return ok && re.MatchString(value)
		}
	}
	return out, nil
}

// Query finds code matching a structural pattern
func (p *Provider) Query(source string, query core.FindQuery) core.QueryResult {
	root, err := p.Parse(source)
	if err != nil {
		return core.QueryResult{Error: err}
	}
	where, err := p.Predicates(query.Where)
	if err != nil {
		return core.QueryResult{Error: err}
	}
	pat, err := p.CompilePattern(query.Pattern)
	if err != nil {
		return core.QueryResult{Error: err}
	}

	found := match.Find(root, pat, match.FindOptions{Where: where})
	matches := make([]core.Match, 0, len(found))
	for _, m := range found {
		matches = append(matches, p.describe(pat, m, source))
	}

	return core.QueryResult{
		Matches: matches,
		Total:   len(matches),
	}
}

// Transform applies a structural replacement
func (p *Provider) Transform(source string, op core.TransformOp) core.TransformResult {
	root, err := p.Parse(source)
	if err != nil {
		return core.TransformResult{Error: err}
	}
	where, err := p.Predicates(op.Where)
	if err != nil {
		return core.TransformResult{Error: err}
	}
	pat, err := p.CompilePattern(op.Pattern)
	if err != nil {
		return core.TransformResult{Error: err}
	}
	tmpl, err := p.CompileTemplate(op.Replacement)
	if err != nil {
		return core.TransformResult{Error: err}
	}

	found := match.Find(root, pat, match.FindOptions{Where: where})
	if len(found) == 0 {
		return core.TransformResult{
			Modified: source,
			Error:    fmt.Errorf("no matches found for pattern"),
		}
	}
	matches := make([]core.Match, 0, len(found))
	for _, m := range found {
		matches = append(matches, p.describe(pat, m, source))
	}

	count, err := replace.Apply(pat, found, tmpl, replace.Options{Where: where, Logger: p.log})
	if err != nil {
		return core.TransformResult{Error: err}
	}
	modified := p.Print(root)

	metadata := map[string]any{
		"language": p.Language(),
		"shape":    pat.Shape.String(),
		"skipped":  len(found) - count,
	}
	if check := p.Validate(modified); !check.Valid {
		metadata["syntax_errors"] = check.Errors
	}

	return core.TransformResult{
		Modified:   modified,
		Diff:       p.generateDiff(source, modified),
		MatchCount: count,
		Matches:    matches,
		Metadata:   metadata,
	}
}

// describe flattens a match for callers outside the tree API.
func (p *Provider) describe(pat *match.Pattern, m *match.Match, source string) core.Match {
	nodes := m.Nodes()
	first, last := nodes[0], nodes[len(nodes)-1]

	out := core.Match{
		Shape: pat.Shape.String(),
		Kind:  first.Kind,
	}
	if first.Span != nil && last.Span != nil {
		start, end := first.Span.Start, last.Span.End
		out.Location = location(source, start, end)
		out.Content = source[start:end]
	} else {
		var parts []string
		for _, n := range nodes {
			parts = append(parts, p.Print(n))
		}
		out.Content = strings.Join(parts, "\n")
	}

	for _, name := range m.Env.Names() {
		if at, ok := m.Env.Node(name); ok {
			if out.Captures == nil {
				out.Captures = make(map[string]string)
			}
			out.Captures[name] = p.Print(at.Node())
			continue
		}
		if text, ok := m.Env.Text(name); ok {
			if out.Captures == nil {
				out.Captures = make(map[string]string)
			}
			out.Captures[name] = text
			continue
		}
		if span, ok := m.Env.List(name); ok {
			if out.Lists == nil {
				out.Lists = make(map[string][]string)
			}
			items := make([]string, 0, len(span))
			for _, at := range span {
				items = append(items, p.Print(at.Node()))
			}
			out.Lists[name] = items
		}
	}
	return out
}

// location converts byte offsets to 1-based lines and byte columns.
func location(source string, start, end int) core.Location {
	line, col := position(source, start)
	endLine, endCol := position(source, end)
	return core.Location{Line: line, Column: col, EndLine: endLine, EndColumn: endCol}
}

func position(source string, offset int) (int, int) {
	before := source[:offset]
	line := strings.Count(before, "\n") + 1
	return line, offset - (strings.LastIndexByte(before, '\n') + 1) + 1
}

// Validate checks syntax
func (p *Provider) Validate(source string) providers.ValidationResult {
	parser := p.pool.get()
	defer p.pool.put(parser)

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(source))
	if err != nil || tree == nil {
		return providers.ValidationResult{
			Valid:  false,
			Errors: []string{"Failed to parse source"},
		}
	}
	defer tree.Close()

	var errors []string
	p.findErrors(tree.RootNode(), &errors)

	return providers.ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

// generateDiff creates a unified diff
func (p *Provider) generateDiff(original, modified string) string {
	if original == modified {
		return ""
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(modified),
		FromFile: "original",
		ToFile:   "modified",
		Context:  3,
	}

	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("--- original\n+++ modified\n@@ changes @@\n%d bytes -> %d bytes",
			len(original), len(modified))
	}

	return text
}

// findErrors looks for syntax errors in AST
func (p *Provider) findErrors(node *sitter.Node, errors *[]string) {
	switch {
	case node.Type() == "ERROR":
		*errors = append(*errors, fmt.Sprintf(
			"Syntax error at line %d, column %d",
			node.StartPoint().Row+1,
			node.StartPoint().Column+1,
		))
	case node.IsMissing():
		*errors = append(*errors, fmt.Sprintf(
			"Missing %s at line %d, column %d",
			node.Type(),
			node.StartPoint().Row+1,
			node.StartPoint().Column+1,
		))
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.findErrors(node.Child(i), errors)
	}
}
