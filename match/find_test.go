package match_test

import (
	"testing"

	"github.com/termfx/astmorph/ast"
	"github.com/termfx/astmorph/match"
	"github.com/termfx/astmorph/providers/base"
	"github.com/termfx/astmorph/providers/javascript"
)

func find(t *testing.T, js *base.Provider, source, pattern string, where map[string]match.Predicate) []*match.Match {
	t.Helper()
	root, err := js.Parse(source)
	if err != nil {
		t.Fatalf("parse %q: %v", source, err)
	}
	p, err := js.CompilePattern(pattern)
	if err != nil {
		t.Fatalf("compile %q: %v", pattern, err)
	}
	return match.Find(root, p, match.FindOptions{Where: where})
}

func captured(t *testing.T, js *base.Provider, m *match.Match, name string) string {
	t.Helper()
	p, ok := m.Env.Node(name)
	if !ok {
		t.Fatalf("%s is not bound to a node", name)
	}
	return js.Print(p.Node())
}

func TestFind_DocumentOrder(t *testing.T) {
	js := javascript.New()
	matches := find(t, js, "foo(foo(1));\nfoo(2);\n", "foo($a)", nil)

	want := []string{"foo(1)", "1", "2"}
	if len(matches) != len(want) {
		t.Fatalf("got %d matches, want %d", len(matches), len(want))
	}
	for i, m := range matches {
		if got := captured(t, js, m, "$a"); got != want[i] {
			t.Errorf("match %d: $a = %q, want %q", i, got, want[i])
		}
	}
}

func TestFind_SkipsProgramRoot(t *testing.T) {
	js := javascript.New()
	matches := find(t, js, "a;\n", "$x", nil)
	if len(matches) == 0 {
		t.Fatal("a bare capture should match inside the program")
	}
	for _, m := range matches {
		if m.Path.Parent() == nil {
			t.Errorf("matched the program root")
		}
	}
}

func TestFind_Where(t *testing.T) {
	js := javascript.New()
	isTwo := func(p *ast.Path) bool { return js.Print(p.Node()) == "2" }

	matches := find(t, js, "foo(1);\nfoo(2);\nfoo(2, 3);\n", "foo($a)", map[string]match.Predicate{"$a": isTwo})
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if got := captured(t, js, matches[0], "$a"); got != "2" {
		t.Errorf("$a = %q", got)
	}
}

func TestFind_ArrayCaptureInArguments(t *testing.T) {
	js := javascript.New()
	matches := find(t, js, "f(1, 2, 3);\nf(3, 4);\nf(3);\n", "f($_a, 3)", nil)
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}

	first, _ := matches[0].Env.List("$_a")
	if len(first) != 2 || js.Print(first[0].Node()) != "1" || js.Print(first[1].Node()) != "2" {
		t.Errorf("first $_a = %d elements", len(first))
	}
	second, ok := matches[1].Env.List("$_a")
	if !ok || len(second) != 0 {
		t.Errorf("second $_a should be bound and empty, got %d elements", len(second))
	}
}

func TestFind_TrailingGapTakesRest(t *testing.T) {
	js := javascript.New()
	matches := find(t, js, "a();\nb();\nc();\n", "a(); $_rest;", nil)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	m := matches[0]
	if len(m.Span) != 3 {
		t.Errorf("span has %d statements, want 3", len(m.Span))
	}
	rest, _ := m.Env.List("$_rest")
	if len(rest) != 2 {
		t.Errorf("$_rest has %d statements, want 2", len(rest))
	}
}

func TestFind_LeadingGapFindsEveryAlignment(t *testing.T) {
	js := javascript.New()
	matches := find(t, js, "x();\nfoo(1);\ny();\nfoo(2);\n", "$_a; foo($b);", nil)
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}

	for i, want := range []struct{ gap, b string }{{"x();", "1"}, {"y();", "2"}} {
		m := matches[i]
		gap, _ := m.Env.List("$_a")
		if len(gap) != 1 || js.Print(gap[0].Node()) != want.gap {
			t.Errorf("match %d: $_a has %d statements, want [%s]", i, len(gap), want.gap)
		}
		if got := captured(t, js, m, "$b"); got != want.b {
			t.Errorf("match %d: $b = %q, want %q", i, got, want.b)
		}
		if len(m.Span) != 2 {
			t.Errorf("match %d spans %d statements, want 2", i, len(m.Span))
		}
	}
	if matches[0].Span[1].Index() >= matches[1].Span[0].Index() {
		t.Error("leading gap matches overlap")
	}
}

func TestFind_LeadingGapRetriesLaterOffsets(t *testing.T) {
	js := javascript.New()
	// at offset 0 the gap stops at foo(1), which bar(2) does not follow
	matches := find(t, js, "foo(1);\nfoo(2);\nbar(2);\n", "$_a; foo($b); bar($b);", nil)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if got := captured(t, js, matches[0], "$b"); got != "2" {
		t.Errorf("$b = %q", got)
	}
	if first := matches[0].Span[0].Index(); first != 1 {
		t.Errorf("match starts at %d, want 1", first)
	}
}

func TestFind_BackreferenceAcrossSequence(t *testing.T) {
	js := javascript.New()
	source := "open(a);\nuse(a);\nopen(b);\nuse(c);\n"
	matches := find(t, js, source, "open($x); use($x);", nil)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if got := captured(t, js, matches[0], "$x"); got != "a" {
		t.Errorf("$x = %q", got)
	}
}

func TestFindAt_Subtree(t *testing.T) {
	js := javascript.New()
	root, err := js.Parse("foo(1);\nfunction f() {\n  foo(2);\n}\n")
	if err != nil {
		t.Fatal(err)
	}
	fn, err := js.CompilePattern("function f() { $_body; }")
	if err != nil {
		t.Fatal(err)
	}
	call, err := js.CompilePattern("foo($a)")
	if err != nil {
		t.Fatal(err)
	}

	fns := match.Find(root, fn, match.FindOptions{})
	if len(fns) != 1 {
		t.Fatalf("got %d functions, want 1", len(fns))
	}
	inner := match.FindAt(fns[0].Path, call, match.FindOptions{})
	if len(inner) != 1 {
		t.Fatalf("got %d calls inside f, want 1", len(inner))
	}
	if got := captured(t, js, inner[0], "$a"); got != "2" {
		t.Errorf("$a = %q", got)
	}
	if all := match.Find(root, call, match.FindOptions{}); len(all) != 2 {
		t.Errorf("got %d calls in the file, want 2", len(all))
	}
}

func TestPattern_MatchNodeAndSpan(t *testing.T) {
	js := javascript.New()
	root, err := js.Parse("x();\nfoo(1);\nbar(1);\n")
	if err != nil {
		t.Fatal(err)
	}
	seq, err := js.CompilePattern("foo($a); bar($a);")
	if err != nil {
		t.Fatal(err)
	}
	matches := match.Find(root, seq, match.FindOptions{})
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}

	first := matches[0].Span[0]
	span, env := seq.MatchSpan(first)
	if env == nil || len(span) != 2 {
		t.Fatalf("MatchSpan at the match start = %d statements", len(span))
	}
	if first.Index() != 1 {
		t.Errorf("span starts at %d, want 1", first.Index())
	}
	prev := first.Parent().Elem(first.Field(), 0)
	if span, env := seq.MatchSpan(prev); span != nil || env != nil {
		t.Error("MatchSpan before the match should fail")
	}
}
