package match_test

import (
	"reflect"
	"testing"

	"github.com/termfx/astmorph/ast"
	"github.com/termfx/astmorph/match"
)

func leaf(kind, text string) *ast.Path {
	return ast.Root(ast.Leaf(kind, text))
}

func TestEnv_BindIsPersistent(t *testing.T) {
	base := match.NewEnv().BindNode("$a", leaf("number", "1"))
	next := base.BindText("$s", "hello")
	next = next.BindList("$_rest", []*ast.Path{leaf("number", "2")})

	if base.Len() != 1 || base.Has("$s") || base.Has("$_rest") {
		t.Errorf("binding changed the receiver: %v", base.Names())
	}
	if got, want := next.Names(), []string{"$_rest", "$a", "$s"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if s, ok := next.Text("$s"); !ok || s != "hello" {
		t.Errorf("Text($s) = %q, %v", s, ok)
	}
	if l, ok := next.List("$_rest"); !ok || len(l) != 1 {
		t.Errorf("List($_rest) = %v, %v", l, ok)
	}
	if _, ok := next.Node("$s"); ok {
		t.Error("a text binding should not read back as a node")
	}
}

func TestEnv_BindListCopiesSpan(t *testing.T) {
	span := []*ast.Path{leaf("number", "1"), leaf("number", "2")}
	env := match.NewEnv().BindList("$_a", span)
	span[0] = leaf("number", "9")

	got, _ := env.List("$_a")
	if got[0].Node().Text() != "1" {
		t.Errorf("bound span aliases the caller's slice: %q", got[0].Node().Text())
	}
}

func TestEnv_Merge(t *testing.T) {
	one := match.NewEnv().BindNode("$a", leaf("number", "1"))

	tests := []struct {
		name  string
		other *match.Env
		ok    bool
		names []string
	}{
		{
			name:  "disjoint",
			other: match.NewEnv().BindText("$s", "x"),
			ok:    true,
			names: []string{"$a", "$s"},
		},
		{
			name:  "structurally equal node",
			other: match.NewEnv().BindNode("$a", leaf("number", "1")),
			ok:    true,
			names: []string{"$a"},
		},
		{
			name:  "different node",
			other: match.NewEnv().BindNode("$a", leaf("number", "2")),
		},
		{
			name:  "node against text",
			other: match.NewEnv().BindText("$a", "1"),
		},
		{
			name:  "node against list",
			other: match.NewEnv().BindList("$a", nil),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, ok := one.Merge(tt.other)
			if ok != tt.ok {
				t.Fatalf("Merge ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				if merged != nil {
					t.Error("failed merge should return nil")
				}
				return
			}
			if got := merged.Names(); !reflect.DeepEqual(got, tt.names) {
				t.Errorf("Names() = %v, want %v", got, tt.names)
			}
		})
	}
}

func TestEnv_MergeArrayCaptureOnce(t *testing.T) {
	a := match.NewEnv().BindList("$_x", nil)
	b := match.NewEnv().BindList("$_x", nil)
	if _, ok := a.Merge(b); ok {
		t.Error("an array capture bound on both sides must not merge")
	}
	if merged, ok := a.Merge(match.NewEnv().BindList("$_y", nil)); !ok || merged.Len() != 2 {
		t.Errorf("distinct array captures should merge: %v", ok)
	}
}

func TestEnv_MergeKeepsTextLiteral(t *testing.T) {
	at := leaf("string", "'x'")
	merged, ok := match.NewEnv().Merge(match.NewEnv().BindTextAt("$s", "x", at))
	if !ok {
		t.Fatal("merge into an empty env failed")
	}
	if got, ok := merged.TextAt("$s"); !ok || got != at {
		t.Error("merge dropped the literal of a text binding")
	}
	if s, _ := merged.Text("$s"); s != "x" {
		t.Errorf("Text($s) = %q", s)
	}
}

func TestEnv_MergeTexts(t *testing.T) {
	a := match.NewEnv().BindText("$s", "x")
	if _, ok := a.Merge(match.NewEnv().BindText("$s", "x")); !ok {
		t.Error("equal texts should merge")
	}
	if _, ok := a.Merge(match.NewEnv().BindText("$s", "y")); ok {
		t.Error("different texts should not merge")
	}
}

func TestMatch_Accessors(t *testing.T) {
	p := leaf("identifier", "a")
	single := &match.Match{Path: p, Env: match.NewEnv()}
	if single.Location() != p || len(single.Paths()) != 1 || single.Nodes()[0] != p.Node() {
		t.Error("single match accessors should return its path")
	}

	span := []*ast.Path{leaf("number", "1"), leaf("number", "2")}
	seq := &match.Match{Span: span, Env: match.NewEnv()}
	if seq.Location() != span[0] || len(seq.Nodes()) != 2 {
		t.Error("span match accessors should return the span")
	}
}

func TestAccept(t *testing.T) {
	isOne := func(p *ast.Path) bool { return p.Node().Text() == "1" }
	env := match.NewEnv().
		BindNode("$a", leaf("number", "1")).
		BindList("$_rest", []*ast.Path{leaf("number", "1"), leaf("number", "2")}).
		BindTextAt("$s", "2", leaf("number", "2")).
		BindText("$t", "1")

	tests := []struct {
		name  string
		where map[string]match.Predicate
		want  bool
	}{
		{"no predicates", nil, true},
		{"node accepted", map[string]match.Predicate{"$a": isOne}, true},
		{"every list element checked", map[string]match.Predicate{"$_rest": isOne}, false},
		{"empty list", map[string]match.Predicate{"$_none": isOne}, true},
		{"text capture checked at its literal", map[string]match.Predicate{"$s": isOne}, false},
		{"text without a literal", map[string]match.Predicate{"$t": func(*ast.Path) bool { return false }}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := match.Accept(env, tt.where); got != tt.want {
				t.Errorf("Accept = %v, want %v", got, tt.want)
			}
		})
	}
}
