package base_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/termfx/astmorph/core"
	"github.com/termfx/astmorph/providers/base"
	"github.com/termfx/astmorph/providers/javascript"
)

func TestCompileCache_HitsAndMisses(t *testing.T) {
	cache := base.NewCompileCache(time.Minute)
	t.Cleanup(cache.Close)
	calls := 0
	compile := func() (any, error) {
		calls++
		return "compiled", nil
	}

	v, hit, err := cache.GetOrCompile("k", compile)
	if err != nil || hit || v != "compiled" {
		t.Fatalf("first call = %v, %v, %v", v, hit, err)
	}
	v, hit, err = cache.GetOrCompile("k", compile)
	if err != nil || !hit || v != "compiled" {
		t.Fatalf("second call = %v, %v, %v", v, hit, err)
	}
	if calls != 1 {
		t.Errorf("compile ran %d times", calls)
	}

	stats := cache.Stats()
	if stats["hits"] != 1 || stats["misses"] != 1 {
		t.Errorf("stats = %v", stats)
	}
}

func TestCompileCache_ErrorsAreNotCached(t *testing.T) {
	cache := base.NewCompileCache(time.Minute)
	t.Cleanup(cache.Close)
	boom := errors.New("boom")

	if _, _, err := cache.GetOrCompile("k", func() (any, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("error = %v", err)
	}
	v, hit, err := cache.GetOrCompile("k", func() (any, error) { return 1, nil })
	if err != nil || hit || v != 1 {
		t.Errorf("retry = %v, %v, %v", v, hit, err)
	}
}

func TestCompileCache_Expiry(t *testing.T) {
	cache := base.NewCompileCache(10 * time.Millisecond)
	t.Cleanup(cache.Close)
	compile := func() (any, error) { return 1, nil }

	cache.GetOrCompile("k", compile)
	time.Sleep(20 * time.Millisecond)
	if _, hit, _ := cache.GetOrCompile("k", compile); hit {
		t.Error("expired entry served as a hit")
	}
	if cache.Stats()["evictions"] < 1 {
		t.Errorf("stats = %v", cache.Stats())
	}
}

func TestProvider_CachesCompiledPatterns(t *testing.T) {
	cache := base.NewCompileCache(time.Minute)
	t.Cleanup(cache.Close)
	p := javascript.New(base.WithCache(cache))

	first, err := p.CompilePattern("foo($a)")
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.CompilePattern("foo($a)")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("second compilation did not reuse the cached pattern")
	}
	if _, err := p.CompileTemplate("bar($a)"); err != nil {
		t.Fatal(err)
	}
	if stats := cache.Stats(); stats["hits"] != 1 || stats["misses"] != 2 {
		t.Errorf("stats = %v", stats)
	}
}

func TestProvider_ParserPoolStats(t *testing.T) {
	cache := base.NewCompileCache(time.Minute)
	t.Cleanup(cache.Close)
	p := javascript.New(base.WithCache(cache))
	for range 3 {
		if _, err := p.Parse("let x = 1;"); err != nil {
			t.Fatal(err)
		}
	}
	p.Validate("let y = 2;")

	stats := p.Stats()
	if stats.BorrowCount < 4 || stats.ReturnCount != stats.BorrowCount || stats.Active != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestProvider_ValidateReportsPosition(t *testing.T) {
	p := javascript.New()

	result := p.Validate("let ok = 1;\nlet = ;\n")
	if result.Valid || len(result.Errors) == 0 {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(result.Errors[0], "line 2") {
		t.Errorf("error = %q, want line 2", result.Errors[0])
	}

	if _, err := p.Parse("let = ;"); !errors.Is(err, base.ErrSyntax) {
		t.Errorf("Parse error = %v, want ErrSyntax", err)
	}
}

func TestProvider_QueryLocations(t *testing.T) {
	p := javascript.New()
	source := "a;\n  foo(1, 2);\n"

	result := p.Query(source, core.FindQuery{Pattern: "foo($a, $_rest)"})
	if result.Error != nil {
		t.Fatal(result.Error)
	}
	if result.Total != 1 {
		t.Fatalf("total = %d", result.Total)
	}
	m := result.Matches[0]
	want := core.Location{Line: 2, Column: 3, EndLine: 2, EndColumn: 12}
	if m.Location != want {
		t.Errorf("location = %+v, want %+v", m.Location, want)
	}
	if m.Content != "foo(1, 2)" || m.Kind != "call_expression" || m.Shape != "expression" {
		t.Errorf("match = %+v", m)
	}
	if m.Captures["$a"] != "1" || len(m.Lists["$_rest"]) != 1 || m.Lists["$_rest"][0] != "2" {
		t.Errorf("captures = %v, lists = %v", m.Captures, m.Lists)
	}
}

func TestProvider_Predicates(t *testing.T) {
	p := javascript.New()

	if _, err := p.Predicates(map[string]string{"$a": "("}); err == nil {
		t.Error("invalid regexp accepted")
	}

	result := p.Query("f(1); f(x);", core.FindQuery{Pattern: "f($a)", Where: map[string]string{"a": "^[a-z]+$"}})
	if result.Error != nil {
		t.Fatal(result.Error)
	}
	if result.Total != 1 || result.Matches[0].Captures["$a"] != "x" {
		t.Errorf("matches = %+v", result.Matches)
	}
}

func TestProvider_PredicatesOnTextCaptures(t *testing.T) {
	p := javascript.New()
	source := "require('lodash');\nrequire('left-pad');\n"

	result := p.Query(source, core.FindQuery{Pattern: "require('$mod')", Where: map[string]string{"$mod": "^lodash$"}})
	if result.Error != nil {
		t.Fatal(result.Error)
	}
	if result.Total != 1 || result.Matches[0].Captures["$mod"] != "lodash" {
		t.Errorf("matches = %+v", result.Matches)
	}

	result = p.Query(source, core.FindQuery{Pattern: "require('$mod')", Where: map[string]string{"$mod": "^react$"}})
	if result.Error != nil {
		t.Fatal(result.Error)
	}
	if result.Total != 0 {
		t.Errorf("a rejecting filter on a text capture kept %d matches", result.Total)
	}
}

func TestProvider_TransformWithoutMatches(t *testing.T) {
	p := javascript.New()
	source := "keep();\n"

	result := p.Transform(source, core.TransformOp{Pattern: "gone($a)", Replacement: "x"})
	if result.Error == nil {
		t.Fatal("expected an error for a pattern without matches")
	}
	if result.Modified != source || result.MatchCount != 0 || result.Diff != "" {
		t.Errorf("result = %+v", result)
	}
}
