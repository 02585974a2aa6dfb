package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// textProvider treats the pattern as literal text. Sources containing
// "FAIL" fail after reporting a match.
type textProvider struct{ lang string }

func (p textProvider) Language() string { return p.lang }

func (p textProvider) Query(source string, q FindQuery) QueryResult {
	var matches []Match
	for i, line := range strings.Split(source, "\n") {
		if col := strings.Index(line, q.Pattern); col >= 0 {
			matches = append(matches, Match{
				Shape:    "expression",
				Location: Location{Line: i + 1, Column: col},
				Content:  q.Pattern,
			})
		}
	}
	return QueryResult{Matches: matches, Total: len(matches)}
}

func (p textProvider) Transform(source string, op TransformOp) TransformResult {
	n := strings.Count(source, op.Pattern)
	if n == 0 {
		return TransformResult{Modified: source, Error: errors.New("no matches found")}
	}
	modified := strings.ReplaceAll(source, op.Pattern, op.Replacement)
	if strings.Contains(source, "FAIL") {
		return TransformResult{Modified: modified, MatchCount: n, Error: errors.New("replacement does not fit")}
	}
	return TransformResult{Modified: modified, MatchCount: n, Diff: "--- a\n+++ b\n"}
}

type textRegistry map[string]Provider

func (r textRegistry) Get(lang string) (Provider, bool) {
	p, ok := r[lang]
	return p, ok
}

func newTestProcessor(t *testing.T, opts ...ProcessorOption) *FileProcessor {
	t.Helper()
	reg := textRegistry{"javascript": textProvider{"javascript"}}
	opts = append([]ProcessorOption{WithTransactionDir(filepath.Join(t.TempDir(), "tx")), WithWorkers(2)}, opts...)
	fp := NewFileProcessor(reg, opts...)
	t.Cleanup(fp.Cleanup)
	return fp
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(content)
}

func TestFileProcessor_QueryFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"b.js":      "x\nfoo()\n",
		"a.js":      "foo()\nbar()\nfoo()\n",
		"c.ts":      "foo()\n",
		"none.js":   "bar()\n",
		"notes.txt": "foo()\n",
	})

	matches, err := newTestProcessor(t).QueryFiles(context.Background(), FileScope{Path: root}, FindQuery{Pattern: "foo()"})
	if err != nil {
		t.Fatalf("QueryFiles failed: %v", err)
	}

	type hit struct {
		file string
		line int
	}
	want := []hit{{"a.js", 1}, {"a.js", 3}, {"b.js", 2}}
	if len(matches) != len(want) {
		t.Fatalf("got %d matches, want %d: %+v", len(matches), len(want), matches)
	}
	for i, m := range matches {
		if filepath.Base(m.FilePath) != want[i].file || m.Location.Line != want[i].line {
			t.Errorf("match %d = %s:%d, want %s:%d", i, m.FilePath, m.Location.Line, want[i].file, want[i].line)
		}
		if m.Location.File != m.FilePath || m.Language != "javascript" {
			t.Errorf("match %d missing file details: %+v", i, m)
		}
	}
}

func TestFileProcessor_TransformFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.js":    "foo(1);\nfoo(2);\n",
		"b.js":    "foo(3);\n",
		"none.js": "bar();\n",
	})
	fp := newTestProcessor(t)

	result, err := fp.TransformFiles(context.Background(), FileTransformOp{
		TransformOp: TransformOp{Pattern: "foo", Replacement: "bar"},
		Scope:       FileScope{Path: root},
	})
	if err != nil {
		t.Fatalf("TransformFiles failed: %v", err)
	}

	if result.FilesScanned != 3 || result.FilesModified != 2 || result.TotalMatches != 3 {
		t.Errorf("unexpected totals: %+v", result)
	}
	if result.TransactionID == "" {
		t.Error("safe transform should report its transaction")
	}
	for _, d := range result.Files {
		if d.Error != "" {
			t.Errorf("%s: %s", d.FilePath, d.Error)
		}
	}
	if got := readFile(t, filepath.Join(root, "a.js")); got != "bar(1);\nbar(2);\n" {
		t.Errorf("a.js = %q", got)
	}
	if got := readFile(t, filepath.Join(root, "none.js")); got != "bar();\n" {
		t.Errorf("none.js = %q", got)
	}

	tx, err := fp.txManager.LoadTransaction(result.TransactionID)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != TxCommitted || len(tx.Operations) != 2 {
		t.Errorf("transaction = %s with %d operations", tx.Status, len(tx.Operations))
	}
}

func TestFileProcessor_DryRun(t *testing.T) {
	root := writeTree(t, map[string]string{"a.js": "foo();\n"})

	result, err := newTestProcessor(t).TransformFiles(context.Background(), FileTransformOp{
		TransformOp: TransformOp{Pattern: "foo", Replacement: "bar"},
		Scope:       FileScope{Path: root},
		DryRun:      true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.FilesModified != 1 || result.TransactionID != "" {
		t.Errorf("unexpected result: %+v", result)
	}
	d := result.Files[0]
	if d.Original != "foo();\n" || d.Result != "bar();\n" || d.Diff == "" {
		t.Errorf("detail = %+v", d)
	}
	if got := readFile(t, filepath.Join(root, "a.js")); got != "foo();\n" {
		t.Errorf("dry run wrote the file: %q", got)
	}
}

func TestFileProcessor_RollbackOnFailure(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.js": "foo(1);\n",
		"b.js": "foo(2);\n",
		"c.js": "foo(FAIL);\n",
	})

	result, err := newTestProcessor(t).TransformFiles(context.Background(), FileTransformOp{
		TransformOp: TransformOp{Pattern: "foo", Replacement: "bar"},
		Scope:       FileScope{Path: root},
	})
	if err != nil {
		t.Fatal(err)
	}

	var failed int
	for _, d := range result.Files {
		if d.Error != "" {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("failed files = %d, want 1", failed)
	}
	for name, want := range map[string]string{"a.js": "foo(1);\n", "b.js": "foo(2);\n", "c.js": "foo(FAIL);\n"} {
		if got := readFile(t, filepath.Join(root, name)); got != want {
			t.Errorf("%s = %q after rollback, want %q", name, got, want)
		}
	}
}

func TestFileProcessor_BackupWithoutSafety(t *testing.T) {
	root := writeTree(t, map[string]string{"a.js": "foo();\n"})
	reg := textRegistry{"javascript": textProvider{"javascript"}}
	fp := NewFileProcessorWithSafety(reg, false, AtomicWriteConfig{LockTimeout: time.Second})

	result, err := fp.TransformFiles(context.Background(), FileTransformOp{
		TransformOp: TransformOp{Pattern: "foo", Replacement: "bar"},
		Scope:       FileScope{Path: root},
		Backup:      true,
	})
	if err != nil {
		t.Fatal(err)
	}
	backup := result.Files[0].BackupPath
	if backup != filepath.Join(root, "a.js.bak") {
		t.Fatalf("backup path = %q", backup)
	}
	if got := readFile(t, backup); got != "foo();\n" {
		t.Errorf("backup = %q", got)
	}
	if got := readFile(t, filepath.Join(root, "a.js")); got != "bar();\n" {
		t.Errorf("a.js = %q", got)
	}
}

func TestFileProcessor_ValidateChanges(t *testing.T) {
	fp := newTestProcessor(t)
	if err := fp.ValidateChanges([]FileTransformDetail{{FilePath: "a.js"}}); err != nil {
		t.Errorf("clean details: %v", err)
	}
	err := fp.ValidateChanges([]FileTransformDetail{{FilePath: "a.js"}, {FilePath: "b.js", Error: "boom"}})
	if err == nil || !strings.Contains(err.Error(), "b.js") {
		t.Errorf("error = %v", err)
	}
}

func TestFileProcessor_GenerateChecksum(t *testing.T) {
	root := writeTree(t, map[string]string{"a.js": "foo();\n"})
	sum, err := newTestProcessor(t).GenerateChecksum(filepath.Join(root, "a.js"))
	if err != nil {
		t.Fatal(err)
	}
	if sum != Digest("foo();\n") {
		t.Errorf("checksum = %s", sum)
	}
}

func TestFileProcessor_SafetyToggle(t *testing.T) {
	fp := newTestProcessor(t)
	if !fp.IsSafetyEnabled() {
		t.Error("safety should default to on")
	}
	fp.EnableSafety(false)
	if fp.IsSafetyEnabled() {
		t.Error("EnableSafety(false) had no effect")
	}
}
