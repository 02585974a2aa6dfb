package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termfx/astmorph/core"
	"github.com/termfx/astmorph/match"
	"github.com/termfx/astmorph/models"
)

// workspace is a project directory the commands run in.
type workspace struct {
	dir string
}

func newWorkspace(t *testing.T, files map[string]string) *workspace {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	return &workspace{dir: dir}
}

func (w *workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := newApp(&out)
	a.logOut = io.Discard
	cmd := newRootCommand(a)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--no-color", "--db", filepath.Join(w.dir, "stages.db")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (w *workspace) read(t *testing.T, name string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(w.dir, name))
	require.NoError(t, err)
	return string(content)
}

func TestFind(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"src/a.js":     "console.log(1);\nfoo(1, 2);\n",
		"src/b.ts":     "const n: number = foo(3, 4);\n",
		"src/notes.md": "foo(5, 6)\n",
	})

	out, err := w.run(t, "find", "foo($a, $b)", "src")
	require.NoError(t, err)
	assert.Contains(t, out, "a.js:2:1")
	assert.Contains(t, out, "b.ts:1:19")
	assert.Contains(t, out, "$a = 1")
	assert.Contains(t, out, "Found 2 matches in 2 files")
	assert.NotContains(t, out, "notes.md")
}

func TestFindJSON(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.js": "foo(1);\nfoo(22);\nbar(3);\n"})

	out, err := w.run(t, "--json", "find", "foo($a)", "--where", "$a=^\\d\\d$")
	require.NoError(t, err)

	var matches []core.FileMatch
	require.NoError(t, json.Unmarshal([]byte(out), &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, "22", matches[0].Captures["$a"])
	assert.Equal(t, 2, matches[0].Location.Line)
	assert.Equal(t, "javascript", matches[0].Language)
}

func TestFindExplain(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.js": "x;\n"})

	out, err := w.run(t, "find", "--explain", "--lang", "javascript", "foo($a, $_rest)")
	require.NoError(t, err)
	assert.Contains(t, out, "javascript: expression pattern")
	assert.Contains(t, out, "kinds:    call_expression")
	assert.Contains(t, out, "captures: $_rest, $a")
	assert.Contains(t, out, "no matches")
}

func TestFindRejectsBadInput(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.js": "foo(1);\n"})

	tests := []struct {
		name string
		args []string
	}{
		{"unparsable pattern", []string{"find", "foo("}},
		{"bad where clause", []string{"find", "foo($a)", "--where", "a"}},
		{"bad where regexp", []string{"find", "foo($a)", "--where", "$a=("}},
		{"unknown language", []string{"find", "foo($a)", "--lang", "cobol"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestReplaceRejectsBrokenReplacement(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"a.js": "foo(1);\n",
		"b.js": "foo(2);\n",
	})

	out, err := w.run(t, "replace", "foo($a)", "bar(")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse replacement")
	assert.NotContains(t, out, "✗")
	assert.Equal(t, "foo(1);\n", w.read(t, "a.js"))

	_, err = w.run(t, "replace", "foo($a)", "bar($_a.b)")
	assert.ErrorIs(t, err, match.ErrArrayCaptureOutsideList)
}

func TestReplace(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"a.js": "foo(1, 2);\nfoo(3, 4);\n",
		"b.js": "other();\n",
	})

	out, err := w.run(t, "replace", "foo($a, $b)", "foo($b, $a)")
	require.NoError(t, err)
	assert.Contains(t, out, "rewrote a.js 2 matches")
	assert.Contains(t, out, "Transaction tx_")
	assert.Equal(t, "foo(2, 1);\nfoo(4, 3);\n", w.read(t, "a.js"))
	assert.Equal(t, "other();\n", w.read(t, "b.js"))

	out, err = w.run(t, "transactions", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "no pending transactions")
}

func TestReplaceDryRun(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.js": "var x = 1;\n"})

	out, err := w.run(t, "replace", "var $x = $v;", "let $x = $v;", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "would rewrite a.js")
	assert.Contains(t, out, "+let x = 1;")
	assert.Contains(t, out, "(dry run)")
	assert.Equal(t, "var x = 1;\n", w.read(t, "a.js"))
}

func TestReplaceBackupUnsafe(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.js": "old(1);\n"})

	_, err := w.run(t, "replace", "old($a)", "fresh($a)", "--unsafe", "--backup")
	require.NoError(t, err)
	assert.Equal(t, "fresh(1);\n", w.read(t, "a.js"))
	assert.Equal(t, "old(1);\n", w.read(t, "a.js.bak"))
}

func TestStageAndApply(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"a.js": "old(1);\n",
		"b.js": "old(2);\n",
	})

	out, err := w.run(t, "--json", "replace", "old($a)", "fresh($a)", "--stage")
	require.NoError(t, err)
	var staged []models.Stage
	require.NoError(t, json.Unmarshal([]byte(out), &staged))
	require.Len(t, staged, 2)
	assert.Equal(t, "old(1);\n", w.read(t, "a.js"), "staging never writes")

	out, err = w.run(t, "stages", "list")
	require.NoError(t, err)
	assert.Contains(t, out, shortID(staged[0].ID))
	assert.Contains(t, out, "pending")

	out, err = w.run(t, "stages", "show", shortID(staged[0].ID))
	require.NoError(t, err)
	assert.Contains(t, out, "+fresh(")

	// b.js drifts, so only a.js applies
	require.NoError(t, os.WriteFile(filepath.Join(w.dir, "b.js"), []byte("edited();\n"), 0o644))
	out, err = w.run(t, "stages", "apply", "--session", staged[0].SessionID)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStale)
	assert.Contains(t, out, "Applied 1 stage")
	assert.Equal(t, "fresh(1);\n", w.read(t, "a.js"))
	assert.Equal(t, "edited();\n", w.read(t, "b.js"))

	out, err = w.run(t, "stages", "list")
	require.NoError(t, err)
	assert.Contains(t, strings.ToUpper(out), "TOTAL: 1")

	var pending models.Stage
	for _, s := range staged {
		if filepath.Base(s.FilePath) == "b.js" {
			pending = s
		}
	}
	_, err = w.run(t, "stages", "drop", pending.ID)
	require.NoError(t, err)

	out, err = w.run(t, "stages", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no stages")

	out, err = w.run(t, "stages", "cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "0 stages expired")
}

func TestStagesApplyNeedsTarget(t *testing.T) {
	w := newWorkspace(t, nil)
	_, err := w.run(t, "stages", "apply")
	assert.Error(t, err)
}

func TestLanguages(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"a.js":      "x;\n",
		"b.mjs":     "x;\n",
		"c.ts":      "x;\n",
		"readme.md": "x\n",
	})

	out, err := w.run(t, "languages", "--scan", ".")
	require.NoError(t, err)
	assert.Contains(t, out, "javascript")
	assert.Contains(t, out, "typescript")
	assert.Contains(t, out, ".ts")
	assert.Contains(t, out, "1 other files skipped")

	out, err = w.run(t, "--json", "languages")
	require.NoError(t, err)
	var rows []struct {
		Language string `json:"language"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "javascript", rows[0].Language)
}

func TestParseWhere(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]string
		wantErr bool
	}{
		{"none", nil, nil, false},
		{"with dollar", []string{"$a=^x$"}, map[string]string{"$a": "^x$"}, false},
		{"without dollar", []string{"a=^x$"}, map[string]string{"$a": "^x$"}, false},
		{"equals in regexp", []string{"$a=a=b"}, map[string]string{"$a": "a=b"}, false},
		{"list capture", []string{"$_rest=."}, map[string]string{"$_rest": "."}, false},
		{"missing separator", []string{"$a"}, nil, true},
		{"empty name", []string{"=x"}, nil, true},
		{"bad regexp", []string{"$a=["}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWhere(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 file", plural(1, "file", "files"))
	assert.Equal(t, "0 files", plural(0, "file", "files"))
	assert.Equal(t, "3 matches", plural(3, "match", "matches"))
}
