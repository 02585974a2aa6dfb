package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/termfx/astmorph/providers/catalog"
)

// skippedDirs are never descended into.
var skippedDirs = map[string]bool{
	".git":         true,
	".astmorph":    true,
	"node_modules": true,
}

// ErrLanguageMismatch marks a file outside the language a scope asks for.
var ErrLanguageMismatch = errors.New("file does not belong to the requested language")

// FileWalker discovers source files under a scope. Directory scanning is
// sequential and stat plus language detection run on a worker pool.
type FileWalker struct {
	workers    int
	bufferSize int
}

// NewFileWalker creates a new file walker
func NewFileWalker() *FileWalker {
	return &FileWalker{
		workers:    runtime.NumCPU() * 2,
		bufferSize: 1000,
	}
}

// WalkResult represents a discovered file
type WalkResult struct {
	Path     string
	Info     fs.FileInfo
	Language string
	Error    error
}

// Walk streams the files of scope. The channel is closed when scanning
// finishes or ctx is cancelled.
func (fw *FileWalker) Walk(ctx context.Context, scope FileScope) (<-chan WalkResult, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}

	results := make(chan WalkResult, fw.bufferSize)
	paths := make(chan string, fw.bufferSize)

	var wg sync.WaitGroup
	for range fw.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				select {
				case <-ctx.Done():
					return
				case results <- fw.processFile(path, scope):
				}
			}
		}()
	}

	go func() {
		defer close(paths)
		s := &scan{ctx: ctx, scope: scope, out: paths}
		if scope.FollowSymlinks {
			s.visited = map[string]bool{realPath(scope.Path): true}
		}
		s.dir(scope.Path, 0)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results, nil
}

// scan walks one scope depth first.
type scan struct {
	ctx     context.Context
	scope   FileScope
	out     chan<- string
	sent    int
	visited map[string]bool // nil unless symlinks are followed
}

func (s *scan) full() bool {
	return s.scope.MaxFiles > 0 && s.sent >= s.scope.MaxFiles
}

func (s *scan) dir(path string, depth int) {
	if s.full() || s.ctx.Err() != nil {
		return
	}
	if s.scope.MaxDepth > 0 && depth > s.scope.MaxDepth {
		return
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if s.ctx.Err() != nil {
			return
		}
		full := filepath.Join(path, entry.Name())
		if matchAny(s.scope.Path, full, s.scope.Exclude) {
			continue
		}

		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			if !s.scope.FollowSymlinks {
				continue
			}
			info, err := os.Stat(full)
			if err != nil {
				continue
			}
			isDir = info.IsDir()
		}

		if isDir {
			if skippedDirs[entry.Name()] || !s.enter(full) {
				continue
			}
			s.dir(full, depth+1)
			continue
		}

		if len(s.scope.Include) > 0 && !matchAny(s.scope.Path, full, s.scope.Include) {
			continue
		}
		if s.full() {
			return
		}
		select {
		case <-s.ctx.Done():
			return
		case s.out <- full:
			s.sent++
		}
	}
}

// enter records a directory and reports whether it was not seen before.
// Without symlink following a tree cannot loop so nothing is recorded.
func (s *scan) enter(path string) bool {
	if s.visited == nil {
		return true
	}
	resolved := realPath(path)
	if s.visited[resolved] {
		return false
	}
	s.visited[resolved] = true
	return true
}

func realPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil && resolved != "" {
		return resolved
	}
	return path
}

func (fw *FileWalker) processFile(path string, scope FileScope) WalkResult {
	info, err := os.Stat(path)
	if err != nil {
		return WalkResult{Path: path, Error: err}
	}
	result := WalkResult{Path: path, Info: info, Language: DetectLanguage(path)}
	if scope.Language != "" && !strings.EqualFold(result.Language, scope.Language) {
		result.Error = ErrLanguageMismatch
	}
	return result
}

// DetectLanguage maps a path to a language ID through the catalog, with
// built-in extensions for the bundled languages. Unknown files yield
// "unknown".
func DetectLanguage(path string) string {
	if info, ok := catalog.LookupByPath(path); ok {
		return info.ID
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".tsx", ".mts", ".cts":
		return "typescript"
	}
	return "unknown"
}

// matchAny reports whether path, or path relative to root, matches one of
// the doublestar patterns. Patterns without a slash are also tried against
// the base name.
func matchAny(root, path string, patterns []string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	for _, pattern := range patterns {
		if ok, _ := doublestar.PathMatch(pattern, path); ok {
			return true
		}
		if ok, _ := doublestar.PathMatch(pattern, rel); ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, _ := doublestar.PathMatch(pattern, filepath.Base(path)); ok {
				return true
			}
		}
	}
	return false
}

func validateScope(scope FileScope) error {
	if scope.Path == "" {
		return errors.New("path is required")
	}
	info, err := os.Stat(scope.Path)
	if err != nil {
		return fmt.Errorf("cannot access path %s: %w", scope.Path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path %s is not a directory", scope.Path)
	}
	return nil
}

// Files returns the sorted paths of scope, skipping files that failed.
func (fw *FileWalker) Files(ctx context.Context, scope FileScope) ([]string, error) {
	results, err := fw.Walk(ctx, scope)
	if err != nil {
		return nil, err
	}
	var files []string
	for r := range results {
		if r.Error == nil {
			files = append(files, r.Path)
		}
	}
	sort.Strings(files)
	return files, ctx.Err()
}

// LanguageStats counts the files of scope per detected language.
func (fw *FileWalker) LanguageStats(ctx context.Context, scope FileScope) (map[string]int, error) {
	results, err := fw.Walk(ctx, scope)
	if err != nil {
		return nil, err
	}
	stats := make(map[string]int)
	for r := range results {
		if r.Error == nil {
			stats[r.Language]++
		}
	}
	return stats, ctx.Err()
}
