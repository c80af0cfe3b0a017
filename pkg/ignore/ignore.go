// Package ignore provides gitignore-based file filtering using go-git
package ignore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileName is the tool-specific ignore file read from the run root.
const FileName = ".assetneatignore"

// Matcher provides gitignore-based file filtering. Paths are matched relative
// to the root the matcher was created for, never the working directory.
type Matcher struct {
	root    string
	matcher gitignore.Matcher
	count   int
}

// NewMatcher creates a matcher with layered ignore files:
// 1. .gitignore files below root and .git/info/exclude (foundation)
// 2. <root>/.assetneatignore (tree overrides)
// 3. ~/.assetneat/ignore (user overrides)
func NewMatcher(root string) (*Matcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	bfs := osfs.New(abs)

	allPatterns := []gitignore.Pattern{gitignore.ParsePattern(".git/", nil)}

	gitPatterns, err := gitignore.ReadPatterns(bfs, nil)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	allPatterns = append(allPatterns, gitPatterns...)

	treePatterns, err := readIgnoreFile(filepath.Join(abs, FileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for _, p := range treePatterns {
		allPatterns = append(allPatterns, gitignore.ParsePattern(p, nil))
	}

	if home, err := os.UserHomeDir(); err == nil {
		if userPatterns, err := readIgnoreFile(filepath.Join(home, ".assetneat", "ignore")); err == nil {
			for _, p := range userPatterns {
				allPatterns = append(allPatterns, gitignore.ParsePattern(p, nil))
			}
		}
	}

	return &Matcher{
		root:    abs,
		matcher: gitignore.NewMatcher(allPatterns),
		count:   len(allPatterns),
	}, nil
}

// readIgnoreFile reads patterns from a gitignore-style text file.
func readIgnoreFile(path string) ([]string, error) {
	content, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- fixed file names under root or $HOME
	if err != nil {
		return nil, err
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, nil
}

// Root returns the directory paths are matched against.
func (m *Matcher) Root() string { return m.root }

// Patterns returns the number of loaded patterns, including the built-in .git rule.
func (m *Matcher) Patterns() int { return m.count }

// IsIgnored checks if a file path should be ignored. path may be absolute or
// relative to the matcher root.
func (m *Matcher) IsIgnored(path string) bool {
	return m.match(path, false)
}

// IsIgnoredDir checks if a directory should be skipped during traversal.
func (m *Matcher) IsIgnoredDir(path string) bool {
	return m.match(path, true)
}

func (m *Matcher) match(path string, isDir bool) bool {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(m.root, path)
		if err != nil {
			return false
		}
		rel = r
	}
	parts := splitPath(filepath.ToSlash(rel))
	if len(parts) == 0 || parts[0] == ".." {
		return false
	}
	return m.matcher.Match(parts, isDir)
}

// splitPath converts a slash-separated path into components for go-git matching
func splitPath(path string) []string {
	if path == "" || path == "." {
		return []string{}
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return result
}
