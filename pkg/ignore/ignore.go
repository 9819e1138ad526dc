// Package ignore decides which project paths manifest detection skips: VCS
// and dependency directories, entries of the root .gitignore, and entries of
// a project .ppackageignore. Patterns follow gitignore semantics via go-git.
package ignore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/ppackage/pkg/safeio"
	"github.com/go-git/go-billy/v5"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileName is the project-level ignore file.
const FileName = ".ppackageignore"

// defaultDirs are skipped in every project.
var defaultDirs = []string{
	".git", ".svn", ".hg",
	"node_modules", "vendor",
	".venv", "venv", "__pycache__", ".pytest_cache", ".tox",
	"target", ".next", ".nuxt",
}

// Matcher provides gitignore-based path filtering
type Matcher struct {
	matcher gitignore.Matcher
}

// NewMatcher loads the ignore layers of the project at the root of fsys.
// Later layers take precedence, so .ppackageignore can re-include with `!`.
func NewMatcher(fsys billy.Filesystem) (*Matcher, error) {
	patterns := make([]gitignore.Pattern, 0, len(defaultDirs))
	for _, dir := range defaultDirs {
		patterns = append(patterns, gitignore.ParsePattern(dir+"/", nil))
	}

	for _, name := range []string{".gitignore", FileName} {
		lines, err := readIgnoreFile(fsys, name)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			patterns = append(patterns, gitignore.ParsePattern(line, nil))
		}
	}

	return &Matcher{matcher: gitignore.NewMatcher(patterns)}, nil
}

// readIgnoreFile returns the patterns of name, or nothing when it is absent.
func readIgnoreFile(fsys billy.Filesystem, name string) ([]string, error) {
	content, err := safeio.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	var patterns []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, nil
}

// Match reports whether the slash-separated path, relative to the project
// root, is ignored.
func (m *Matcher) Match(path string, isDir bool) bool {
	if m == nil {
		return false
	}
	parts := splitPath(path)
	if len(parts) == 0 {
		return false
	}
	return m.matcher.Match(parts, isDir)
}

// splitPath converts a slash-separated path into components for go-git matching
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.Split(path, "/")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return result
}
