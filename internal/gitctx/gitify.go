package gitctx

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/ppackage/pkg/logger"
	"github.com/fulmenhq/ppackage/pkg/safeio"
	"github.com/go-git/go-billy/v5"
)

// ErrGitDirExists is returned by Gitify when the tree already has a .git.
var ErrGitDirExists = errors.New("refusing to gitify: .git already exists")

// Ignore files whose listed paths are restored from the repository.
var ignoreFiles = []string{".gitignore", ".dockerignore", ".npmignore"}

// Runner executes a git command in the project directory.
type Runner interface {
	Run(ctx context.Context, args ...string) error
}

// ExecRunner runs the git CLI.
type ExecRunner struct {
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes git with args in r.Dir.
func (r *ExecRunner) Run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return nil
}

// Gitify turns an exported tree (a published package or an image build
// context) back into a working copy of url. Files excluded from the export
// by .dockerignore or .npmignore are checked out again; everything else is
// left as found so local differences show up as changes.
func Gitify(ctx context.Context, fsys billy.Filesystem, runner Runner, url string) error {
	if _, err := fsys.Lstat(".git"); err == nil {
		return ErrGitDirExists
	}
	if strings.TrimSpace(url) == "" {
		return errors.New("no repository URL to clone from")
	}

	steps := [][]string{
		{"clone", "--bare", url, ".git"},
		{"config", "--unset", "core.bare"},
		{"reset", "HEAD", "--", "."},
	}
	for _, args := range steps {
		if err := runner.Run(ctx, args...); err != nil {
			return err
		}
	}

	for _, name := range ignoreFiles {
		checkout(ctx, runner, name)
	}

	for _, pattern := range RestorePatterns(fsys) {
		checkout(ctx, runner, pattern)
	}
	return nil
}

// checkout restores one path; a failure only means it is not in the repository.
func checkout(ctx context.Context, runner Runner, pathspec string) {
	if err := runner.Run(ctx, "checkout", "--", pathspec); err != nil {
		logger.Debug("Checkout skipped", logger.String("path", pathspec), logger.Err(err))
	}
}

// RestorePatterns lists the entries of .dockerignore and .npmignore in file
// order, without comments, blanks, duplicates or malformed globs.
func RestorePatterns(fsys billy.Filesystem) []string {
	var patterns []string
	seen := make(map[string]bool)
	for _, name := range []string{".dockerignore", ".npmignore"} {
		data, err := safeio.ReadFile(fsys, name)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") || seen[line] {
				continue
			}
			if !doublestar.ValidatePattern(line) {
				logger.Warn("Skipping invalid ignore pattern", logger.String("file", name), logger.String("pattern", line))
				continue
			}
			seen[line] = true
			patterns = append(patterns, line)
		}
	}
	return patterns
}
