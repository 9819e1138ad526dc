// Package gitctx wraps the git operations a release needs: worktree status,
// staging, commits, tags and remotes.
package gitctx

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotRepository is returned by Open outside a git worktree.
var ErrNotRepository = errors.New("not a git repository")

// ErrDetachedHead is returned by Branch when HEAD is not a branch.
var ErrDetachedHead = errors.New("HEAD is detached")

// Repo is a git repository seen from a project directory, which may be a
// subdirectory of the worktree.
type Repo struct {
	repo   *git.Repository
	prefix string // project dir relative to the worktree root, slash separated
}

// Open finds the repository containing root.
func Open(root string) (*Repo, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true, EnableDotGitCommonDir: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", root, ErrNotRepository)
		}
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	prefix, err := relativePrefix(wt.Filesystem.Root(), abs)
	if err != nil {
		return nil, err
	}
	return &Repo{repo: repo, prefix: prefix}, nil
}

func relativePrefix(top, dir string) (string, error) {
	if t, err := filepath.EvalSymlinks(top); err == nil {
		top = t
	}
	if d, err := filepath.EvalSymlinks(dir); err == nil {
		dir = d
	}
	rel, err := filepath.Rel(top, dir)
	if err != nil {
		return "", fmt.Errorf("failed to locate %s in worktree: %w", dir, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "", nil
	}
	return rel, nil
}

// FromRepository wraps an already opened repository. prefix locates the
// project directory inside the worktree ("" for the root).
func FromRepository(repo *git.Repository, prefix string) *Repo {
	prefix = strings.Trim(filepath.ToSlash(prefix), "/")
	if prefix == "." {
		prefix = ""
	}
	return &Repo{repo: repo, prefix: prefix}
}

// Repository exposes the underlying go-git repository.
func (r *Repo) Repository() *git.Repository { return r.repo }

func (r *Repo) status() (git.Status, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree status: %w", err)
	}
	return st, nil
}

func untracked(s *git.FileStatus) bool {
	return s.Staging == git.Untracked && s.Worktree == git.Untracked
}

// IsDirty reports staged or unstaged changes to tracked files. Untracked
// files do not count. A repository without commits is always dirty.
func (r *Repo) IsDirty() (bool, error) {
	if _, err := r.repo.Head(); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("failed to get HEAD reference: %w", err)
	}

	st, err := r.status()
	if err != nil {
		return false, err
	}
	for _, s := range st {
		if untracked(s) {
			continue
		}
		if s.Staging != git.Unmodified || s.Worktree != git.Unmodified {
			return true, nil
		}
	}
	return false, nil
}

// HasStagedChanges reports whether the index differs from HEAD.
func (r *Repo) HasStagedChanges() (bool, error) {
	st, err := r.status()
	if err != nil {
		return false, err
	}
	for _, s := range st {
		if s.Staging != git.Unmodified && s.Staging != git.Untracked {
			return true, nil
		}
	}
	return false, nil
}

// Branch returns the short name of the checked out branch.
func (r *Repo) Branch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD reference: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", ErrDetachedHead
	}
	return head.Name().Short(), nil
}

// Head returns the commit hash HEAD points to.
func (r *Repo) Head() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD reference: %w", err)
	}
	return head.Hash().String(), nil
}

// Add stages paths given relative to the project directory.
func (r *Repo) Add(paths ...string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	for _, p := range paths {
		full := path.Join(r.prefix, filepath.ToSlash(p))
		if _, err := wt.Add(full); err != nil {
			return fmt.Errorf("git add %s: %w", full, err)
		}
	}
	return nil
}

// Commit records the index. A nil author falls back to the git config
// user.name and user.email.
func (r *Repo) Commit(message string, author *object.Signature) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: author})
	if err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	return hash.String(), nil
}

// Tag creates a lightweight tag on HEAD.
func (r *Repo) Tag(name string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD reference: %w", err)
	}
	if _, err := r.repo.CreateTag(name, head.Hash(), nil); err != nil {
		return fmt.Errorf("git tag %s: %w", name, err)
	}
	return nil
}

// HasTag reports whether a tag exists.
func (r *Repo) HasTag(name string) (bool, error) {
	_, err := r.repo.Tag(name)
	if errors.Is(err, git.ErrTagNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemoteURL returns the first URL of the named remote.
func (r *Repo) RemoteURL(name string) (string, error) {
	remote, err := r.repo.Remote(name)
	if err != nil {
		return "", fmt.Errorf("remote %s: %w", name, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %s has no URL", name)
	}
	return urls[0], nil
}
