// Package release bumps a project's version: it resolves the target, runs
// the npm version hook, writes every manifest, then commits and tags.
package release

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/aymerick/raymond"
	"github.com/fulmenhq/ppackage/pkg/config"
	"github.com/fulmenhq/ppackage/pkg/logger"
	"github.com/fulmenhq/ppackage/pkg/propagation"
	"github.com/fulmenhq/ppackage/pkg/versioning"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	// ErrDirtyWorktree is returned when tracked files have uncommitted changes.
	ErrDirtyWorktree = errors.New("working directory not clean, aborting")
	// ErrInvalidVersion is returned when the target resolves to no version.
	ErrInvalidVersion = errors.New("invalid semver range")
	// ErrGuard is returned when a configured precondition does not hold.
	ErrGuard = errors.New("release guard failed")
)

// VCS is the subset of git a release needs.
type VCS interface {
	IsDirty() (bool, error)
	Branch() (string, error)
	Add(paths ...string) error
	HasStagedChanges() (bool, error)
	Commit(message string, author *object.Signature) (string, error)
	HasTag(name string) (bool, error)
	Tag(name string) error
}

// Options tune a single run.
type Options struct {
	NoTag  bool // skip the clean check, commit and tag
	DryRun bool // resolve and report without writing anything
}

// Result describes what a run did, or would do for a dry run.
type Result struct {
	Previous string                   `json:"previous"`
	Version  string                   `json:"version"`
	Changes  []propagation.FileChange `json:"changes"`
	Commit   string                   `json:"commit,omitempty"`
	Tag      string                   `json:"tag,omitempty"`
	HookRan  bool                     `json:"hook_ran"`
	DryRun   bool                     `json:"dry_run"`
}

// Releaser runs version bumps for one project.
type Releaser struct {
	fs       billy.Filesystem
	cfg      *config.Config
	registry *propagation.Registry
	git      VCS
	hook     HookRunner
	getenv   func() []string
}

// New creates a Releaser over the project filesystem. git may be nil when
// the project is not under version control; only NoTag runs succeed then.
func New(fs billy.Filesystem, cfg *config.Config, registry *propagation.Registry, git VCS, hook HookRunner) *Releaser {
	return &Releaser{
		fs:       fs,
		cfg:      cfg,
		registry: registry,
		git:      git,
		hook:     hook,
		getenv:   environ,
	}
}

func (r *Releaser) propagateOptions() propagation.PropagateOptions {
	return propagation.PropagateOptions{
		Targets: r.cfg.Targets.Enabled,
		Exclude: r.cfg.Targets.Exclude,
	}
}

// Run bumps the project to target, a version or a release type such as
// "patch" or "prerelease".
func (r *Releaser) Run(ctx context.Context, target string, opts Options) (*Result, error) {
	prop := propagation.NewPropagator(r.registry)
	popts := r.propagateOptions()

	manifests, err := prop.Analyze(ctx, r.fs, popts)
	if err != nil {
		return nil, err
	}
	current := propagation.CurrentVersion(manifests)
	if current == "" {
		current = versioning.DefaultVersion
	}
	logger.Debug("Current version", logger.String("version", current), logger.Int("manifests", len(manifests)))

	if err := r.checkGuards(opts); err != nil {
		return nil, err
	}

	version, err := versioning.Resolve(current, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, target)
	}
	if cmp, err := versioning.Compare(versioning.SchemeSemver, version, current); err == nil && cmp != versioning.ComparisonGreater {
		logger.Warn("Target version is not greater than current", logger.String("current", current), logger.String("target", version))
	}

	if !opts.NoTag && r.git != nil {
		if err := r.checkTagFree(current, version); err != nil {
			return nil, err
		}
	}

	result := &Result{Previous: current, Version: version, DryRun: opts.DryRun}

	if opts.DryRun {
		popts.DryRun = true
		planned, err := prop.Propagate(ctx, r.fs, version, popts)
		if err != nil {
			return nil, err
		}
		result.Changes = planned.Changes
		if !opts.NoTag {
			if result.Tag, err = r.render(r.cfg.Git.TagTemplate, current, version, ""); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	ran, err := r.runVersionHook(ctx, version)
	if err != nil {
		return nil, err
	}
	result.HookRan = ran

	applied, err := prop.Propagate(ctx, r.fs, version, popts)
	if err != nil {
		return nil, err
	}
	if err := applied.Err(); err != nil {
		return nil, fmt.Errorf("failed to write version %s: %w", version, err)
	}
	result.Changes = applied.Changes

	if r.git != nil && len(applied.Changes) > 0 {
		if err := r.git.Add(applied.Files()...); err != nil {
			return nil, err
		}
	}

	if opts.NoTag {
		return result, nil
	}
	if err := r.commitAndTag(current, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Releaser) checkGuards(opts Options) error {
	needsGit := !opts.NoTag || len(r.cfg.Git.RequiredBranches) > 0
	if r.git == nil {
		if needsGit && !opts.DryRun {
			return fmt.Errorf("%w: not a git repository (use --notag)", ErrGuard)
		}
		return nil
	}

	if !opts.NoTag && r.cfg.Git.RequireClean {
		dirty, err := r.git.IsDirty()
		if err != nil {
			return fmt.Errorf("failed to check worktree status: %w", err)
		}
		if dirty {
			return ErrDirtyWorktree
		}
	}

	if len(r.cfg.Git.RequiredBranches) > 0 {
		branch, err := r.git.Branch()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrGuard, err)
		}
		allowed := false
		for _, pattern := range r.cfg.Git.RequiredBranches {
			if matched, err := filepath.Match(pattern, branch); err == nil && matched {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: current branch '%s' not in required branches: %v", ErrGuard, branch, r.cfg.Git.RequiredBranches)
		}
	}
	return nil
}

// checkTagFree fails before anything is written when the release tag exists.
func (r *Releaser) checkTagFree(current, version string) error {
	tag, err := r.render(r.cfg.Git.TagTemplate, current, version, "")
	if err != nil {
		return err
	}
	exists, err := r.git.HasTag(tag)
	if err != nil {
		return fmt.Errorf("failed to look up tag %s: %w", tag, err)
	}
	if exists {
		return fmt.Errorf("%w: tag %s already exists", ErrGuard, tag)
	}
	return nil
}

func (r *Releaser) commitAndTag(current string, result *Result) error {
	tag, err := r.render(r.cfg.Git.TagTemplate, current, result.Version, "")
	if err != nil {
		return err
	}
	message, err := r.render(r.cfg.Git.CommitTemplate, current, result.Version, tag)
	if err != nil {
		return err
	}

	staged, err := r.git.HasStagedChanges()
	if err != nil {
		return err
	}
	if staged {
		hash, err := r.git.Commit(message, r.author())
		if err != nil {
			return err
		}
		result.Commit = hash
		logger.Info("Committed release", logger.String("commit", hash), logger.String("message", message))
	} else {
		logger.Warn("Nothing to commit, tagging HEAD", logger.String("version", result.Version))
	}

	if err := r.git.Tag(tag); err != nil {
		return err
	}
	result.Tag = tag
	logger.Info("Tagged release", logger.String("tag", tag))
	return nil
}

// author builds the commit signature from config, or nil to let git decide.
func (r *Releaser) author() *object.Signature {
	if r.cfg.Git.AuthorName == "" || r.cfg.Git.AuthorEmail == "" {
		return nil
	}
	return &object.Signature{Name: r.cfg.Git.AuthorName, Email: r.cfg.Git.AuthorEmail, When: now()}
}

// render expands a commit or tag template. Available fields: version,
// previous and tag.
func (r *Releaser) render(tpl, previous, version, tag string) (string, error) {
	out, err := raymond.Render(tpl, map[string]string{
		"version":  version,
		"previous": previous,
		"tag":      tag,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", tpl, err)
	}
	return out, nil
}
