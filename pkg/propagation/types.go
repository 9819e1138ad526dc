// Package propagation writes a release version into every manifest of a
// project: package.json, pyproject.toml, pom.xml, Dockerfiles and CI files.
package propagation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/ppackage/pkg/logger"
	"github.com/go-git/go-billy/v5"
	"golang.org/x/sync/errgroup"
)

// ErrNoVersion is returned by ExtractVersion when a manifest declares no
// version yet. Analyze and Propagate treat it as an empty version.
var ErrNoVersion = errors.New("no version field")

// PackageManager defines the interface for manifest implementations
type PackageManager interface {
	// Name returns the short name of the manager (e.g., "npm", "docker")
	Name() string

	// Detect returns paths, relative to the filesystem root, of files this manager handles
	Detect(fsys billy.Filesystem) ([]string, error)

	// ExtractVersion reads the version from the specified file
	ExtractVersion(fsys billy.Filesystem, file string) (string, error)

	// UpdateVersion updates the version in the specified file
	UpdateVersion(fsys billy.Filesystem, file, version string) error

	// ValidateVersion checks if the version in the file matches the expected version
	ValidateVersion(fsys billy.Filesystem, file, version string) error
}

// Registry keeps package managers in registration order. Earlier managers
// take priority when deciding the current version.
type Registry struct {
	managers []PackageManager
	index    map[string]int
}

// NewRegistry creates a new package manager registry
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// Register adds a package manager to the registry. Registering a name twice
// replaces the manager in place.
func (r *Registry) Register(manager PackageManager) {
	if i, ok := r.index[manager.Name()]; ok {
		r.managers[i] = manager
		return
	}
	r.index[manager.Name()] = len(r.managers)
	r.managers = append(r.managers, manager)
}

// Get returns a package manager by name
func (r *Registry) Get(name string) (PackageManager, bool) {
	i, exists := r.index[name]
	if !exists {
		return nil, false
	}
	return r.managers[i], true
}

// List returns all registered package managers in registration order
func (r *Registry) List() []PackageManager {
	return append([]PackageManager(nil), r.managers...)
}

// Manifest is one detected file and the version it declares.
type Manifest struct {
	Manager string `json:"manager"`
	File    string `json:"file"`
	Version string `json:"version"`
}

// Propagator handles version propagation operations
type Propagator struct {
	registry *Registry
}

// PropagateOptions configures propagation behavior
type PropagateOptions struct {
	DryRun       bool     // Preview changes without making them
	Targets      []string // Manager names to use; empty means all
	Exclude      []string // doublestar patterns of files to skip
	ValidateOnly bool     // Only validate current version consistency
}

// PropagationResult contains the outcome of a propagation operation
type PropagationResult struct {
	Success   bool
	Processed int
	Errors    []PropagationError
	Changes   []FileChange
	Duration  time.Duration
}

// PropagationError represents an error during propagation
type PropagationError struct {
	File    string
	Error   error
	Message string
}

// FileChange represents a change made to a file
type FileChange struct {
	File       string `json:"file"`
	Manager    string `json:"manager"`
	OldVersion string `json:"old_version"`
	NewVersion string `json:"new_version"`
}

// Files returns the paths of all changed files.
func (r *PropagationResult) Files() []string {
	files := make([]string, 0, len(r.Changes))
	for _, c := range r.Changes {
		files = append(files, c.File)
	}
	return files
}

// Err joins the recorded errors, or returns nil when there are none.
func (r *PropagationResult) Err() error {
	errs := make([]error, 0, len(r.Errors))
	for _, e := range r.Errors {
		if e.Error != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Message, e.Error))
		} else {
			errs = append(errs, errors.New(e.Message))
		}
	}
	return errors.Join(errs...)
}

// NewPropagator creates a new version propagator
func NewPropagator(registry *Registry) *Propagator {
	return &Propagator{registry: registry}
}

// selectManagers returns registered managers matching targets, in registry order.
func (p *Propagator) selectManagers(targets []string) []PackageManager {
	managers := p.registry.List()
	if len(targets) == 0 {
		return managers
	}

	targetMap := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		targetMap[strings.ToLower(target)] = struct{}{}
	}

	filtered := make([]PackageManager, 0, len(managers))
	for _, manager := range managers {
		if _, ok := targetMap[strings.ToLower(manager.Name())]; ok {
			filtered = append(filtered, manager)
		}
	}
	return filtered
}

// filterFiles drops files matching any exclude pattern.
func filterFiles(files, exclude []string) []string {
	if len(exclude) == 0 {
		return files
	}
	filtered := make([]string, 0, len(files))
	for _, file := range files {
		normalized := filepath.ToSlash(file)
		excluded := false
		for _, pattern := range exclude {
			if ok, err := doublestar.Match(pattern, normalized); err == nil && ok {
				excluded = true
				break
			}
		}
		if !excluded {
			filtered = append(filtered, file)
		}
	}
	return filtered
}

// Analyze detects every selected manager's files and reads their versions.
// Managers run concurrently; the result keeps registry order.
func (p *Propagator) Analyze(ctx context.Context, fsys billy.Filesystem, opts PropagateOptions) ([]Manifest, error) {
	managers := p.selectManagers(opts.Targets)
	found := make([][]Manifest, len(managers))

	g, ctx := errgroup.WithContext(ctx)
	for i, manager := range managers {
		g.Go(func() error {
			files, err := manager.Detect(fsys)
			if err != nil {
				return fmt.Errorf("failed to detect files for %s: %w", manager.Name(), err)
			}
			files = filterFiles(files, opts.Exclude)

			for _, file := range files {
				if err := ctx.Err(); err != nil {
					return err
				}
				version, err := manager.ExtractVersion(fsys, file)
				if err != nil && !errors.Is(err, ErrNoVersion) {
					return fmt.Errorf("failed to extract version from %s: %w", file, err)
				}
				found[i] = append(found[i], Manifest{Manager: manager.Name(), File: file, Version: version})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var manifests []Manifest
	for _, m := range found {
		manifests = append(manifests, m...)
	}
	logger.Debug("Manifests analyzed", logger.Int("count", len(manifests)))
	return manifests, nil
}

// CurrentVersion returns the first non-empty version in registry order.
func CurrentVersion(manifests []Manifest) string {
	for _, m := range manifests {
		if m.Version != "" {
			return m.Version
		}
	}
	return ""
}

// Propagate executes version propagation according to the given options
func (p *Propagator) Propagate(ctx context.Context, fsys billy.Filesystem, version string, opts PropagateOptions) (*PropagationResult, error) {
	start := time.Now()
	logger.Debug("Propagation started", logger.String("version", version))

	targetManagers := p.selectManagers(opts.Targets)
	logger.Debug("Managers selected for propagation", logger.Int("count", len(targetManagers)))

	result := &PropagationResult{Success: true}

	fail := func(file, message string, err error) {
		result.Errors = append(result.Errors, PropagationError{File: file, Error: err, Message: message})
		result.Success = false
	}

	for _, manager := range targetManagers {
		if err := ctx.Err(); err != nil {
			fail("", "propagation cancelled", err)
			result.Duration = time.Since(start)
			return result, err
		}

		files, err := manager.Detect(fsys)
		if err != nil {
			fail("", fmt.Sprintf("failed to detect files for %s", manager.Name()), err)
			continue
		}
		included := filterFiles(files, opts.Exclude)

		logger.Debug("Files detected and filtered",
			logger.String("manager", manager.Name()),
			logger.Int("detected", len(files)),
			logger.Int("included", len(included)))

		for _, file := range included {
			if opts.ValidateOnly {
				if err := manager.ValidateVersion(fsys, file, version); err != nil {
					fail(file, fmt.Sprintf("version validation failed for %s", file), err)
				}
				result.Processed++
				continue
			}

			oldVersion, err := manager.ExtractVersion(fsys, file)
			if err != nil && !errors.Is(err, ErrNoVersion) {
				fail(file, fmt.Sprintf("failed to extract version from %s", file), err)
				continue
			}

			if oldVersion == version {
				logger.Debug("File already at correct version", logger.String("file", file))
				result.Processed++
				continue
			}

			if !opts.DryRun {
				if err := manager.UpdateVersion(fsys, file, version); err != nil {
					fail(file, fmt.Sprintf("failed to update version in %s", file), err)
					continue
				}
			}

			result.Changes = append(result.Changes, FileChange{
				File:       file,
				Manager:    manager.Name(),
				OldVersion: oldVersion,
				NewVersion: version,
			})
			result.Processed++
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}
