/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/ppackage/internal/gitctx"
	"github.com/fulmenhq/ppackage/pkg/config"
	"github.com/fulmenhq/ppackage/pkg/exitcode"
	"github.com/fulmenhq/ppackage/pkg/logger"
	"github.com/fulmenhq/ppackage/pkg/repourl"
	"github.com/fulmenhq/ppackage/pkg/safeio"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

// project is the directory a command operates on.
type project struct {
	dir string
	fs  billy.Filesystem
	cfg *config.Config
}

// loadProject resolves --dir and loads its configuration.
func loadProject(cmd *cobra.Command) (*project, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("project directory: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("project directory %s is not a directory", dir)
	}

	cfg, err := config.Load(abs)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.ConfigError, err)
	}
	if cfg.Path != "" {
		logger.Debug("Loaded configuration", logger.String("path", cfg.Path))
	}
	return &project{dir: abs, fs: osfs.New(abs), cfg: cfg}, nil
}

// repo opens the git repository containing the project. A project outside any
// repository yields nil.
func (p *project) repo() (*gitctx.Repo, error) {
	repo, err := gitctx.Open(p.dir)
	if errors.Is(err, gitctx.ErrNotRepository) {
		logger.Debug("Project is not inside a git repository", logger.String("dir", p.dir))
		return nil, nil
	}
	return repo, err
}

// repositoryURL returns the first of: the explicit url, the package.json
// repository, the origin remote. The result is normalized to https.
func (p *project) repositoryURL(explicit string) (string, error) {
	url, err := p.manifestURL(explicit)
	if !errors.Is(err, repourl.ErrNoRepository) {
		return url, err
	}

	repo, err := p.repo()
	if err != nil {
		return "", err
	}
	if repo != nil {
		if url, err := repo.RemoteURL("origin"); err == nil {
			return repourl.GitToHTTPS(url), nil
		}
	}
	return "", repourl.ErrNoRepository
}

// manifestURL is repositoryURL without the git remote fallback.
func (p *project) manifestURL(explicit string) (string, error) {
	if explicit != "" {
		return repourl.GitToHTTPS(explicit), nil
	}
	if !safeio.Exists(p.fs, npmManifest) {
		return "", repourl.ErrNoRepository
	}
	data, err := safeio.ReadFile(p.fs, npmManifest)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", npmManifest, err)
	}
	url, err := repourl.FromPackageJSON(data)
	if err != nil {
		return "", err
	}
	return repourl.GitToHTTPS(url), nil
}

const npmManifest = "package.json"
