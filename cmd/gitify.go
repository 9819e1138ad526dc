/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"github.com/fulmenhq/ppackage/internal/gitctx"
	"github.com/fulmenhq/ppackage/pkg/logger"
	"github.com/spf13/cobra"
)

// gitRunner builds the git runner used by gitify. Tests replace it.
var gitRunner = func(dir string, cmd *cobra.Command) gitctx.Runner {
	return &gitctx.ExecRunner{Dir: dir, Stdout: cmd.ErrOrStderr(), Stderr: cmd.ErrOrStderr()}
}

func newGitifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gitify",
		Short: "Turn an exported package tree back into a git working copy",
		Long: `Gitify clones the project repository into .git of an exported tree (an
unpacked npm package or a Docker build context), unstages everything and
restores the files the export left out through .dockerignore and .npmignore.

The repository URL comes from --url or the package.json "repository" field.`,
		Args: cobra.NoArgs,
		RunE: runGitify,
	}
	cmd.Flags().String("url", "", "Repository URL to clone")
	return cmd
}

func runGitify(cmd *cobra.Command, _ []string) error {
	explicit, _ := cmd.Flags().GetString("url")

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	url, err := p.manifestURL(explicit)
	if err != nil {
		return err
	}

	logger.Info("Restoring git working copy", logger.String("dir", p.dir), logger.String("url", url))
	return gitctx.Gitify(cmd.Context(), p.fs, gitRunner(p.dir, cmd), url)
}
