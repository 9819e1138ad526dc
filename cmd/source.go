/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"fmt"

	"github.com/fulmenhq/ppackage/pkg/logger"
	"github.com/fulmenhq/ppackage/pkg/propagation/managers"
	"github.com/spf13/cobra"
)

func newSourceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Stamp the repository URL into Dockerfile labels",
		Long: `Source writes the project's repository URL to the configured source label
(org.opencontainers.image.source by default) of every configured Dockerfile.

The URL is taken from --url, then the package.json "repository" field, then
the "origin" git remote. SSH remotes are rewritten to https.`,
		Args: cobra.NoArgs,
		RunE: runSource,
	}
	cmd.Flags().String("url", "", "Repository URL to stamp")
	return cmd
}

func runSource(cmd *cobra.Command, _ []string) error {
	explicit, _ := cmd.Flags().GetString("url")

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	url, err := p.repositoryURL(explicit)
	if err != nil {
		return err
	}

	docker := managers.NewDockerManager(p.cfg.Docker.Files, p.cfg.Docker.VersionLabel)
	files, err := docker.Detect(p.fs)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no Dockerfile matches %v", p.cfg.Docker.Files)
	}

	for _, file := range files {
		if err := managers.StampLabel(p.fs, file, p.cfg.Docker.SourceLabel, url); err != nil {
			return err
		}
		logger.Info("Stamped source label",
			logger.String("file", file),
			logger.String("label", p.cfg.Docker.SourceLabel),
			logger.String("url", url))
	}
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}
