/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/fulmenhq/ppackage/pkg/logger"
	"github.com/fulmenhq/ppackage/pkg/propagation/managers"
	"github.com/fulmenhq/ppackage/pkg/release"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version <newversion | major | minor | patch | premajor | preminor | prepatch | prerelease>",
		Short: "Bump the version in every manifest, then commit and tag",
		Long: `Version resolves the target against the current project version, runs the
package.json "version" script, writes the new version to every detected
manifest and Dockerfile label, stages the files, commits and tags.

The working tree must be clean unless --notag is given. With --notag the
files are written and staged but nothing is committed or tagged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runVersion,
	}
	cmd.Flags().Bool("notag", false, "Write and stage files without committing or tagging")
	cmd.Flags().Bool("dry-run", false, "Report what would change without writing anything")
	addFormatFlag(cmd.Flags())
	return cmd
}

func runVersion(cmd *cobra.Command, args []string) error {
	noTag, _ := cmd.Flags().GetBool("notag")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	format := formatOf(cmd)

	target := ""
	if len(args) > 0 {
		target = args[0]
	}

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	repo, err := p.repo()
	if err != nil {
		return err
	}
	var vcs release.VCS
	if repo != nil {
		vcs = repo
	}

	hook := &release.ShellHook{Dir: p.dir, Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
	r := release.New(p.fs, p.cfg, managers.NewRegistry(p.cfg), vcs, hook)

	result, err := r.Run(cmd.Context(), target, release.Options{NoTag: noTag, DryRun: dryRun})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == formatJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	for _, c := range result.Changes {
		logger.Info("Updated version",
			logger.String("file", c.File),
			logger.String("from", c.OldVersion),
			logger.String("to", c.NewVersion),
			logger.Bool("dry_run", result.DryRun))
	}
	if result.Tag != "" {
		fmt.Fprintln(out, result.Tag)
		return nil
	}
	fmt.Fprintln(out, result.Version)
	return nil
}
