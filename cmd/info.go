/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/fulmenhq/ppackage/pkg/ascii"
	"github.com/fulmenhq/ppackage/pkg/propagation"
	"github.com/fulmenhq/ppackage/pkg/propagation/managers"
	"github.com/fulmenhq/ppackage/pkg/versioning"
	"github.com/spf13/cobra"
)

// maxInfoCell caps column width in the text table.
const maxInfoCell = 60

type infoReport struct {
	Version   string                 `json:"version"`
	Manifests []propagation.Manifest `json:"manifests"`
}

func newInfoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show detected manifests and their versions",
		Args:  cobra.NoArgs,
		RunE:  runInfo,
	}
	addFormatFlag(cmd.Flags())
	return cmd
}

func runInfo(cmd *cobra.Command, _ []string) error {
	format := formatOf(cmd)

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}

	prop := propagation.NewPropagator(managers.NewRegistry(p.cfg))
	manifests, err := prop.Analyze(cmd.Context(), p.fs, propagation.PropagateOptions{
		Targets: p.cfg.Targets.Enabled,
		Exclude: p.cfg.Targets.Exclude,
	})
	if err != nil {
		return err
	}

	report := infoReport{Version: propagation.CurrentVersion(manifests), Manifests: manifests}
	if report.Version == "" {
		report.Version = versioning.DefaultVersion
	}
	if report.Manifests == nil {
		report.Manifests = []propagation.Manifest{}
	}

	out := cmd.OutOrStdout()
	if format == formatJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Version: %s\n", report.Version)
	if len(manifests) == 0 {
		fmt.Fprintln(out, "No manifests found")
		return nil
	}
	fmt.Fprintln(out)
	rows := make([][]string, 0, len(manifests))
	for _, m := range manifests {
		v := m.Version
		if v == "" {
			v = "-"
		}
		rows = append(rows, []string{m.Manager, m.File, v})
	}
	fmt.Fprint(out, ascii.Table([]string{"MANAGER", "FILE", "VERSION"}, rows, maxInfoCell))
	return nil
}
