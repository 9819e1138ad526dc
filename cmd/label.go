/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/fulmenhq/ppackage/pkg/dockerfile"
	"github.com/fulmenhq/ppackage/pkg/logger"
	"github.com/fulmenhq/ppackage/pkg/propagation/managers"
	"github.com/fulmenhq/ppackage/pkg/safeio"
	"github.com/spf13/cobra"
)

var errLabelNotFound = errors.New("label not found")

func newLabelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Read and edit Dockerfile labels",
		Long: `Label reads and edits LABEL instructions in a Dockerfile. Edits rewrite only
the LABEL line that changes; every other line is written back as found.`,
	}
	cmd.PersistentFlags().String("file", "Dockerfile", "Dockerfile to edit, relative to the project directory")

	list := &cobra.Command{
		Use:   "list",
		Short: "List effective labels",
		Args:  cobra.NoArgs,
		RunE:  runLabelList,
	}
	addFormatFlag(list.Flags())

	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print the value of a label",
			Args:  cobra.ExactArgs(1),
			RunE:  runLabelGet,
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set a label, appending a LABEL line when no line declares it",
			Args:  cobra.ExactArgs(2),
			RunE:  runLabelSet,
		},
		&cobra.Command{
			Use:     "rm <key>",
			Aliases: []string{"remove"},
			Short:   "Remove a label from every LABEL line",
			Args:    cobra.ExactArgs(1),
			RunE:    runLabelRemove,
		},
	)
	return cmd
}

// openDockerfile loads the --file Dockerfile of the project.
func openDockerfile(cmd *cobra.Command) (*project, string, *dockerfile.Document, error) {
	p, err := loadProject(cmd)
	if err != nil {
		return nil, "", nil, err
	}
	raw, _ := cmd.Flags().GetString("file")
	file, err := safeio.CleanUserPath(raw)
	if err != nil {
		return nil, "", nil, fmt.Errorf("invalid --file %q: %w", raw, err)
	}
	doc, err := managers.ReadDockerfile(p.fs, file)
	if err != nil {
		return nil, "", nil, err
	}
	return p, file, doc, nil
}

func runLabelList(cmd *cobra.Command, _ []string) error {
	format := formatOf(cmd)
	_, _, doc, err := openDockerfile(cmd)
	if err != nil {
		return err
	}

	labels := doc.Labels()
	out := cmd.OutOrStdout()
	if format == formatJSON {
		data, err := json.MarshalIndent(labels, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s=%s\n", k, labels[k])
	}
	return nil
}

func runLabelGet(cmd *cobra.Command, args []string) error {
	_, file, doc, err := openDockerfile(cmd)
	if err != nil {
		return err
	}
	value, ok := doc.Label(args[0])
	if !ok {
		return fmt.Errorf("%s: %w: %s", file, errLabelNotFound, args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runLabelSet(cmd *cobra.Command, args []string) error {
	p, file, doc, err := openDockerfile(cmd)
	if err != nil {
		return err
	}
	key, value := args[0], args[1]
	if current, ok := doc.Label(key); ok && current == value {
		logger.Debug("Label unchanged", logger.String("file", file), logger.String("key", key))
		return nil
	}
	doc.SetLabel(key, value)
	if err := managers.WriteDockerfile(p.fs, file, doc); err != nil {
		return err
	}
	logger.Info("Label set", logger.String("file", file), logger.String("key", key), logger.String("value", value))
	return nil
}

func runLabelRemove(cmd *cobra.Command, args []string) error {
	p, file, doc, err := openDockerfile(cmd)
	if err != nil {
		return err
	}
	if !doc.RemoveLabel(args[0]) {
		return fmt.Errorf("%s: %w: %s", file, errLabelNotFound, args[0])
	}
	if err := managers.WriteDockerfile(p.fs, file, doc); err != nil {
		return err
	}
	logger.Info("Label removed", logger.String("file", file), logger.String("key", args[0]))
	return nil
}
