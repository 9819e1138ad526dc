/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
)

// formatFlag is a pflag.Value accepting only the supported output formats.
type formatFlag struct {
	value outputFormat
}

func (f *formatFlag) String() string { return string(f.value) }
func (f *formatFlag) Type() string   { return "format" }

func (f *formatFlag) Set(s string) error {
	switch v := outputFormat(strings.ToLower(strings.TrimSpace(s))); v {
	case formatText, formatJSON:
		f.value = v
		return nil
	default:
		return fmt.Errorf("unsupported format %q (want text or json)", s)
	}
}

// addFormatFlag registers --format on flags, defaulting to text.
func addFormatFlag(flags *pflag.FlagSet) {
	flags.Var(&formatFlag{value: formatText}, "format", "Output format (text|json)")
}

// formatOf returns the --format value of cmd.
func formatOf(cmd *cobra.Command) outputFormat {
	if f := cmd.Flags().Lookup("format"); f != nil {
		return outputFormat(f.Value.String())
	}
	return formatText
}
