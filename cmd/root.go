/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"errors"
	"os"

	"github.com/fulmenhq/ppackage/internal/gitctx"
	"github.com/fulmenhq/ppackage/pkg/buildinfo"
	"github.com/fulmenhq/ppackage/pkg/exitcode"
	"github.com/fulmenhq/ppackage/pkg/logger"
	"github.com/fulmenhq/ppackage/pkg/release"
	"github.com/spf13/cobra"
)

// newRootCommand creates a fresh root command instance.
// Tests build their own trees from it so flag state never leaks between runs.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ppackage",
		Short: "Release automation for multi-manifest projects",
		Long: `ppackage keeps the version and repository URL of a project in sync across
package.json, composer.json, pyproject.toml, pom.xml, .gitlab-ci.yml and
Dockerfile labels, then commits and tags the release.

Examples:
   ppackage version patch        # Bump every manifest, commit and tag
   ppackage version 2.0.0 --notag
   ppackage info                 # Show detected manifests and versions
   ppackage label set maintainer ops@example.com
   ppackage source               # Stamp the repository URL into Dockerfiles`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
	}

	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().Bool("no-op", false, "Mark log output as coming from a no-op run")
	cmd.PersistentFlags().StringP("dir", "C", ".", "Project directory")

	cmd.Version = buildinfo.String()
	cmd.SetVersionTemplate("ppackage {{.Version}}\n")

	return cmd
}

// registerSubcommands adds all subcommands to the root command.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newVersionCommand())
	cmd.AddCommand(newInfoCommand())
	cmd.AddCommand(newLabelCommand())
	cmd.AddCommand(newSourceCommand())
	cmd.AddCommand(newGitifyCommand())
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

// Execute runs the root command and exits with a code describing the failure.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command execution failed", logger.Err(err))
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	registerSubcommands(rootCmd)
}

// exitCodeFor maps an error returned by a command to a process exit code.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, release.ErrDirtyWorktree),
		errors.Is(err, release.ErrInvalidVersion),
		errors.Is(err, release.ErrGuard):
		return exitcode.ValidationError
	case errors.Is(err, gitctx.ErrNotRepository),
		errors.Is(err, gitctx.ErrGitDirExists),
		errors.Is(err, gitctx.ErrDetachedHead):
		return exitcode.GitError
	default:
		return exitcode.Of(err)
	}
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	noOp, _ := cmd.Flags().GetBool("no-op")

	config := logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "ppackage",
		NoOp:      noOp,
		Output:    cmd.ErrOrStderr(),
	}

	if err := logger.Initialize(config); err != nil {
		if _, writeErr := os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n"); writeErr != nil {
			_ = writeErr
		}
		os.Exit(exitcode.ConfigError)
	}
}
