// Package commands implements the globalesm CLI commands.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Sumatoshi-tech/globalesm/pkg/safeconv"
	"github.com/Sumatoshi-tech/globalesm/pkg/version"
)

// Globals holds the persistent flags shared by every command.
type Globals struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
	NoColor    bool
}

// NewRootCommand builds the globalesm command tree.
func NewRootCommand() *cobra.Command {
	globals := &Globals{}

	rootCmd := &cobra.Command{
		Use:   "globalesm",
		Short: "Lower ES module declarations onto a global module registry",
		Long: `globalesm rewrites import/export declarations of JavaScript and TypeScript
modules into calls on a global module registry, or canonicalizes them in place.

Commands:
  transform  Lower modules once (files, directories or stdin)
  inspect    Print the bindings each module imports and exports
  watch      Rebuild a directory incrementally as it changes
  mcp        Serve the transform tools over the Model Context Protocol`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			configureColor(globals.NoColor, cmd.OutOrStdout())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&globals.ConfigPath, "config", "c", "", "config file (default: .globalesm.yaml in . or $HOME)")
	flags.BoolVarP(&globals.Verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&globals.Quiet, "quiet", "q", false, "suppress output")
	flags.BoolVar(&globals.NoColor, "no-color", false, "disable colored output")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(newTransformCommand(globals))
	rootCmd.AddCommand(newInspectCommand(globals))
	rootCmd.AddCommand(newWatchCommand(globals))
	rootCmd.AddCommand(newMCPCommand(globals))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// configureColor disables color when asked to, or when out is not a terminal.
func configureColor(disabled bool, out io.Writer) {
	if disabled {
		color.NoColor = true //nolint:reassign // intentional override of library global

		return
	}

	file, ok := out.(*os.File)
	if !ok || !term.IsTerminal(safeconv.MustUintptrToInt(file.Fd())) {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}
}
