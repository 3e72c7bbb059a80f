package main

import (
	"fmt"
	"os"

	"github.com/eeshansrivastava89/datascienceapps/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for nbsummary.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nbsummary",
		Short: "Run analysis notebooks and publish their summaries",
		Long: `nbsummary executes Jupyter notebooks with papermill, renders them to HTML
with nbconvert and publishes a <notebook>.summary.json next to each page.

Summaries are recorded in a local history database so that consecutive
runs of a notebook can be compared.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Path to configuration file (default: .nbsummary.yaml, then XDG config, then home directory)")
	cmd.PersistentFlags().String("notebooks-dir", "",
		"Notebook tree root (default \""+config.DefaultNotebooksDir+"\")")
	cmd.PersistentFlags().String("output-dir", "",
		"Directory for rendered pages and summaries (default \""+config.DefaultOutputDir+"\")")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewListCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewWriteCmd())
	cmd.AddCommand(NewShowCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewIndexCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
