package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/eeshansrivastava89/datascienceapps/internal/notebook"
	"github.com/eeshansrivastava89/datascienceapps/internal/summary"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [folder]",
		Short: "List notebooks that would be run",
		Long: `List prints the notebooks below the notebooks directory, relative to it.
Executed copies, checkpoints and excluded notebooks are not listed.

With --long, the title, kernel and number of code cells of each notebook
are shown, along with whether a summary has been published for it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runListCmd,
	}

	cmd.Flags().BoolP("long", "l", false, "Show notebook metadata and summary status")

	return cmd
}

// runListCmd executes the list command.
func runListCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	long, err := cmd.Flags().GetBool("long")
	if err != nil {
		return err
	}

	target := ""
	if len(args) > 0 {
		target = args[0]
	}

	logger := setupLogger(cfg.Verbose)
	notebooks, err := findNotebooks(cfg, target, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(notebooks) == 0 {
		fmt.Fprintln(out, "No notebooks found")
		return nil
	}

	fmt.Fprintln(out, "Notebooks:")
	for _, nb := range notebooks {
		if !long {
			fmt.Fprintf(out, "  %s\n", nb.RelPath)
			continue
		}

		meta, err := notebook.ReadMetadata(nb.Path)
		if err != nil {
			fmt.Fprintf(out, "  %-40s  (unreadable: %v)\n", nb.RelPath, err)
			continue
		}

		published := "-"
		path := filepath.Join(cfg.OutputDir, nb.ProjectID, nb.NotebookID+summary.FileSuffix)
		if _, err := os.Stat(path); err == nil {
			published = "published"
		}

		title := meta.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(out, "  %-40s  %-10s  %3d cells  %-9s  %s\n",
			nb.RelPath, meta.Kernel, meta.CodeCells, published, title)
	}

	return nil
}
