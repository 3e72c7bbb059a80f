package main

import (
	"fmt"

	"github.com/eeshansrivastava89/datascienceapps/internal/index"
	"github.com/spf13/cobra"
)

// NewIndexCmd creates the index command.
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild index.json from the published summaries",
		Long: `Index writes <output-dir>/index.json, the listing of every published
summary grouped by project. The run command already does this after each
run; use this command after writing summaries by other means.

With --watch, the index is rebuilt whenever a summary is created, changed
or removed, until interrupted. This is handy while developing the site.`,
		Args: cobra.NoArgs,
		RunE: runIndexCmd,
	}

	cmd.Flags().BoolP("watch", "w", false, "Keep running and rebuild on summary changes")
	cmd.Flags().Duration("debounce", index.DefaultDebounce, "Quiet period before a rebuild in watch mode")

	return cmd
}

// runIndexCmd executes the index command.
func runIndexCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Verbose)

	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return err
	}
	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if !watch {
		ix, err := index.Write(cfg.OutputDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Indexed %d notebook(s) in %d project(s)\n", ix.NotebookCount(), len(ix.Projects))
		return nil
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	fmt.Fprintf(out, "Watching %s (press Ctrl+C to stop)\n", cfg.OutputDir)
	w := index.NewWatcher(cfg.OutputDir,
		index.WithDebounce(debounce),
		index.WithWatchLogger(logger),
		index.WithOnRebuild(func(ix *index.Index, err error) {
			if err != nil {
				fmt.Fprintf(out, "✗ index rebuild failed: %v\n", err)
				return
			}
			fmt.Fprintf(out, "✓ indexed %d notebook(s)\n", ix.NotebookCount())
		}),
	)
	return w.Run(ctx)
}
