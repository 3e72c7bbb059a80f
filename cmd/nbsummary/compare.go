package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/eeshansrivastava89/datascienceapps/internal/config"
	"github.com/eeshansrivastava89/datascienceapps/internal/database"
	"github.com/eeshansrivastava89/datascienceapps/internal/report"
	"github.com/eeshansrivastava89/datascienceapps/internal/summary"
	"github.com/spf13/cobra"
)

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <project/notebook> | compare <previous.json> <current.json>",
		Short: "Compare summaries of a notebook across runs",
		Long: `Compare shows how the metrics and highlights of a notebook changed.

With a "<project>/<notebook>" argument, the two most recent summaries in the
history database are compared. Use --with-id to compare the latest summary
with a specific earlier one. With two summary files, the files are compared
directly and the database is not used.

Examples:
  # Compare the latest two summaries of a notebook
  nbsummary compare ab-simulator/funnel

  # Compare with a specific summary
  nbsummary compare --with-id 12 ab-simulator/funnel

  # List notebooks with recorded summaries
  nbsummary compare --list-notebooks

  # List the summary history of a notebook
  nbsummary compare --list ab-simulator/funnel

  # Compare two summary files as Markdown
  nbsummary compare old.summary.json new.summary.json -m`,
		Args: cobra.RangeArgs(0, 2),
		RunE: runCompareCmd,
	}

	cmd.Flags().Int64("with-id", 0, "Compare the latest summary with this summary ID")
	cmd.Flags().Bool("list", false, "List the summary history of the notebook")
	cmd.Flags().Bool("list-notebooks", false, "List notebooks with recorded summaries")
	addReportFlags(cmd)

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyReportFlags(cmd, cfg); err != nil {
		return err
	}
	setupLogger(cfg.Verbose)

	flags := cmd.Flags()
	withID, err := flags.GetInt64("with-id")
	if err != nil {
		return err
	}
	list, err := flags.GetBool("list")
	if err != nil {
		return err
	}
	listNotebooks, err := flags.GetBool("list-notebooks")
	if err != nil {
		return err
	}

	if len(args) == 2 {
		return compareFiles(cmd, cfg, args[0], args[1])
	}

	if !listNotebooks && len(args) == 0 {
		return errors.New("specify <project/notebook>, two summary files or --list-notebooks")
	}

	db, err := openHistory(cfg, false)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-only use

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if listNotebooks {
		return listRecordedNotebooks(ctx, out, db)
	}

	projectID, notebookID, err := parseNotebookKey(args[0])
	if err != nil {
		return err
	}

	if list {
		return listSummaryHistory(ctx, out, db, projectID, notebookID)
	}

	return compareHistory(cmd, cfg, db, projectID, notebookID, withID)
}

// compareFiles compares two summary files.
func compareFiles(cmd *cobra.Command, cfg *config.Config, previousPath, currentPath string) error {
	previous, err := summary.Load(previousPath)
	if err != nil {
		return err
	}
	current, err := summary.Load(currentPath)
	if err != nil {
		return err
	}
	return writeComparison(cmd, cfg, previous, current)
}

// compareHistory compares the latest recorded summary of a notebook with the
// one before it, or with the summary withID.
func compareHistory(cmd *cobra.Command, cfg *config.Config, db *database.HistoryDB, projectID, notebookID string, withID int64) error {
	ctx := cmd.Context()
	key := projectID + "/" + notebookID

	history, err := db.SummaryHistory(ctx, projectID, notebookID)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return fmt.Errorf("no summary history found for %s", key)
	}
	if len(history) < 2 && withID == 0 {
		return fmt.Errorf("at least 2 summaries are required for comparison (found %d)", len(history))
	}

	current, err := db.GetSummaryByID(ctx, history[0].ID)
	if err != nil {
		return err
	}

	previousID := withID
	if previousID == 0 {
		previousID = history[1].ID
	}
	previous, err := db.GetSummaryByID(ctx, previousID)
	if err != nil {
		return err
	}
	if previous == nil {
		return fmt.Errorf("summary with ID %d not found", previousID)
	}
	if previous.Key() != key {
		return fmt.Errorf("summary ID %d belongs to %s, not %s", previousID, previous.Key(), key)
	}

	return writeComparison(cmd, cfg, previous, current)
}

// writeComparison compares two summaries and writes the result.
func writeComparison(cmd *cobra.Command, cfg *config.Config, previous, current *summary.NotebookSummary) error {
	comparison, err := summary.Compare(previous, current)
	if err != nil {
		return err
	}
	return writeReport(cmd, cfg, func(w report.Writer) (int, error) {
		return w.WriteComparison(comparison)
	})
}

// listRecordedNotebooks prints every notebook with stored summaries.
func listRecordedNotebooks(ctx context.Context, out io.Writer, db *database.HistoryDB) error {
	refs, err := db.ListNotebooks(ctx)
	if err != nil {
		return err
	}

	if len(refs) == 0 {
		fmt.Fprintln(out, "No summaries recorded yet.")
		return nil
	}

	fmt.Fprintf(out, "Recorded notebooks (%d):\n\n", len(refs))
	fmt.Fprintf(out, "  %-48s  %9s  %s\n", "NOTEBOOK", "SUMMARIES", "LAST GENERATED")
	for _, ref := range refs {
		fmt.Fprintf(out, "  %-48s  %9d  %s\n",
			ref.Key(), ref.Summaries, ref.LastGenerated.Format("2006-01-02 15:04:05"))
	}

	fmt.Fprintln(out, "\nUse 'nbsummary compare --list <project/notebook>' to see its history.")
	return nil
}

// listSummaryHistory prints the stored summaries of one notebook.
func listSummaryHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, projectID, notebookID string) error {
	history, err := db.SummaryHistory(ctx, projectID, notebookID)
	if err != nil {
		return err
	}

	key := projectID + "/" + notebookID
	if len(history) == 0 {
		fmt.Fprintf(out, "No summaries recorded for %s.\n", key)
		return nil
	}

	fmt.Fprintf(out, "Summary history for %s (%d):\n\n", key, len(history))
	fmt.Fprintf(out, "  %-6s  %-20s  %7s  %-12s  %s\n", "ID", "GENERATED", "METRICS", "SOURCE", "RUN")
	for _, meta := range history {
		source := meta.SourceHash
		if len(source) > 12 {
			source = source[:12]
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %7d  %-12s  %s\n",
			meta.ID,
			meta.GeneratedAt.Format("2006-01-02 15:04:05"),
			meta.MetricCount,
			orDash(source),
			orDash(meta.RunID),
		)
	}

	fmt.Fprintf(out, "\nUse 'nbsummary compare %s' to compare the latest two summaries.\n", key)
	fmt.Fprintf(out, "Use 'nbsummary compare --with-id <id> %s' to compare with a specific summary.\n", key)
	return nil
}

// orDash returns s, or "-" when it is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
