package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eeshansrivastava89/datascienceapps/internal/config"
	"github.com/eeshansrivastava89/datascienceapps/internal/report"
	"github.com/eeshansrivastava89/datascienceapps/internal/summary"
	"github.com/spf13/cobra"
)

// NewShowCmd creates the show command.
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <project/notebook | file.summary.json>",
		Short: "Print a published or recorded summary",
		Long: `Show prints a notebook summary as text, JSON or Markdown.

The argument is either "<project>/<notebook>", read from the output
directory, or the path to a summary file. With --id, a summary is read from
the history database instead.

Examples:
  nbsummary show ab-simulator/funnel
  nbsummary show public/analysis/ab-simulator/funnel.summary.json -m
  nbsummary show --id 42 -j`,
		Args: cobra.MaximumNArgs(1),
		RunE: runShowCmd,
	}

	cmd.Flags().Int64("id", 0, "Summary ID in the history database (see 'compare --list')")
	addReportFlags(cmd)

	return cmd
}

// runShowCmd executes the show command.
func runShowCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyReportFlags(cmd, cfg); err != nil {
		return err
	}
	setupLogger(cfg.Verbose)

	id, err := cmd.Flags().GetInt64("id")
	if err != nil {
		return err
	}

	var s *summary.NotebookSummary
	switch {
	case id > 0:
		db, err := openHistory(cfg, false)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck // read-only use

		s, err = db.GetSummaryByID(cmd.Context(), id)
		if err != nil {
			return err
		}
		if s == nil {
			return fmt.Errorf("summary with ID %d not found", id)
		}
	case len(args) == 1:
		s, err = loadSummaryArg(cfg, args[0])
		if err != nil {
			return err
		}
	default:
		return errors.New("specify <project/notebook>, a summary file or --id")
	}

	return writeReport(cmd, cfg, func(w report.Writer) (int, error) {
		return w.WriteSummary(s)
	})
}

// loadSummaryArg reads the summary named by arg: an existing file, or
// "<project>/<notebook>" below the output directory.
func loadSummaryArg(cfg *config.Config, arg string) (*summary.NotebookSummary, error) {
	if strings.HasSuffix(arg, ".json") {
		if _, err := os.Stat(arg); err == nil {
			return summary.Load(arg)
		}
	}

	projectID, notebookID, err := parseNotebookKey(arg)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(cfg.OutputDir, projectID, notebookID+summary.FileSuffix)
	s, err := summary.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no summary published for %s (looked for %s)", arg, path)
	}
	return s, err
}

// parseNotebookKey splits "<project>/<notebook>".
func parseNotebookKey(key string) (string, string, error) {
	projectID, notebookID, ok := strings.Cut(key, "/")
	if !ok || projectID == "" || notebookID == "" || strings.Contains(notebookID, "/") {
		return "", "", fmt.Errorf("invalid notebook %q (want <project>/<notebook>)", key)
	}
	return projectID, notebookID, nil
}
