package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/eeshansrivastava89/datascienceapps/internal/config"
	"github.com/eeshansrivastava89/datascienceapps/internal/database"
	"github.com/eeshansrivastava89/datascienceapps/internal/index"
	applog "github.com/eeshansrivastava89/datascienceapps/internal/log"
	"github.com/eeshansrivastava89/datascienceapps/internal/model"
	"github.com/eeshansrivastava89/datascienceapps/internal/notebook"
	"github.com/eeshansrivastava89/datascienceapps/internal/pipeline"
	"github.com/eeshansrivastava89/datascienceapps/internal/report"
	"github.com/spf13/cobra"
)

// errNotebooksFailed is returned when at least one notebook did not succeed,
// so the process exits non-zero.
var errNotebooksFailed = errors.New("notebooks failed")

// runOptions holds the run flags that are not part of Config.
type runOptions struct {
	target          string
	timeoutOverride bool
	noIndex         bool
	stepSummary     string
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [folder | notebook.ipynb]",
		Short: "Execute notebooks, render HTML and publish summaries",
		Long: `Run executes notebooks with papermill, converts them to HTML with nbconvert
and publishes <project>/<notebook>.html and <notebook>.summary.json to the
output directory.

Without an argument every notebook below the notebooks directory is run.
A folder name runs the notebooks of one project, and a path to an .ipynb
file runs that notebook alone.

Before running, variables from the env file are loaded (existing variables
win), the required variables are checked and the requirements file is
installed with pip.

Examples:
  # Run every notebook
  nbsummary run

  # Run the notebooks of one project
  nbsummary run ab-simulator

  # Run two notebooks at a time and write a Markdown report
  nbsummary run -b 2 -m -o report.md

  # Add a report to the GitHub Actions job summary
  nbsummary run --step-summary "$GITHUB_STEP_SUMMARY"`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRunCmd,
	}

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of notebooks to run concurrently")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout per notebook (overrides project timeouts when set)")
	cmd.Flags().Bool("skip-install", false,
		"Do not install the requirements file with pip")
	cmd.Flags().Bool("no-history", false,
		"Do not record runs and summaries in the history database")
	cmd.Flags().Bool("no-index", false,
		"Do not rebuild index.json after the run")
	cmd.Flags().String("step-summary", "",
		"Also append a Markdown report to this file")
	addReportFlags(cmd)

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts, err := applyRunFlags(cmd, cfg, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, redactor := setupSecretLogger(cfg.Verbose)

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return runNotebooks(ctx, cmd, cfg, opts, logger, redactor)
}

// applyRunFlags copies run flags into cfg. Flags only override the
// configuration file when given explicitly.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, args []string) (runOptions, error) {
	var opts runOptions
	if len(args) > 0 {
		opts.target = args[0]
	}

	flags := cmd.Flags()
	var err error

	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return opts, err
		}
	}

	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return opts, err
		}
		opts.timeoutOverride = true
	}

	skipInstall, err := flags.GetBool("skip-install")
	if err != nil {
		return opts, err
	}
	cfg.SkipInstall = cfg.SkipInstall || skipInstall

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return opts, err
	}
	cfg.SaveToDB = !noHistory

	if opts.noIndex, err = flags.GetBool("no-index"); err != nil {
		return opts, err
	}
	if opts.stepSummary, err = flags.GetString("step-summary"); err != nil {
		return opts, err
	}

	return opts, applyReportFlags(cmd, cfg)
}

// runNotebooks prepares the environment, runs the selected notebooks and
// writes the run report. Progress goes to stderr; stdout carries the report.
func runNotebooks(
	ctx context.Context,
	cmd *cobra.Command,
	cfg *config.Config,
	opts runOptions,
	logger *slog.Logger,
	redactor *applog.Redactor,
) error {
	stderr := cmd.ErrOrStderr()

	if names, err := loadEnv(cfg, redactor); err != nil {
		return err
	} else if names != nil {
		logger.Debug("loaded environment file", "path", cfg.EnvFile, "variables", len(names))
	}

	if !printEnvStatus(stderr, cfg) {
		return config.CheckEnv(cfg.RequiredEnv)
	}

	executor := pipeline.NewCommandExecutor(
		pipeline.WithOutput(stderr, stderr),
		pipeline.WithExecutorLogger(logger),
	)

	if !cfg.SkipInstall {
		fmt.Fprintf(stderr, "\nInstalling requirements from %s...\n", cfg.RequirementsFile)
		if err := pipeline.InstallRequirements(ctx, executor, cfg.Pip, cfg.RequirementsFile); err != nil {
			return err
		}
	}

	// An unknown target is an error; an existing folder without notebooks
	// is not.
	notebooks, err := findNotebooks(cfg, opts.target, logger)
	if err != nil {
		return err
	}
	if len(notebooks) == 0 {
		fmt.Fprintln(stderr, "No notebooks found")
		return nil
	}

	var db *database.HistoryDB
	if cfg.SaveToDB {
		db, err = openHistory(cfg, true)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck // nothing to do on shutdown
	}

	factory := newPipelineFactory(cfg, opts, executor, db, logger)

	bp := pipeline.NewBatchProcessor(
		factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	fmt.Fprintf(stderr, "\nRunning %d notebook(s) (concurrency: %d)\n\n", len(notebooks), cfg.BatchSize)

	started := time.Now()
	runs := make([]*model.Run, len(notebooks))

	var mu sync.Mutex
	completed := 0
	batchErr := bp.ProcessBatchWithCallback(ctx, notebooks, func(run *model.Run, i int) {
		mu.Lock()
		defer mu.Unlock()

		runs[i] = run
		completed++

		mark := "✓"
		if !run.Succeeded() {
			mark = "✗"
		}
		fmt.Fprintf(stderr, "[%d/%d] %s %s (%s)\n",
			completed, len(notebooks), mark, run.Notebook.Key(), run.Duration().Round(time.Millisecond))
		if run.ErrorMessage != "" {
			fmt.Fprintf(stderr, "      %s\n", run.ErrorMessage)
		}

		if db != nil {
			// Runs cancelled by a signal are still recorded.
			if err := db.SaveRun(context.WithoutCancel(ctx), run); err != nil {
				logger.Error("failed to save run", "notebook", run.Notebook.Key(), "error", err)
			}
		}
	})

	runReport := model.NewRunReport(runs, started, time.Now())

	err = writeReport(cmd, cfg, func(w report.Writer) (int, error) {
		if opts.stepSummary == "" {
			return w.WriteRunReport(runReport)
		}
		f, err := appendOutput(opts.stepSummary)
		if err != nil {
			return 0, err
		}
		defer f.Close() //nolint:errcheck // append-only summary file
		return report.NewMultiWriter(w, report.NewMarkdownWriter(f)).WriteRunReport(runReport)
	})
	if err != nil {
		return err
	}

	if !opts.noIndex {
		ix, err := index.Write(cfg.OutputDir)
		if err != nil {
			return fmt.Errorf("failed to update index: %w", err)
		}
		logger.Info("index updated", "projects", len(ix.Projects), "notebooks", ix.NotebookCount())
	}

	if batchErr != nil {
		return fmt.Errorf("run interrupted: %w", batchErr)
	}

	fmt.Fprintln(stderr)
	if runReport.HasFailures() {
		counts := runReport.Counts()
		return fmt.Errorf("%d %w", counts.Failed+counts.Cancelled, errNotebooksFailed)
	}
	fmt.Fprintln(stderr, "✓ All done")

	return nil
}

// newPipelineFactory returns the per-notebook pipeline constructor used by
// the batch processor. Project settings are resolved per notebook.
func newPipelineFactory(
	cfg *config.Config,
	opts runOptions,
	executor pipeline.Executor,
	db *database.HistoryDB,
	logger *slog.Logger,
) func(nb model.Notebook) *pipeline.Pipeline {
	return func(nb model.Notebook) *pipeline.Pipeline {
		pipelineOpts := []pipeline.Option{pipeline.WithLogger(logger)}
		if opts.timeoutOverride {
			pipelineOpts = append(pipelineOpts, pipeline.WithTimeout(cfg.Timeout))
		}

		configOpts := []pipeline.DefaultPipelineOption{
			pipeline.ConfigFrom(cfg),
			pipeline.WithPipelineProject(cfg.Project(nb.ProjectID)),
			pipeline.WithPipelineLogger(logger),
		}
		if db != nil {
			configOpts = append(configOpts, pipeline.WithPipelineRecorder(db))
		}

		return pipeline.DefaultPipeline(executor, pipelineOpts, configOpts...)
	}
}

// findNotebooks discovers notebooks for target and drops those of skipped
// projects.
func findNotebooks(cfg *config.Config, target string, logger *slog.Logger) ([]model.Notebook, error) {
	finder, err := notebook.NewFinder(cfg.NotebooksDir, cfg.Exclude)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	found, err := finder.Find(target)
	if err != nil {
		return nil, err
	}

	notebooks := make([]model.Notebook, 0, len(found))
	for _, nb := range found {
		if cfg.Project(nb.ProjectID).Skip {
			logger.Info("skipping notebook of skipped project", "notebook", nb.Key())
			continue
		}
		notebooks = append(notebooks, nb)
	}
	return notebooks, nil
}

// printEnvStatus prints one line per required variable and reports whether
// all of them are set.
func printEnvStatus(w io.Writer, cfg *config.Config) bool {
	if len(cfg.RequiredEnv) == 0 {
		return true
	}

	fmt.Fprintln(w, "Environment:")
	ok := true
	for _, name := range cfg.RequiredEnv {
		if config.CheckEnv([]string{name}) == nil {
			fmt.Fprintf(w, "  ✓ %s\n", name)
			continue
		}
		fmt.Fprintf(w, "  ✗ %s not set\n", name)
		ok = false
	}
	if !ok {
		if _, err := os.Stat(cfg.EnvFile); err != nil {
			fmt.Fprintf(w, "\nCreate %s with the missing variables or export them.\n", cfg.EnvFile)
		}
	}
	return ok
}
