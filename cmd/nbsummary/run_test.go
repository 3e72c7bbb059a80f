package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eeshansrivastava89/datascienceapps/internal/config"
	"github.com/eeshansrivastava89/datascienceapps/internal/database"
	"github.com/eeshansrivastava89/datascienceapps/internal/index"
	"github.com/eeshansrivastava89/datascienceapps/internal/model"
	"github.com/eeshansrivastava89/datascienceapps/internal/notebook"
	"github.com/eeshansrivastava89/datascienceapps/internal/report"
	"github.com/eeshansrivastava89/datascienceapps/internal/summary"
)

const runTestNotebook = `{
  "cells": [
    {"cell_type": "markdown", "metadata": {}, "source": ["# Funnel Analysis\n"]},
    {"cell_type": "code", "metadata": {"tags": ["parameters"]}, "source": ["days = 30"]},
    {"cell_type": "code", "metadata": {}, "source": ["print(days)"]}
  ],
  "metadata": {"kernelspec": {"name": "python3", "language": "python"}},
  "nbformat": 4,
  "nbformat_minor": 5
}`

// fakeTools writes papermill, jupyter and pip stand-ins into dir and returns
// the configuration lines selecting them. papermill fails for notebooks
// whose path contains "broken"; pip records that it ran in pip.log.
func fakeTools(t *testing.T, dir string) string {
	t.Helper()

	bin := filepath.Join(dir, "bin")
	papermill := writeScript(t, bin, "papermill", `case "$1" in
  *broken*) echo "PapermillExecutionError: boom" >&2; exit 1 ;;
esac
cp "$1" "$2"
`)
	jupyter := writeScript(t, bin, "jupyter", `out=""
dir=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift ;;
    --output-dir) dir="$2"; shift ;;
  esac
  shift
done
printf '<html><head><title>Funnel Analysis</title></head><body></body></html>' > "$dir/$out.html"
`)
	pip := writeScript(t, bin, "pip", fmt.Sprintf("echo \"$@\" >> %q\n", filepath.Join(dir, "pip.log")))

	return fmt.Sprintf("papermill: %q\njupyter: %q\npip: %q\nrequired_env: []\n", papermill, jupyter, pip)
}

// addNotebook writes a notebook below the tree's notebooks directory.
func (tree testTree) addNotebook(t *testing.T, rel string) {
	t.Helper()
	writeTestFile(t, filepath.Join(tree.notebooksDir, filepath.FromSlash(rel)), runTestNotebook)
}

func TestNewRunCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRunCmd()
	if cmd.Use != "run [folder | notebook.ipynb]" {
		t.Errorf("unexpected Use: %q", cmd.Use)
	}

	flagsWithShort := map[string]string{
		"batch":        "b",
		"timeout":      "t",
		"json":         "j",
		"markdown":     "m",
		"output":       "o",
		"skip-install": "",
		"no-history":   "",
		"no-index":     "",
		"step-summary": "",
	}
	for name, shorthand := range flagsWithShort {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			t.Errorf("expected flag %q to exist", name)
			continue
		}
		if f.Shorthand != shorthand {
			t.Errorf("flag %q: expected shorthand %q, got %q", name, shorthand, f.Shorthand)
		}
	}
}

func TestRunCmd(t *testing.T) {
	t.Parallel()

	t.Run("publishes pages summaries and index", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		tree := newTestTree(t, fakeTools(t, dir))
		tree.addNotebook(t, "ab-simulator/funnel.ipynb")
		tree.addNotebook(t, "ab-simulator/broken.ipynb")
		tree.addNotebook(t, "ab-simulator/.ipynb_checkpoints/funnel-checkpoint.ipynb")

		stdout, stderr, err := tree.execute(t, "run", "--skip-install", "-j")
		if !errors.Is(err, errNotebooksFailed) {
			t.Fatalf("expected errNotebooksFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "1 notebooks failed") {
			t.Errorf("unexpected error message %q", err.Error())
		}

		var doc report.JSONRunReport
		if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
			t.Fatalf("stdout is not a JSON run report: %v\n%s", err, stdout)
		}
		if doc.Counts.Succeeded != 1 || doc.Counts.Failed != 1 {
			t.Errorf("unexpected counts %+v", doc.Counts)
		}
		if len(doc.Runs) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(doc.Runs))
		}
		// Discovery order: broken before funnel.
		if doc.Runs[0].Notebook.NotebookID != "broken" || doc.Runs[0].Status != model.StatusFailed {
			t.Errorf("unexpected first run %+v", doc.Runs[0])
		}
		if doc.Runs[1].Notebook.NotebookID != "funnel" || doc.Runs[1].Status != model.StatusSucceeded {
			t.Errorf("unexpected second run %+v", doc.Runs[1])
		}

		for _, want := range []string{"✗ ab-simulator/broken", "✓ ab-simulator/funnel", "PapermillExecutionError"} {
			if !strings.Contains(stderr, want) {
				t.Errorf("expected progress output to contain %q, got:\n%s", want, stderr)
			}
		}

		htmlPath := filepath.Join(tree.outputDir, "ab-simulator", "funnel.html")
		if _, err := os.Stat(htmlPath); err != nil {
			t.Errorf("expected rendered page: %v", err)
		}
		s, err := summary.Load(filepath.Join(tree.outputDir, "ab-simulator", "funnel"+summary.FileSuffix))
		if err != nil {
			t.Fatalf("expected published summary: %v", err)
		}
		if s.Title != "Funnel Analysis" {
			t.Errorf("expected title from the page, got %q", s.Title)
		}
		if _, err := os.Stat(filepath.Join(tree.outputDir, "ab-simulator", "broken"+summary.FileSuffix)); !os.IsNotExist(err) {
			t.Errorf("expected no summary for the failed notebook, got %v", err)
		}

		data, err := os.ReadFile(filepath.Join(tree.outputDir, index.FileName))
		if err != nil {
			t.Fatalf("expected index: %v", err)
		}
		var ix index.Index
		if err := json.Unmarshal(data, &ix); err != nil {
			t.Fatalf("invalid index: %v", err)
		}
		if ix.NotebookCount() != 1 {
			t.Errorf("expected 1 indexed notebook, got %d", ix.NotebookCount())
		}

		db, err := database.Open(tree.dbDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open history: %v", err)
		}
		defer db.Close()

		ctx := context.Background()
		runs, err := db.ListRuns(ctx, 0)
		if err != nil {
			t.Fatalf("ListRuns failed: %v", err)
		}
		if len(runs) != 2 {
			t.Errorf("expected 2 recorded runs, got %d", len(runs))
		}
		latest, err := db.LatestSummary(ctx, "ab-simulator", "funnel")
		if err != nil || latest == nil {
			t.Fatalf("expected recorded summary, got %v, %v", latest, err)
		}
	})

	t.Run("runs one project without history or index", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		tree := newTestTree(t, fakeTools(t, dir))
		tree.addNotebook(t, "ab-simulator/funnel.ipynb")
		tree.addNotebook(t, "memory-game/completion-times.ipynb")

		_, stderr, err := tree.execute(t, "run", "memory-game", "--skip-install", "--no-history", "--no-index")
		if err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, stderr)
		}
		if !strings.Contains(stderr, "All done") {
			t.Errorf("expected 'All done', got:\n%s", stderr)
		}

		if _, err := os.Stat(filepath.Join(tree.outputDir, "memory-game", "completion-times.html")); err != nil {
			t.Errorf("expected memory-game page: %v", err)
		}
		if _, err := os.Stat(filepath.Join(tree.outputDir, "ab-simulator")); !os.IsNotExist(err) {
			t.Errorf("expected ab-simulator not to run, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(tree.outputDir, index.FileName)); !os.IsNotExist(err) {
			t.Errorf("expected no index, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(tree.dbDir, database.FileName)); !os.IsNotExist(err) {
			t.Errorf("expected no history database, got %v", err)
		}
	})

	t.Run("skips projects marked skip", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		tree := newTestTree(t, fakeTools(t, dir)+"projects:\n  memory-game:\n    skip: true\n")
		tree.addNotebook(t, "ab-simulator/funnel.ipynb")
		tree.addNotebook(t, "memory-game/completion-times.ipynb")

		stdout, _, err := tree.execute(t, "run", "--skip-install", "--no-history", "-j")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var doc report.JSONRunReport
		if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
			t.Fatalf("invalid JSON report: %v", err)
		}
		if len(doc.Runs) != 1 || doc.Runs[0].Notebook.ProjectID != "ab-simulator" {
			t.Errorf("expected only ab-simulator to run, got %+v", doc.Runs)
		}
	})

	t.Run("installs requirements", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		tree := newTestTree(t, fakeTools(t, dir))
		writeTestFile(t, filepath.Join(tree.dir, "requirements.txt"), "papermill\n")
		tree.addNotebook(t, "ab-simulator/funnel.ipynb")

		if _, stderr, err := tree.execute(t, "run", "--no-history"); err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, stderr)
		}

		log, err := os.ReadFile(filepath.Join(dir, "pip.log"))
		if err != nil {
			t.Fatalf("expected pip to run: %v", err)
		}
		if !strings.Contains(string(log), "install -q -r") {
			t.Errorf("unexpected pip arguments %q", log)
		}
	})

	t.Run("missing requirements file fails", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		tree := newTestTree(t, fakeTools(t, dir))
		tree.addNotebook(t, "ab-simulator/funnel.ipynb")

		_, _, err := tree.execute(t, "run", "--no-history")
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected missing requirements error, got %v", err)
		}
	})

	t.Run("no notebooks found", func(t *testing.T) {
		t.Parallel()

		tree := newTestTree(t, fakeTools(t, t.TempDir()))

		_, stderr, err := tree.execute(t, "run", "--skip-install")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stderr, "No notebooks found") {
			t.Errorf("expected 'No notebooks found', got:\n%s", stderr)
		}

		if err := os.MkdirAll(filepath.Join(tree.notebooksDir, "empty-project"), 0o750); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		_, stderr, err = tree.execute(t, "run", "empty-project", "--skip-install")
		if err != nil {
			t.Fatalf("unexpected error for empty folder: %v", err)
		}
		if !strings.Contains(stderr, "No notebooks found") {
			t.Errorf("expected 'No notebooks found', got:\n%s", stderr)
		}
	})

	t.Run("unknown target fails", func(t *testing.T) {
		t.Parallel()

		tree := newTestTree(t, fakeTools(t, t.TempDir()))

		_, _, err := tree.execute(t, "run", "no-such-project", "--skip-install")
		if !errors.Is(err, notebook.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if !strings.Contains(err.Error(), "no-such-project") {
			t.Errorf("expected target in error, got %v", err)
		}
	})

	t.Run("missing environment stops before running", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		tools := strings.Replace(fakeTools(t, dir), "required_env: []",
			"required_env:\n  - NBSUMMARY_TEST_SURELY_UNSET_VAR", 1)
		tree := newTestTree(t, tools)
		tree.addNotebook(t, "ab-simulator/funnel.ipynb")

		_, stderr, err := tree.execute(t, "run", "--skip-install")
		if !errors.Is(err, config.ErrMissingEnv) {
			t.Fatalf("expected ErrMissingEnv, got %v", err)
		}
		if !strings.Contains(stderr, "✗ NBSUMMARY_TEST_SURELY_UNSET_VAR not set") {
			t.Errorf("expected env status line, got:\n%s", stderr)
		}
		if _, err := os.Stat(filepath.Join(tree.outputDir, "ab-simulator")); !os.IsNotExist(err) {
			t.Errorf("expected nothing to run, got %v", err)
		}
	})

	t.Run("env file satisfies required variables", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		name := fmt.Sprintf("NBSUMMARY_TEST_ENV_%d", time.Now().UnixNano())
		tools := strings.Replace(fakeTools(t, dir), "required_env: []", "required_env:\n  - "+name, 1)
		tree := newTestTree(t, tools)
		writeTestFile(t, filepath.Join(tree.dir, ".env"), name+"=from-env-file\n")
		tree.addNotebook(t, "ab-simulator/funnel.ipynb")
		t.Cleanup(func() { os.Unsetenv(name) }) //nolint:errcheck // best effort

		_, stderr, err := tree.execute(t, "run", "--skip-install", "--no-history")
		if err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, stderr)
		}
		if !strings.Contains(stderr, "✓ "+name) {
			t.Errorf("expected env status line, got:\n%s", stderr)
		}
	})

	t.Run("appends step summary and writes report file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		tree := newTestTree(t, fakeTools(t, dir))
		tree.addNotebook(t, "ab-simulator/funnel.ipynb")

		stepSummary := filepath.Join(dir, "step-summary.md")
		writeTestFile(t, stepSummary, "previous step\n")
		reportPath := filepath.Join(dir, "reports", "run.txt")

		stdout, _, err := tree.execute(t, "run", "--skip-install", "--no-history",
			"--step-summary", stepSummary, "-o", reportPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout != "" {
			t.Errorf("expected nothing on stdout with -o, got %q", stdout)
		}

		md, err := os.ReadFile(stepSummary)
		if err != nil {
			t.Fatalf("failed to read step summary: %v", err)
		}
		if !strings.HasPrefix(string(md), "previous step\n") {
			t.Error("expected step summary to be appended to")
		}
		if !strings.Contains(string(md), "# Notebook Run Report") {
			t.Errorf("expected Markdown report, got:\n%s", md)
		}

		text, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.Contains(string(text), "ab-simulator/funnel") {
			t.Errorf("expected run in text report, got:\n%s", text)
		}
	})

	t.Run("conflicting formats", func(t *testing.T) {
		t.Parallel()

		tree := newTestTree(t, "required_env: []")
		_, _, err := tree.execute(t, "run", "-j", "-m")
		if !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})

	t.Run("invalid batch size", func(t *testing.T) {
		t.Parallel()

		tree := newTestTree(t, "required_env: []")
		_, _, err := tree.execute(t, "run", "-b", "0")
		if !errors.Is(err, config.ErrInvalidBatchSize) {
			t.Errorf("expected ErrInvalidBatchSize, got %v", err)
		}
	})
}

func TestApplyRunFlags(t *testing.T) {
	t.Parallel()

	t.Run("flags override only when set", func(t *testing.T) {
		t.Parallel()

		cmd := NewRunCmd()
		if err := cmd.ParseFlags([]string{"--no-history", "--timeout", "5m"}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg := config.NewConfig()
		cfg.BatchSize = 4
		opts, err := applyRunFlags(cmd, cfg, []string{"ab-simulator"})
		if err != nil {
			t.Fatalf("applyRunFlags failed: %v", err)
		}
		if cfg.BatchSize != 4 {
			t.Errorf("expected config batch size to be kept, got %d", cfg.BatchSize)
		}
		if cfg.Timeout != 5*time.Minute || !opts.timeoutOverride {
			t.Errorf("expected timeout override, got %v (%v)", cfg.Timeout, opts.timeoutOverride)
		}
		if cfg.SaveToDB {
			t.Error("expected SaveToDB to be false")
		}
		if opts.target != "ab-simulator" {
			t.Errorf("unexpected target %q", opts.target)
		}
	})

	t.Run("pipeline factory applies project settings", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Projects = &config.File{Projects: map[string]config.ProjectConfig{
			"ab-simulator": {Parameters: map[string]any{"days": 7}},
		}}

		factory := newPipelineFactory(cfg, runOptions{}, nil, nil, slog.Default())
		p := factory(model.Notebook{ProjectID: "ab-simulator", NotebookID: "funnel"})
		want := []string{"execute", "convert", "inspect", "summary"}
		if got := p.StepNames(); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("expected steps %v, got %v", want, got)
		}
	})
}
