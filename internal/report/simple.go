package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/eeshansrivastava89/datascienceapps/internal/model"
	"github.com/eeshansrivastava89/datascienceapps/internal/summary"
)

// lineWidth is the width of the rules framing each section.
const lineWidth = 70

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showUnchanged lists unchanged metrics in comparisons.
	showUnchanged bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowUnchanged configures the writer to list unchanged metrics.
func WithShowUnchanged(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showUnchanged = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteSummary outputs the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(s *summary.NotebookSummary) (int, error) {
	if s == nil {
		return 0, summary.ErrNilSummary
	}

	var sb strings.Builder

	writeBanner(&sb, s.Title)
	fmt.Fprintf(&sb, "Notebook:   %s\n", s.Key())
	fmt.Fprintf(&sb, "Generated:  %s\n", formatTime(s.GeneratedAt))
	if s.HTMLPath != "" {
		fmt.Fprintf(&sb, "Page:       %s\n", s.HTMLPath)
	}
	if w.verbose {
		if s.SourcePath != "" {
			fmt.Fprintf(&sb, "Source:     %s\n", s.SourcePath)
		}
		if s.SourceHash != "" {
			fmt.Fprintf(&sb, "Hash:       %s\n", shortHash(s.SourceHash))
		}
		if len(s.Tags) > 0 {
			fmt.Fprintf(&sb, "Tags:       %s\n", strings.Join(s.Tags, ", "))
		}
	}
	sb.WriteString("\n")

	if s.Description != "" {
		sb.WriteString(s.Description)
		sb.WriteString("\n\n")
	}

	writeSection(&sb, "METRICS")
	if len(s.Metrics) == 0 {
		sb.WriteString("  No metrics\n")
	}
	for _, m := range s.Metrics {
		fmt.Fprintf(&sb, "  %-32s %s\n", m.DisplayLabel()+":", m.Formatted())
		if w.verbose && m.Description != "" {
			fmt.Fprintf(&sb, "    %s\n", m.Description)
		}
	}
	sb.WriteString("\n")

	if len(s.Highlights) > 0 {
		writeSection(&sb, "HIGHLIGHTS")
		for _, h := range s.Highlights {
			fmt.Fprintf(&sb, "  * %s\n", h)
		}
		sb.WriteString("\n")
	}

	writeRule(&sb, "=")
	return w.output.Write([]byte(sb.String()))
}

// WriteComparison outputs the comparison in human-readable format.
func (w *SimpleWriter) WriteComparison(c *summary.Comparison) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "SUMMARY COMPARISON")
	fmt.Fprintf(&sb, "Notebook:   %s/%s\n", c.ProjectID, c.NotebookID)
	if c.Title != "" {
		fmt.Fprintf(&sb, "Title:      %s\n", c.Title)
	}
	fmt.Fprintf(&sb, "Previous:   %s (%d metrics)\n", formatTime(c.Previous.GeneratedAt), c.Previous.MetricCount)
	fmt.Fprintf(&sb, "Current:    %s (%d metrics)\n", formatTime(c.Current.GeneratedAt), c.Current.MetricCount)
	if c.SourceChanged {
		fmt.Fprintf(&sb, "Source:     changed (%s -> %s)\n", shortHash(c.Previous.SourceHash), shortHash(c.Current.SourceHash))
	}
	sb.WriteString("\n")

	writeSection(&sb, "METRIC CHANGES")
	if c.Direction == summary.DirectionUnchanged {
		sb.WriteString("  No changes\n")
	}
	for _, ch := range c.Changes {
		switch ch.Kind {
		case summary.ChangeAdded:
			fmt.Fprintf(&sb, "  [+] %s: %s\n", ch.Label, changeValue(ch, ch.Current))
		case summary.ChangeRemoved:
			fmt.Fprintf(&sb, "  [-] %s: %s\n", ch.Label, changeValue(ch, ch.Previous))
		case summary.ChangeChanged:
			fmt.Fprintf(&sb, "  [~] %s: %s -> %s  %s\n",
				ch.Label, changeValue(ch, ch.Previous), changeValue(ch, ch.Current), formatDelta(ch))
		case summary.ChangeUnchanged:
			if w.showUnchanged {
				fmt.Fprintf(&sb, "  [=] %s: %s\n", ch.Label, changeValue(ch, ch.Current))
			}
		}
	}
	sb.WriteString("\n")

	if len(c.AddedHighlights) > 0 || len(c.RemovedHighlights) > 0 {
		writeSection(&sb, "HIGHLIGHTS")
		for _, h := range c.AddedHighlights {
			fmt.Fprintf(&sb, "  [+] %s\n", h)
		}
		for _, h := range c.RemovedHighlights {
			fmt.Fprintf(&sb, "  [-] %s\n", h)
		}
		sb.WriteString("\n")
	}

	writeRule(&sb, "=")
	return w.output.Write([]byte(sb.String()))
}

// WriteRunReport outputs the run report in human-readable format.
func (w *SimpleWriter) WriteRunReport(r *model.RunReport) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "NOTEBOOK RUN REPORT")
	counts := r.Counts()
	fmt.Fprintf(&sb, "Started:    %s\n", formatTime(r.Started))
	fmt.Fprintf(&sb, "Duration:   %s\n", formatDuration(r.Duration()))
	fmt.Fprintf(&sb, "Notebooks:  %d (%d succeeded, %d failed, %d cancelled)\n",
		counts.Total(), counts.Succeeded, counts.Failed, counts.Cancelled)
	sb.WriteString("\n")

	writeSection(&sb, "RUNS")
	if len(r.Runs) == 0 {
		sb.WriteString("  No notebooks found\n")
	}
	for _, run := range r.Runs {
		w.writeRun(&sb, run)
	}
	sb.WriteString("\n")

	if failed := r.Failed(); len(failed) > 0 {
		writeSection(&sb, "FAILURES")
		for _, run := range failed {
			fmt.Fprintf(&sb, "  * %s\n", runName(run))
			if run != nil && run.ErrorMessage != "" {
				fmt.Fprintf(&sb, "    %s\n", run.ErrorMessage)
			}
		}
		sb.WriteString("\n")
	}

	writeRule(&sb, "=")
	return w.output.Write([]byte(sb.String()))
}

// writeRun writes one line per run, plus details when verbose.
func (w *SimpleWriter) writeRun(sb *strings.Builder, run *model.Run) {
	if run == nil {
		fmt.Fprintf(sb, "  [%-4s] %s\n", "SKIP", notStarted)
		return
	}

	fmt.Fprintf(sb, "  [%-4s] %-40s %8s\n", statusIndicator(run.Status), run.Notebook.Key(), formatDuration(run.Duration()))
	if !w.verbose {
		return
	}
	if run.HTMLPath != "" {
		fmt.Fprintf(sb, "         page:    %s\n", run.HTMLPath)
	}
	if run.SummaryPath != "" {
		fmt.Fprintf(sb, "         summary: %s\n", run.SummaryPath)
	}
	if run.ErrorOutputs > 0 {
		fmt.Fprintf(sb, "         stderr:  %d output(s)\n", run.ErrorOutputs)
	}
}

// statusIndicator returns a short tag for the run status.
func statusIndicator(s model.RunStatus) string {
	switch s {
	case model.StatusSucceeded:
		return "OK"
	case model.StatusFailed:
		return "FAIL"
	case model.StatusCancelled:
		return "STOP"
	default:
		return "..."
	}
}

// writeBanner writes a centered title between "=" rules.
func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	writeRule(sb, "=")
	pad := (lineWidth - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	sb.WriteString(strings.Repeat(" ", pad))
	sb.WriteString(title)
	sb.WriteString("\n")
	writeRule(sb, "=")
	sb.WriteString("\n")
}

// writeSection writes a section header between "-" rules.
func writeSection(sb *strings.Builder, title string) {
	writeRule(sb, "-")
	sb.WriteString(title)
	sb.WriteString("\n")
	writeRule(sb, "-")
	sb.WriteString("\n")
}

// writeRule writes a full-width rule.
func writeRule(sb *strings.Builder, char string) {
	sb.WriteString(strings.Repeat(char, lineWidth))
	sb.WriteString("\n")
}
