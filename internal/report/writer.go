package report

import (
	"io"
	"strconv"
	"time"

	"github.com/eeshansrivastava89/datascienceapps/internal/model"
	"github.com/eeshansrivastava89/datascienceapps/internal/summary"
)

// timeLayout is used for every timestamp shown in text and Markdown output.
const timeLayout = "2006-01-02 15:04:05 MST"

// Writer defines the interface for report output.
// Each method returns the number of bytes written and any error encountered.
type Writer interface {
	// WriteSummary outputs a single notebook summary.
	WriteSummary(s *summary.NotebookSummary) (int, error)

	// WriteComparison outputs the differences between two summaries.
	WriteComparison(c *summary.Comparison) (int, error)

	// WriteRunReport outputs the outcome of a batch of notebook runs.
	WriteRunReport(r *model.RunReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteSummary outputs the summary to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) WriteSummary(s *summary.NotebookSummary) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSummary(s) })
}

// WriteComparison outputs the comparison to all configured Writers.
func (m *MultiWriter) WriteComparison(c *summary.Comparison) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteComparison(c) })
}

// WriteRunReport outputs the run report to all configured Writers.
func (m *MultiWriter) WriteRunReport(r *model.RunReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteRunReport(r) })
}

// each calls write for every writer and sums the bytes written.
func (m *MultiWriter) each(write func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := write(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// formatTime formats t for display, or "-" when it is zero.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}

// formatDuration rounds d for display.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}

// formatDelta renders a change as "+1.2%" style text, including the
// percentage when it is known.
func formatDelta(c summary.MetricChange) string {
	delta := c.Format(c.Delta)
	if c.Delta > 0 {
		delta = "+" + delta
	}
	if c.PercentChange == nil {
		return delta
	}
	pct := strconv.FormatFloat(*c.PercentChange, 'f', 1, 64) + "%"
	if *c.PercentChange > 0 {
		pct = "+" + pct
	}
	return delta + " (" + pct + ")"
}

// changeValue formats an optional value, using "-" when it is absent.
func changeValue(c summary.MetricChange, v *float64) string {
	if v == nil {
		return "-"
	}
	return c.Format(*v)
}

// shortHash shortens a source fingerprint for display.
func shortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}

// notStarted is shown in place of runs that never started.
const notStarted = "(not started)"

// runName returns the notebook key of a run, or notStarted for nil runs.
func runName(run *model.Run) string {
	if run == nil {
		return notStarted
	}
	return run.Notebook.Key()
}
