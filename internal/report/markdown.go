package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/eeshansrivastava89/datascienceapps/internal/model"
	"github.com/eeshansrivastava89/datascienceapps/internal/summary"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format, suitable for pull
// request comments and the CI job summary.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(s *summary.NotebookSummary) (int, error) {
	if s == nil {
		return 0, summary.ErrNilSummary
	}

	md := markdown.NewMarkdown(w.output)

	md.H1(s.Title)
	md.PlainText("")
	if s.Description != "" {
		md.PlainText(s.Description)
		md.PlainText("")
	}

	rows := [][]string{
		{"Notebook", "`" + s.Key() + "`"},
		{"Generated", formatTime(s.GeneratedAt)},
	}
	if s.HTMLPath != "" {
		rows = append(rows, []string{"Page", "[" + s.HTMLPath + "](" + s.HTMLPath + ")"})
	}
	if s.SourceHash != "" {
		rows = append(rows, []string{"Source", "`" + shortHash(s.SourceHash) + "`"})
	}
	if len(s.Tags) > 0 {
		rows = append(rows, []string{"Tags", strings.Join(s.Tags, ", ")})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	md.H2("Metrics")
	md.PlainText("")
	if len(s.Metrics) == 0 {
		md.PlainText("No metrics reported.")
	} else {
		metricRows := make([][]string, len(s.Metrics))
		for i, m := range s.Metrics {
			metricRows[i] = []string{m.DisplayLabel(), m.Formatted(), orDash(m.Description)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Metric", "Value", "Description"},
			Rows:   metricRows,
		})
	}
	md.PlainText("")

	if len(s.Highlights) > 0 {
		md.H2("Highlights")
		md.PlainText("")
		md.BulletList(s.Highlights...)
		md.PlainText("")
	}

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteComparison outputs the comparison in Markdown format.
func (w *MarkdownWriter) WriteComparison(c *summary.Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)

	title := c.Title
	if title == "" {
		title = c.ProjectID + "/" + c.NotebookID
	}
	md.H1("Summary Comparison: " + title)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"", "Previous", "Current"},
		Rows: [][]string{
			{"Generated", formatTime(c.Previous.GeneratedAt), formatTime(c.Current.GeneratedAt)},
			{"Metrics", strconv.Itoa(c.Previous.MetricCount), strconv.Itoa(c.Current.MetricCount)},
			{"Source", "`" + orDash(shortHash(c.Previous.SourceHash)) + "`", "`" + orDash(shortHash(c.Current.SourceHash)) + "`"},
		},
	})
	md.PlainText("")

	switch {
	case c.Direction == summary.DirectionUnchanged:
		md.Note("No metric or highlight changes.")
	case c.SourceChanged:
		md.Importantf("The notebook source changed. %d metric(s) changed, %d added, %d removed.",
			c.CountByKind(summary.ChangeChanged), c.CountByKind(summary.ChangeAdded), c.CountByKind(summary.ChangeRemoved))
	default:
		md.Warningf("Metrics changed without a source change. %d metric(s) changed, %d added, %d removed.",
			c.CountByKind(summary.ChangeChanged), c.CountByKind(summary.ChangeAdded), c.CountByKind(summary.ChangeRemoved))
	}
	md.PlainText("")

	md.H2("Metrics")
	md.PlainText("")
	rows := make([][]string, 0, len(c.Changes))
	for _, ch := range c.Changes {
		change := "-"
		if ch.Kind == summary.ChangeChanged {
			change = formatDelta(ch)
		}
		rows = append(rows, []string{
			ch.Label,
			changeValue(ch, ch.Previous),
			changeValue(ch, ch.Current),
			change,
			string(ch.Kind),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(c.AddedHighlights) > 0 || len(c.RemovedHighlights) > 0 {
		md.H2("Highlights")
		md.PlainText("")
		items := make([]string, 0, len(c.AddedHighlights)+len(c.RemovedHighlights))
		for _, h := range c.AddedHighlights {
			items = append(items, "➕ "+h)
		}
		for _, h := range c.RemovedHighlights {
			items = append(items, "➖ "+h)
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteRunReport outputs the run report in Markdown format.
func (w *MarkdownWriter) WriteRunReport(r *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	counts := r.Counts()

	md.H1("Notebook Run Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", formatTime(r.Started)},
			{"Duration", formatDuration(r.Duration())},
			{"✅ Succeeded", strconv.Itoa(counts.Succeeded)},
			{"❌ Failed", strconv.Itoa(counts.Failed)},
			{"⏹️ Cancelled", strconv.Itoa(counts.Cancelled)},
			{"**Total**", "**" + strconv.Itoa(counts.Total()) + "**"},
		},
	})
	md.PlainText("")

	if counts.Total() > 0 {
		w.writePieChart(md, counts)
	}
	w.writeAlert(md, counts)

	md.H2("Runs")
	md.PlainText("")
	if len(r.Runs) == 0 {
		md.PlainText("No notebooks found.")
		md.PlainText("")
	} else {
		w.writeRunsTable(md, r.Runs)
	}

	if failed := r.Failed(); len(failed) > 0 {
		md.H2("Failures")
		md.PlainText("")
		for _, run := range failed {
			md.Details(run.Notebook.Key(), orDash(run.ErrorMessage))
		}
		md.PlainText("")
	}

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writePieChart writes a mermaid pie chart of run outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts model.RunCounts) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Run Outcomes"),
		piechart.WithShowData(true),
	)

	if counts.Succeeded > 0 {
		chart.LabelAndIntValue("Succeeded", uint64(counts.Succeeded))
	}
	if counts.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(counts.Failed))
	}
	if counts.Cancelled > 0 {
		chart.LabelAndIntValue("Cancelled", uint64(counts.Cancelled))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert summarizing the batch outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, counts model.RunCounts) {
	switch {
	case counts.Failed > 0:
		md.Cautionf("%d of %d notebook(s) failed. Their pages and summaries were not updated.",
			counts.Failed, counts.Total())
	case counts.Cancelled > 0:
		md.Warningf("%d notebook(s) were cancelled or timed out.", counts.Cancelled)
	case counts.Total() == 0:
		md.Note("No notebooks were run.")
	default:
		md.Tip("All notebooks ran successfully.")
	}
	md.PlainText("")
}

// writeRunsTable writes one row per run.
func (w *MarkdownWriter) writeRunsTable(md *markdown.Markdown, runs []*model.Run) {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		if run == nil {
			rows = append(rows, []string{notStarted, "⏹️ cancelled", "-", "-", "-"})
			continue
		}

		metrics := "-"
		if run.Summary != nil {
			metrics = strconv.Itoa(len(run.Summary.Metrics))
		}
		rows = append(rows, []string{
			"`" + run.Notebook.Key() + "`",
			statusEmoji(run.Status) + " " + run.Status.String(),
			formatDuration(run.Duration()),
			metrics,
			strconv.Itoa(run.ErrorOutputs),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Notebook", "Status", "Duration", "Metrics", "Stderr Outputs"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by nbsummary*")
}

// statusEmoji returns the emoji shown next to a run status.
func statusEmoji(s model.RunStatus) string {
	switch s {
	case model.StatusSucceeded:
		return "✅"
	case model.StatusFailed:
		return "❌"
	case model.StatusCancelled:
		return "⏹️"
	default:
		return "⏳"
	}
}

// orDash returns s, or "-" when it is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
