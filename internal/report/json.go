package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/eeshansrivastava89/datascienceapps/internal/model"
	"github.com/eeshansrivastava89/datascienceapps/internal/summary"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is stamped into run reports.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion sets the tool version recorded in run reports.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteSummary outputs the summary in the same shape as the summary file.
func (w *JSONWriter) WriteSummary(s *summary.NotebookSummary) (int, error) {
	if s == nil {
		return 0, summary.ErrNilSummary
	}
	return w.writeJSON(s)
}

// WriteComparison outputs the comparison.
func (w *JSONWriter) WriteComparison(c *summary.Comparison) (int, error) {
	return w.writeJSON(c)
}

// WriteRunReport outputs the run report wrapped with counts and version.
func (w *JSONWriter) WriteRunReport(r *model.RunReport) (int, error) {
	return w.writeJSON(NewJSONRunReport(r, w.version))
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// JSONRunReport is the JSON document for a batch run. CI jobs read Counts
// instead of walking Runs.
type JSONRunReport struct {
	// Version is the nbsummary version that ran the batch.
	Version string `json:"version,omitempty"`

	Started    time.Time       `json:"started"`
	Finished   time.Time       `json:"finished"`
	DurationMS int64           `json:"duration_ms"`
	Counts     model.RunCounts `json:"counts"`

	// Runs omits notebooks that never started.
	Runs []*model.Run `json:"runs"`
}

// NewJSONRunReport creates the JSON document for r.
func NewJSONRunReport(r *model.RunReport, version string) *JSONRunReport {
	runs := make([]*model.Run, 0, len(r.Runs))
	for _, run := range r.Runs {
		if run != nil {
			runs = append(runs, run)
		}
	}

	return &JSONRunReport{
		Version:    version,
		Started:    r.Started,
		Finished:   r.Finished,
		DurationMS: r.Duration().Milliseconds(),
		Counts:     r.Counts(),
		Runs:       runs,
	}
}
