package analytics

import "github.com/eeshansrivastava89/datascienceapps/internal/summary"

// NotebookSummary is the published summary of one analysis notebook.
type NotebookSummary = summary.NotebookSummary

// Metric is a single headline number produced by a notebook.
type Metric = summary.Metric

// WriteNotebookSummary validates s and atomically writes it to
// <outputDir>/<ProjectID>/<NotebookID>.summary.json, returning the path written.
func WriteNotebookSummary(outputDir string, s *NotebookSummary) (string, error) {
	return summary.WriteNotebookSummary(outputDir, s)
}
