// Package analytics is the public entry point of the notebook analytics
// library. Notebooks and tools use it to publish the headline results of an
// analysis as a summary file next to the rendered notebook.
//
// The package exposes exactly three names:
//
//   - NotebookSummary: the summary document of one notebook
//   - Metric: a single headline number inside a summary
//   - WriteNotebookSummary: validates and atomically writes a summary
//
// Usage:
//
//	s := &analytics.NotebookSummary{
//		ProjectID:  "ab-simulator",
//		NotebookID: "conversion-analysis",
//		Title:      "Conversion Analysis",
//	}
//	s.AddMetric(analytics.Metric{Name: "conversion_rate", Value: 12.5, Unit: "%", Precision: 1})
//
//	path, err := analytics.WriteNotebookSummary("public/analysis", s)
package analytics
