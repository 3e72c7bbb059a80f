// Package report renders notebook summaries, summary comparisons and batch
// run reports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown for pull request comments and docs
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
