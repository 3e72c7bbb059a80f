// Package summary defines the notebook summary document published next to
// each rendered analysis notebook, and the operations that write, load and
// compare those documents.
//
// A summary is a small JSON file stored at
//
//	<outputDir>/<projectID>/<notebookID>.summary.json
//
// alongside the notebook's HTML rendering. It carries the headline metrics
// of the analysis (conversion rates, p-values, completion times) so the site
// can show them without parsing the HTML export.
//
// Summaries are written atomically: readers either see the previous file or
// the complete new one, never a partial write.
package summary
