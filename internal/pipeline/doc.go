// Package pipeline executes analysis notebooks and publishes their output.
//
// Each notebook is processed by a Pipeline of Steps operating on a
// model.Run:
//
//	execute  papermill runs the notebook (with project parameters)
//	convert  jupyter nbconvert renders the executed notebook to HTML
//	inspect  the HTML page is checked for title and error outputs
//	summary  the notebook summary is loaded or synthesized and written
//	record   the summary is stored in the history database (optional)
//
// External programs are started through the Executor interface. A
// BatchProcessor runs many notebooks with bounded concurrency using errgroup;
// failures are recorded per run and never abort the batch.
package pipeline
