// Package model defines the run records produced while executing analysis
// notebooks.
//
// This package contains the following main types:
//   - Notebook: A discovered notebook and the IDs derived from its path
//   - Run: The record of one notebook execution (papermill + nbconvert)
//   - RunReport: The outcome of a batch of runs
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The pipeline, report and database packages all need these
// types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
