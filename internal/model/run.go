package model

import (
	"context"
	"errors"
	"time"

	"github.com/eeshansrivastava89/datascienceapps/internal/summary"
	"github.com/google/uuid"
)

// Notebook is a discovered .ipynb file.
type Notebook struct {
	// Path is the notebook location as found on disk.
	Path string `json:"path"`

	// RelPath is Path relative to the notebooks directory, using forward slashes.
	RelPath string `json:"rel_path"`

	// ProjectID is the first directory below the notebooks directory.
	ProjectID string `json:"project_id"`

	// NotebookID is derived from the file name (see summary.NotebookIDFromPath).
	NotebookID string `json:"notebook_id"`
}

// Key returns "<projectID>/<notebookID>".
func (n Notebook) Key() string {
	return n.ProjectID + "/" + n.NotebookID
}

// Run is the record of one notebook execution. Step failures are recorded
// here and do not abort the rest of a batch.
type Run struct {
	// ID uniquely identifies the run (UUIDv4).
	ID string `json:"id"`

	// Notebook is the notebook that was executed.
	Notebook Notebook `json:"notebook"`

	// Status is the run outcome.
	Status RunStatus `json:"status"`

	// StartedAt and FinishedAt bracket the execution.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// ExecutedPath is the papermill output notebook.
	ExecutedPath string `json:"executed_path,omitempty"`

	// HTMLPath is the rendered notebook.
	HTMLPath string `json:"html_path,omitempty"`

	// HTMLTitle is the <title> of the rendered notebook.
	HTMLTitle string `json:"html_title,omitempty"`

	// ErrorOutputs is the number of stderr/error outputs in the rendered notebook.
	ErrorOutputs int `json:"error_outputs"`

	// CodeCells is the number of code cells in the source notebook.
	CodeCells int `json:"code_cells"`

	// SourceHash is the SHA3-256 fingerprint of the source notebook.
	SourceHash string `json:"source_hash,omitempty"`

	// SummaryPath is the published summary file.
	SummaryPath string `json:"summary_path,omitempty"`

	// Summary is the published summary, when one was produced.
	Summary *summary.NotebookSummary `json:"summary,omitempty"`

	// Steps lists the pipeline steps that were performed, in order.
	Steps []string `json:"steps"`

	// Error is the first step error. Not serialized; see ErrorMessage.
	Error error `json:"-"`

	// ErrorMessage is the serialized form of Error.
	ErrorMessage string `json:"error,omitempty"`
}

// NewRun creates a pending run for nb with a fresh ID.
func NewRun(nb Notebook) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Notebook:  nb,
		Status:    StatusPending,
		StartedAt: time.Now(),
		Steps:     make([]string, 0),
	}
}

// Fail records err as the run error. Only the first error is kept.
// Context cancellation and deadline errors mark the run as cancelled.
func (r *Run) Fail(err error) {
	if err == nil {
		return
	}
	if r.Error == nil {
		r.Error = err
		r.ErrorMessage = err.Error()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.Status = StatusCancelled
		return
	}
	if r.Status != StatusCancelled {
		r.Status = StatusFailed
	}
}

// Finish stamps FinishedAt and resolves a pending status to succeeded.
func (r *Run) Finish() {
	r.FinishedAt = time.Now()
	if r.Status == StatusPending {
		r.Status = StatusSucceeded
	}
}

// Duration returns the run time, or zero if the run has not finished.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run completed without errors.
func (r *Run) Succeeded() bool {
	return r.Status == StatusSucceeded
}
