package model

import "time"

// RunReport is the outcome of running a batch of notebooks.
type RunReport struct {
	// Runs are in discovery order. Entries may be nil when a batch was
	// cancelled before the run started.
	Runs []*Run `json:"runs"`

	// Started and Finished bracket the whole batch.
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// RunCounts is the number of runs per status.
type RunCounts struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Pending   int `json:"pending"`
}

// Total returns the number of runs counted.
func (c RunCounts) Total() int {
	return c.Succeeded + c.Failed + c.Cancelled + c.Pending
}

// NewRunReport creates a report over runs.
func NewRunReport(runs []*Run, started, finished time.Time) *RunReport {
	return &RunReport{
		Runs:     runs,
		Started:  started,
		Finished: finished,
	}
}

// Counts tallies runs by status. Nil entries are counted as cancelled.
func (r *RunReport) Counts() RunCounts {
	var c RunCounts
	for _, run := range r.Runs {
		if run == nil {
			c.Cancelled++
			continue
		}
		switch run.Status {
		case StatusSucceeded:
			c.Succeeded++
		case StatusFailed:
			c.Failed++
		case StatusCancelled:
			c.Cancelled++
		default:
			c.Pending++
		}
	}
	return c
}

// Failed returns the runs that did not succeed.
func (r *RunReport) Failed() []*Run {
	var failed []*Run
	for _, run := range r.Runs {
		if run != nil && !run.Succeeded() {
			failed = append(failed, run)
		}
	}
	return failed
}

// HasFailures reports whether any run did not succeed.
func (r *RunReport) HasFailures() bool {
	c := r.Counts()
	return c.Failed > 0 || c.Cancelled > 0
}

// Duration returns the wall time of the batch.
func (r *RunReport) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}
