package model

import (
	"fmt"
	"strings"
)

// RunStatus is the outcome of a notebook run.
type RunStatus int

const (
	// StatusPending is the state of a run that has not finished yet.
	StatusPending RunStatus = iota

	// StatusSucceeded means every pipeline step completed.
	StatusSucceeded

	// StatusFailed means at least one step returned an error.
	StatusFailed

	// StatusCancelled means the run was interrupted by context cancellation
	// or its timeout.
	StatusCancelled
)

// String returns the lowercase status name.
func (s RunStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status as its name so JSON and the history
// database store readable values.
func (s RunStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *RunStatus) UnmarshalText(text []byte) error {
	status, err := ParseRunStatus(string(text))
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// ParseRunStatus converts a status name into a RunStatus.
func ParseRunStatus(name string) (RunStatus, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pending":
		return StatusPending, nil
	case "succeeded":
		return StatusSucceeded, nil
	case "failed":
		return StatusFailed, nil
	case "cancelled":
		return StatusCancelled, nil
	default:
		return StatusPending, fmt.Errorf("unknown run status %q", name)
	}
}
