package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and allow callers to use
// errors.Is() while still printing a readable message.
var (
	// ErrNoNotebooksDir is returned when the notebooks directory is empty.
	ErrNoNotebooksDir = errors.New("no notebooks directory configured")

	// ErrNoOutputDir is returned when the output directory is empty.
	ErrNoOutputDir = errors.New("no output directory configured")

	// ErrInvalidTimeout is returned when the per-notebook timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrNoTemplate is returned when the nbconvert template name is empty.
	ErrNoTemplate = errors.New("no nbconvert template configured")

	// ErrMissingEnv is returned by CheckEnv when required variables are unset.
	ErrMissingEnv = errors.New("missing required environment variables")
)
