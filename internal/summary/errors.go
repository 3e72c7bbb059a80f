package summary

import "errors"

// Validation errors returned by NotebookSummary.Validate and
// WriteNotebookSummary. Callers can match them with errors.Is.
var (
	// ErrNilSummary is returned when a nil summary is written or compared.
	ErrNilSummary = errors.New("summary is nil")

	// ErrInvalidProjectID is returned when the project ID is not a lowercase slug.
	ErrInvalidProjectID = errors.New("invalid project id: must be a lowercase slug (e.g. ab-simulator)")

	// ErrInvalidNotebookID is returned when the notebook ID is not a lowercase slug.
	ErrInvalidNotebookID = errors.New("invalid notebook id: must be a lowercase slug (e.g. conversion-analysis)")

	// ErrInvalidMetricName is returned when a metric name is empty or contains
	// characters other than lowercase letters, digits and underscores.
	ErrInvalidMetricName = errors.New("invalid metric name: must match [a-z0-9_]+")

	// ErrDuplicateMetric is returned when two metrics share a name.
	ErrDuplicateMetric = errors.New("duplicate metric name")

	// ErrNonFiniteMetric is returned for NaN or infinite metric values,
	// which cannot be represented in JSON.
	ErrNonFiniteMetric = errors.New("metric value must be finite")

	// ErrInvalidPrecision is returned when a metric precision is negative.
	ErrInvalidPrecision = errors.New("metric precision must be non-negative")
)
