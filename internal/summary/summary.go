package summary

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// FileSuffix is appended to the notebook ID to form the summary file name.
const FileSuffix = ".summary.json"

// slugPattern matches project and notebook IDs. IDs become path segments,
// so separators and dots are never allowed.
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// nonSlugChars matches runs of characters that cannot appear in a slug.
var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// NotebookSummary is the published summary of one analysis notebook.
type NotebookSummary struct {
	// ProjectID is the project the notebook belongs to, e.g. "ab-simulator".
	ProjectID string `json:"project_id"`

	// NotebookID identifies the notebook within its project.
	NotebookID string `json:"notebook_id"`

	// Title is the human readable title of the analysis.
	Title string `json:"title"`

	// Description is a short abstract of the analysis.
	Description string `json:"description,omitempty"`

	// Metrics are the headline numbers, in display order.
	Metrics []Metric `json:"metrics"`

	// Highlights are one-line key findings.
	Highlights []string `json:"highlights,omitempty"`

	// Tags categorise the analysis (e.g. "ab-testing", "bayesian").
	Tags []string `json:"tags,omitempty"`

	// GeneratedAt is when the summary was produced. Stamped on write when zero.
	GeneratedAt time.Time `json:"generated_at"`

	// SourcePath is the notebook path relative to the notebooks directory.
	SourcePath string `json:"source_path,omitempty"`

	// SourceHash is the SHA3-256 fingerprint of the notebook source.
	SourceHash string `json:"source_hash,omitempty"`

	// HTMLPath is the rendered notebook path relative to the output directory.
	HTMLPath string `json:"html_path,omitempty"`
}

// NewNotebookSummary creates an empty summary for the given notebook.
func NewNotebookSummary(projectID, notebookID string) *NotebookSummary {
	return &NotebookSummary{
		ProjectID:  projectID,
		NotebookID: notebookID,
		Metrics:    make([]Metric, 0),
	}
}

// AddMetric appends a metric. Validation happens on write.
func (s *NotebookSummary) AddMetric(m Metric) {
	s.Metrics = append(s.Metrics, m)
}

// AddHighlight appends a key finding, ignoring blank strings.
func (s *NotebookSummary) AddHighlight(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.Highlights = append(s.Highlights, text)
}

// Metric returns the metric with the given name.
func (s *NotebookSummary) Metric(name string) (Metric, bool) {
	for _, m := range s.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

// Key returns "<projectID>/<notebookID>".
func (s *NotebookSummary) Key() string {
	return s.ProjectID + "/" + s.NotebookID
}

// Path returns the location of the summary file under outputDir.
func (s *NotebookSummary) Path(outputDir string) string {
	return filepath.Join(outputDir, s.ProjectID, s.NotebookID+FileSuffix)
}

// Validate checks IDs and every metric. The first problem found is returned.
func (s *NotebookSummary) Validate() error {
	if s == nil {
		return ErrNilSummary
	}
	if !slugPattern.MatchString(s.ProjectID) {
		return fmt.Errorf("%w: %q", ErrInvalidProjectID, s.ProjectID)
	}
	if !slugPattern.MatchString(s.NotebookID) {
		return fmt.Errorf("%w: %q", ErrInvalidNotebookID, s.NotebookID)
	}

	seen := make(map[string]struct{}, len(s.Metrics))
	for _, m := range s.Metrics {
		if err := m.Validate(); err != nil {
			return err
		}
		if _, ok := seen[m.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateMetric, m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

// clone returns a copy whose slices can be modified independently.
func (s *NotebookSummary) clone() *NotebookSummary {
	c := *s
	c.Metrics = append(make([]Metric, 0, len(s.Metrics)), s.Metrics...)
	if s.Highlights != nil {
		c.Highlights = append([]string(nil), s.Highlights...)
	}
	if s.Tags != nil {
		c.Tags = append([]string(nil), s.Tags...)
	}
	return &c
}

// NotebookIDFromPath derives a notebook ID from a notebook file path:
// the base name without ".ipynb", lowercased, with underscores and other
// non-slug characters turned into dashes.
//
//	analytics/notebooks/ab-simulator/conversion_analysis.ipynb -> conversion-analysis
func NotebookIDFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), ".ipynb")
	return Slugify(base)
}

// Slugify lowercases s and collapses every run of non-alphanumeric
// characters into a single dash.
func Slugify(s string) string {
	s = nonSlugChars.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}
