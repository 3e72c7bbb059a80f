// Package index maintains index.json, the listing of every published
// notebook summary that the site's analysis page loads.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/eeshansrivastava89/datascienceapps/internal/summary"
	"github.com/google/renameio/v2"
)

// FileName is the index file written to the output directory.
const FileName = "index.json"

// Entry describes one published notebook.
type Entry struct {
	NotebookID  string    `json:"notebook_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	MetricCount int       `json:"metric_count"`

	// Path is the summary file relative to the output directory.
	Path string `json:"path"`

	// HTMLPath is the rendered page relative to the output directory.
	HTMLPath string `json:"html_path,omitempty"`
}

// ProjectIndex groups the notebooks of one project.
type ProjectIndex struct {
	ID        string  `json:"id"`
	Notebooks []Entry `json:"notebooks"`
}

// Index is the content of index.json.
type Index struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Projects    []ProjectIndex `json:"projects"`
}

// NotebookCount returns the number of notebooks across all projects.
func (ix *Index) NotebookCount() int {
	n := 0
	for _, p := range ix.Projects {
		n += len(p.Notebooks)
	}
	return n
}

// Build reads every summary below outputDir. Projects and notebooks are
// sorted by ID. A missing outputDir yields an empty index.
func Build(outputDir string) (*Index, error) {
	summaries, err := summary.LoadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load summaries: %w", err)
	}

	ix := &Index{
		GeneratedAt: time.Now().UTC(),
		Projects:    make([]ProjectIndex, 0),
	}

	// LoadDir sorts by project then notebook, so projects arrive grouped.
	for _, s := range summaries {
		if n := len(ix.Projects); n == 0 || ix.Projects[n-1].ID != s.ProjectID {
			ix.Projects = append(ix.Projects, ProjectIndex{ID: s.ProjectID, Notebooks: make([]Entry, 0)})
		}
		p := &ix.Projects[len(ix.Projects)-1]

		rel, err := filepath.Rel(outputDir, s.Path(outputDir))
		if err != nil {
			return nil, err
		}
		p.Notebooks = append(p.Notebooks, Entry{
			NotebookID:  s.NotebookID,
			Title:       s.Title,
			Description: s.Description,
			Tags:        s.Tags,
			GeneratedAt: s.GeneratedAt,
			MetricCount: len(s.Metrics),
			Path:        filepath.ToSlash(rel),
			HTMLPath:    s.HTMLPath,
		})
	}

	return ix, nil
}

// Write builds the index and atomically replaces <outputDir>/index.json.
func Write(outputDir string) (*Index, error) {
	ix, err := Build(outputDir)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode index: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := renameio.WriteFile(filepath.Join(outputDir, FileName), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write index: %w", err)
	}
	return ix, nil
}
