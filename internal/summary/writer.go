package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// filePermissions is used for summary files; they are published with the site.
const filePermissions = 0o644

// WriteNotebookSummary validates s and writes it as indented JSON to
// <outputDir>/<ProjectID>/<NotebookID>.summary.json, creating the project
// directory when needed. Empty metric labels are filled from metric names and
// a zero GeneratedAt is set to the current UTC time; s itself is not modified.
//
// The file is replaced atomically. It returns the path that was written.
func WriteNotebookSummary(outputDir string, s *NotebookSummary) (string, error) {
	if s == nil {
		return "", ErrNilSummary
	}
	if err := s.Validate(); err != nil {
		return "", err
	}

	out := s.clone()
	for i := range out.Metrics {
		out.Metrics[i].Label = out.Metrics[i].DisplayLabel()
	}
	if out.GeneratedAt.IsZero() {
		out.GeneratedAt = time.Now().UTC()
	}

	path := out.Path(outputDir)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("failed to create summary directory: %w", err)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode summary: %w", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// writeFileAtomic writes data to a pending file and renames it into place
// after fsync.
func writeFileAtomic(path string, data []byte) (err error) {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(filePermissions))
	if err != nil {
		return fmt.Errorf("failed to create pending summary file: %w", err)
	}
	defer func() {
		// No-op once CloseAtomicallyReplace succeeded.
		if cerr := pending.Cleanup(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to clean up pending summary file: %w", cerr)
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to replace summary file: %w", err)
	}
	return nil
}

// Load reads a summary file.
func Load(path string) (*NotebookSummary, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Summary paths come from the configured output directory
	if err != nil {
		return nil, err
	}

	var s NotebookSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse summary %s: %w", path, err)
	}
	if s.Metrics == nil {
		s.Metrics = make([]Metric, 0)
	}
	return &s, nil
}

// LoadDir loads every *.summary.json file below outputDir, sorted by project
// and notebook ID. A missing outputDir yields an empty result.
func LoadDir(outputDir string) ([]*NotebookSummary, error) {
	var summaries []*NotebookSummary

	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == outputDir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), FileSuffix) {
			return nil
		}

		s, err := Load(path)
		if err != nil {
			return err
		}
		summaries = append(summaries, s)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Key() < summaries[j].Key()
	})
	return summaries, nil
}
