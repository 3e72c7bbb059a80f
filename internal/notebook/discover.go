package notebook

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/eeshansrivastava89/datascienceapps/internal/model"
	"github.com/eeshansrivastava89/datascienceapps/internal/summary"
)

// Extension is the notebook file extension.
const Extension = ".ipynb"

// outputMarker identifies executed copies (e.g. report.out.ipynb) that must
// never be run again.
const outputMarker = ".out."

// Finder discovers notebooks below a notebooks directory.
type Finder struct {
	// dir is the notebooks root, e.g. analytics/notebooks.
	dir string

	// exclude holds doublestar patterns matched against slash-separated
	// paths relative to dir.
	exclude []string
}

// NewFinder creates a Finder for dir. Invalid exclude patterns are reported
// here rather than silently never matching.
func NewFinder(dir string, exclude []string) (*Finder, error) {
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return &Finder{dir: dir, exclude: exclude}, nil
}

// Find resolves target into notebooks:
//   - an empty target selects every notebook below the notebooks directory
//   - a folder name under the notebooks directory selects that folder
//   - a path to an existing .ipynb file selects that file
//
// Any other target returns ErrNotFound. Results are sorted by RelPath.
func (f *Finder) Find(target string) ([]model.Notebook, error) {
	if target == "" {
		return f.scan(f.dir)
	}

	asDir := filepath.Join(f.dir, target)
	if info, err := os.Stat(asDir); err == nil && info.IsDir() {
		return f.scan(asDir)
	}

	if strings.HasSuffix(target, Extension) {
		if info, err := os.Stat(target); err == nil && !info.IsDir() {
			return []model.Notebook{f.describe(target)}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
}

// scan walks root and collects notebooks. A missing root yields no notebooks.
func (f *Finder) scan(root string) ([]model.Notebook, error) {
	notebooks := make([]model.Notebook, 0)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipAll
			}
			return err
		}

		if d.IsDir() {
			// Skips .ipynb_checkpoints and other hidden directories.
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if !strings.HasSuffix(name, Extension) || strings.Contains(name, outputMarker) {
			return nil
		}

		nb := f.describe(path)
		if f.excluded(nb.RelPath) {
			return nil
		}
		notebooks = append(notebooks, nb)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Slice(notebooks, func(i, j int) bool {
		return notebooks[i].RelPath < notebooks[j].RelPath
	})
	return notebooks, nil
}

// excluded reports whether rel matches any exclude pattern.
func (f *Finder) excluded(rel string) bool {
	for _, pattern := range f.exclude {
		// Patterns were validated in NewFinder.
		if ok, _ := doublestar.Match(pattern, rel); ok { //nolint:errcheck // validated pattern
			return true
		}
	}
	return false
}

// describe derives IDs for the notebook at path.
//
// The project ID is the first directory below the notebooks directory.
// Notebooks placed directly in the notebooks directory use the directory's
// own name; notebooks outside it use their parent directory's name.
func (f *Finder) describe(path string) model.Notebook {
	nb := model.Notebook{
		Path:       path,
		RelPath:    filepath.ToSlash(path),
		NotebookID: summary.NotebookIDFromPath(path),
	}

	rel, err := relativeTo(f.dir, path)
	if err != nil {
		nb.ProjectID = summary.Slugify(filepath.Base(filepath.Dir(path)))
		return nb
	}

	nb.RelPath = filepath.ToSlash(rel)
	parts := strings.Split(nb.RelPath, "/")
	if len(parts) > 1 {
		nb.ProjectID = summary.Slugify(parts[0])
	} else {
		nb.ProjectID = summary.Slugify(filepath.Base(f.dir))
	}
	return nb
}

// relativeTo returns path relative to dir, or an error if path is not
// inside dir.
func relativeTo(dir, path string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", path, dir)
	}
	return rel, nil
}
