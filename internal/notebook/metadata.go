package notebook

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// parametersTag marks the cell papermill injects parameters after.
const parametersTag = "parameters"

// Metadata is what the pipeline needs to know about a source notebook.
type Metadata struct {
	// Title is the first level-one markdown heading, if any.
	Title string

	// Kernel is the kernelspec name (e.g. "python3").
	Kernel string

	// Language is the kernel language (e.g. "python").
	Language string

	// CodeCells and MarkdownCells count cells by type.
	CodeCells     int
	MarkdownCells int

	// HasParametersCell reports whether a code cell is tagged "parameters".
	HasParametersCell bool

	// NBFormat is the major nbformat version.
	NBFormat int
}

// rawNotebook mirrors the subset of nbformat v4 that is read.
type rawNotebook struct {
	Cells    []rawCell `json:"cells"`
	Metadata struct {
		KernelSpec struct {
			Name     string `json:"name"`
			Language string `json:"language"`
		} `json:"kernelspec"`
		LanguageInfo struct {
			Name string `json:"name"`
		} `json:"language_info"`
	} `json:"metadata"`
	NBFormat int `json:"nbformat"`
}

type rawCell struct {
	CellType string          `json:"cell_type"`
	Source   json.RawMessage `json:"source"`
	Metadata struct {
		Tags []string `json:"tags"`
	} `json:"metadata"`
}

// text returns the cell source. nbformat allows a string or a list of lines.
func (c rawCell) text() string {
	if len(c.Source) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(c.Source, &s); err == nil {
		return s
	}
	var lines []string
	if err := json.Unmarshal(c.Source, &lines); err == nil {
		return strings.Join(lines, "")
	}
	return ""
}

// ReadMetadata parses the notebook at path.
func ReadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from discovery
	if err != nil {
		return nil, fmt.Errorf("failed to read notebook %s: %w", path, err)
	}
	return ParseMetadata(data)
}

// ParseMetadata parses nbformat JSON.
func ParseMetadata(data []byte) (*Metadata, error) {
	var nb rawNotebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotebook, err)
	}
	if nb.NBFormat == 0 {
		return nil, fmt.Errorf("%w: missing nbformat version", ErrInvalidNotebook)
	}

	meta := &Metadata{
		Kernel:   nb.Metadata.KernelSpec.Name,
		Language: nb.Metadata.KernelSpec.Language,
		NBFormat: nb.NBFormat,
	}
	if meta.Language == "" {
		meta.Language = nb.Metadata.LanguageInfo.Name
	}

	for _, cell := range nb.Cells {
		switch cell.CellType {
		case "code":
			meta.CodeCells++
			for _, tag := range cell.Metadata.Tags {
				if tag == parametersTag {
					meta.HasParametersCell = true
				}
			}
		case "markdown":
			meta.MarkdownCells++
			if meta.Title == "" {
				meta.Title = heading(cell.text())
			}
		}
	}

	return meta, nil
}

// heading returns the text of the first "# " line in markdown.
func heading(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}
