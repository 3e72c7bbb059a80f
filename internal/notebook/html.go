package notebook

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
)

// stderrMimeType marks stream and error outputs in the lab template.
const stderrMimeType = "application/vnd.jupyter.stderr"

// Page is what InspectHTML extracts from a rendered notebook.
type Page struct {
	// Title is the <title> text.
	Title string

	// Images counts <img> elements, i.e. rendered plots.
	Images int

	// Tables counts <table> elements, i.e. rendered dataframes.
	Tables int

	// ErrorOutputs counts stderr and traceback outputs.
	ErrorOutputs int
}

// InspectHTML parses the nbconvert page at path.
func InspectHTML(path string) (*Page, error) {
	f, err := os.Open(path) //nolint:gosec // path is produced by the pipeline
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	return ParseHTML(f)
}

// ParseHTML walks an nbconvert page. Both the lab and the classic template
// are recognized.
func ParseHTML(r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &Page{}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if page.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					page.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "img":
				page.Images++
			case "table":
				page.Tables++
			}
			if isErrorOutput(n) {
				page.ErrorOutputs++
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return page, nil
}

// isErrorOutput reports whether n is an output area holding stderr or a traceback.
func isErrorOutput(n *html.Node) bool {
	if getAttr(n, "data-mime-type") == stderrMimeType {
		return true
	}
	for _, class := range strings.Fields(getAttr(n, "class")) {
		if class == "output_stderr" || class == "output_error" {
			return true
		}
	}
	return false
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
