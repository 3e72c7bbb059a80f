// Package notebook discovers analysis notebooks on disk and inspects them
// before and after execution.
//
// Discovery follows the layout of the analytics directory:
//
//	analytics/notebooks/<project>/<notebook>.ipynb
//
// where <project> becomes the project ID and the file name becomes the
// notebook ID. Inspection covers the source notebook (nbformat JSON), its
// fingerprint, and the HTML page produced by nbconvert.
package notebook
