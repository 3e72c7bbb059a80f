package notebook

import "errors"

var (
	// ErrNotFound is returned when a discovery target is neither a folder
	// under the notebooks directory nor an existing .ipynb file.
	ErrNotFound = errors.New("notebook target not found")

	// ErrInvalidNotebook is returned when a file is not valid nbformat JSON.
	ErrInvalidNotebook = errors.New("invalid notebook")
)
