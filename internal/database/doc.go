// Package database provides SQLite-based run and summary history.
//
// The history database records every notebook run and every published
// summary so that summaries can be compared across runs and listed later:
//   - runs holds one row per notebook execution with its outcome
//   - summaries holds the full summary JSON plus a few indexed columns
//
// SQLite is accessed through modernc.org/sqlite, which needs no cgo, and the
// database lives in a single file that can be copied or deleted freely.
package database
