package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/eeshansrivastava89/datascienceapps/internal/model"
	"github.com/eeshansrivastava89/datascienceapps/internal/summary"
)

// FileName is the database file created inside the database directory.
const FileName = "nbsummary.db"

// timeLayout is a fixed-width UTC layout so that stored timestamps sort
// lexicographically.
const timeLayout = "2006-01-02 15:04:05.000000000"

// HistoryDB stores notebook runs and published summaries.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per notebook execution
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		notebook_id TEXT NOT NULL,
		notebook_path TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		duration_ms INTEGER DEFAULT 0,
		html_path TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_notebook ON runs(project_id, notebook_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Published summaries, stored whole as JSON
	CREATE TABLE IF NOT EXISTS summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		project_id TEXT NOT NULL,
		notebook_id TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		source_hash TEXT,
		summary_json TEXT NOT NULL,
		metric_count INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_summaries_notebook ON summaries(project_id, notebook_id);
	CREATE INDEX IF NOT EXISTS idx_summaries_generated ON summaries(generated_at);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is a stored run.
type RunRecord struct {
	ID           string
	ProjectID    string
	NotebookID   string
	NotebookPath string
	Status       model.RunStatus
	StartedAt    time.Time
	FinishedAt   time.Time
	Duration     time.Duration
	HTMLPath     string
	Error        string
}

// SaveRun inserts or replaces the row for run.
func (h *HistoryDB) SaveRun(ctx context.Context, run *model.Run) error {
	if run == nil {
		return errors.New("run is nil")
	}

	query := `
	INSERT INTO runs (id, project_id, notebook_id, notebook_path, status, started_at, finished_at, duration_ms, html_path, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		finished_at = excluded.finished_at,
		duration_ms = excluded.duration_ms,
		html_path = excluded.html_path,
		error = excluded.error
	`

	_, err := h.db.ExecContext(ctx, query,
		run.ID,
		run.Notebook.ProjectID,
		run.Notebook.NotebookID,
		run.Notebook.RelPath,
		run.Status.String(),
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		run.Duration().Milliseconds(),
		run.HTMLPath,
		run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// ListRuns returns runs newest first. A non-positive limit returns all runs.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
	SELECT id, project_id, notebook_id, notebook_path, status, started_at, finished_at, duration_ms, html_path, error
	FROM runs
	ORDER BY started_at DESC, id
	`
	args := make([]interface{}, 0)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunRecord
	for rows.Next() {
		var rec RunRecord
		var status, startedAt string
		var finishedAt, htmlPath, errMsg sql.NullString
		var durationMS int64

		err := rows.Scan(
			&rec.ID,
			&rec.ProjectID,
			&rec.NotebookID,
			&rec.NotebookPath,
			&status,
			&startedAt,
			&finishedAt,
			&durationMS,
			&htmlPath,
			&errMsg,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		// Unknown statuses from newer versions are kept as pending.
		rec.Status, _ = model.ParseRunStatus(status) //nolint:errcheck // see above
		rec.StartedAt = parseTimestamp(startedAt)
		rec.FinishedAt = parseTimestamp(finishedAt.String)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.HTMLPath = htmlPath.String
		rec.Error = errMsg.String

		results = append(results, rec)
	}

	return results, rows.Err()
}

// SaveSummary stores s and returns its database ID. runID may be empty for
// summaries written outside a pipeline run.
func (h *HistoryDB) SaveSummary(ctx context.Context, runID string, s *summary.NotebookSummary) (int64, error) {
	if s == nil {
		return 0, summary.ErrNilSummary
	}

	summaryJSON, err := json.Marshal(s)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize summary: %w", err)
	}

	generatedAt := s.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	query := `
	INSERT INTO summaries (run_id, project_id, notebook_id, generated_at, source_hash, summary_json, metric_count)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := h.db.ExecContext(ctx, query,
		runID,
		s.ProjectID,
		s.NotebookID,
		formatTimestamp(generatedAt),
		s.SourceHash,
		string(summaryJSON),
		len(s.Metrics),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save summary: %w", err)
	}

	return result.LastInsertId()
}

// LatestSummary returns the most recent summary for a notebook, or nil if
// none is stored.
func (h *HistoryDB) LatestSummary(ctx context.Context, projectID, notebookID string) (*summary.NotebookSummary, error) {
	query := `
	SELECT summary_json FROM summaries
	WHERE project_id = ? AND notebook_id = ?
	ORDER BY generated_at DESC, id DESC
	LIMIT 1
	`

	return h.querySummary(ctx, query, projectID, notebookID)
}

// GetSummaryByID retrieves a summary by its database ID, or nil if absent.
func (h *HistoryDB) GetSummaryByID(ctx context.Context, id int64) (*summary.NotebookSummary, error) {
	query := `
	SELECT summary_json FROM summaries
	WHERE id = ?
	`

	return h.querySummary(ctx, query, id)
}

// querySummary scans a single summary_json column.
func (h *HistoryDB) querySummary(ctx context.Context, query string, args ...interface{}) (*summary.NotebookSummary, error) {
	var summaryJSON string
	err := h.db.QueryRowContext(ctx, query, args...).Scan(&summaryJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	var s summary.NotebookSummary
	if err := json.Unmarshal([]byte(summaryJSON), &s); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}

	return &s, nil
}

// SummaryMetadata describes a stored summary without its metrics.
type SummaryMetadata struct {
	// ID is the database ID, usable with GetSummaryByID.
	ID int64

	// RunID is the run that produced the summary, if any.
	RunID string

	ProjectID  string
	NotebookID string

	// GeneratedAt is when the summary was written.
	GeneratedAt time.Time

	// SourceHash is the notebook fingerprint at that time.
	SourceHash string

	// MetricCount is the number of metrics in the summary.
	MetricCount int
}

// SummaryHistory returns metadata for every stored summary of a notebook,
// newest first.
func (h *HistoryDB) SummaryHistory(ctx context.Context, projectID, notebookID string) ([]SummaryMetadata, error) {
	query := `
	SELECT id, run_id, project_id, notebook_id, generated_at, source_hash, metric_count
	FROM summaries
	WHERE project_id = ? AND notebook_id = ?
	ORDER BY generated_at DESC, id DESC
	`

	rows, err := h.db.QueryContext(ctx, query, projectID, notebookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get summary history: %w", err)
	}
	defer rows.Close()

	var results []SummaryMetadata
	for rows.Next() {
		var meta SummaryMetadata
		var runID, sourceHash sql.NullString
		var generatedAt string

		err := rows.Scan(
			&meta.ID,
			&runID,
			&meta.ProjectID,
			&meta.NotebookID,
			&generatedAt,
			&sourceHash,
			&meta.MetricCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.RunID = runID.String
		meta.SourceHash = sourceHash.String
		meta.GeneratedAt = parseTimestamp(generatedAt)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// NotebookRef identifies a notebook that has stored summaries.
type NotebookRef struct {
	ProjectID  string
	NotebookID string

	// Summaries is the number of stored summaries.
	Summaries int

	// LastGenerated is the newest summary's timestamp.
	LastGenerated time.Time
}

// Key returns "<projectID>/<notebookID>".
func (r NotebookRef) Key() string {
	return r.ProjectID + "/" + r.NotebookID
}

// ListNotebooks returns every notebook with stored summaries, ordered by
// project and notebook ID.
func (h *HistoryDB) ListNotebooks(ctx context.Context) ([]NotebookRef, error) {
	query := `
	SELECT project_id, notebook_id, COUNT(*), MAX(generated_at)
	FROM summaries
	GROUP BY project_id, notebook_id
	ORDER BY project_id, notebook_id
	`

	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list notebooks: %w", err)
	}
	defer rows.Close()

	var refs []NotebookRef
	for rows.Next() {
		var ref NotebookRef
		var last string
		if err := rows.Scan(&ref.ProjectID, &ref.NotebookID, &ref.Summaries, &last); err != nil {
			return nil, fmt.Errorf("failed to scan notebook: %w", err)
		}
		ref.LastGenerated = parseTimestamp(last)
		refs = append(refs, ref)
	}

	return refs, rows.Err()
}

// formatTimestamp renders t in timeLayout. The zero time is stored as "".
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats accepted when reading.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,                // Written by this package
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
