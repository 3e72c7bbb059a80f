package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "nbsummary"

	// DefaultNotebooksDir holds one folder per project with .ipynb files.
	DefaultNotebooksDir = "analytics/notebooks"

	// DefaultOutputDir is where rendered HTML and summaries are published.
	DefaultOutputDir = "public/analysis"

	// DefaultRequirementsFile lists the Python packages the notebooks need.
	DefaultRequirementsFile = "analytics/requirements.txt"

	// DefaultTemplate is the nbconvert HTML template.
	DefaultTemplate = "lab"

	// DefaultEnvFile is loaded before checking the environment.
	DefaultEnvFile = ".env"

	// DefaultBatchSize runs notebooks one at a time. Notebooks often query
	// the same database, so parallel runs are opt-in.
	DefaultBatchSize = 1

	// DefaultTimeout bounds the execution and conversion of one notebook.
	DefaultTimeout = 30 * time.Minute

	// DefaultPapermill, DefaultJupyter and DefaultPip are the executables
	// looked up in PATH.
	DefaultPapermill = "papermill"
	DefaultJupyter   = "jupyter"
	DefaultPip       = "pip"
)

// DefaultRequiredEnv lists the variables the notebooks read to reach Supabase.
var DefaultRequiredEnv = []string{"PUBLIC_SUPABASE_URL", "PUBLIC_SUPABASE_ANON_KEY"}

// Config holds all configuration options for nbsummary.
// It is populated from defaults, the config file and CLI flags, and passed
// through the application rather than kept in global state.
type Config struct {
	// NotebooksDir is the root of the notebook tree.
	NotebooksDir string

	// OutputDir receives <project>/<notebook>.html and .summary.json files.
	OutputDir string

	// ExecutedDir receives papermill output notebooks.
	// Defaults to the system temporary directory.
	ExecutedDir string

	// RequirementsFile is installed with pip before running notebooks.
	RequirementsFile string

	// Template is the nbconvert HTML template name.
	Template string

	// EnvFile is loaded with godotenv. Variables already set win.
	EnvFile string

	// RequiredEnv must be set (after loading EnvFile) before running.
	RequiredEnv []string

	// Exclude holds doublestar patterns of notebooks to skip, relative to
	// NotebooksDir.
	Exclude []string

	// Papermill, Jupyter and Pip are the executables to invoke.
	Papermill string
	Jupyter   string
	Pip       string

	// SkipInstall disables the pip install step.
	SkipInstall bool

	// Timeout bounds one notebook run.
	Timeout time.Duration

	// BatchSize is the number of notebooks run concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .nbsummary.yaml in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// Projects holds per-project settings loaded from the config file.
	Projects *File

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// DBDir is the directory holding the history database.
	// Defaults to the XDG data directory (~/.local/share/nbsummary on Linux).
	DBDir string

	// SaveToDB records runs and summaries in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		NotebooksDir:     DefaultNotebooksDir,
		OutputDir:        DefaultOutputDir,
		ExecutedDir:      os.TempDir(),
		RequirementsFile: DefaultRequirementsFile,
		Template:         DefaultTemplate,
		EnvFile:          DefaultEnvFile,
		RequiredEnv:      append([]string(nil), DefaultRequiredEnv...),
		Papermill:        DefaultPapermill,
		Jupyter:          DefaultJupyter,
		Pip:              DefaultPip,
		Timeout:          DefaultTimeout,
		BatchSize:        DefaultBatchSize,
		DBDir:            XDGDataDir(),
		SaveToDB:         true,
		Projects:         &File{Projects: make(map[string]ProjectConfig)},
	}
}

// ApplyFile overrides defaults with the non-zero settings of f.
// CLI flags are applied afterwards and win over both.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.Projects = f

	if f.NotebooksDir != "" {
		c.NotebooksDir = f.NotebooksDir
	}
	if f.OutputDir != "" {
		c.OutputDir = f.OutputDir
	}
	if f.ExecutedDir != "" {
		c.ExecutedDir = f.ExecutedDir
	}
	if f.Requirements != "" {
		c.RequirementsFile = f.Requirements
	}
	if f.Template != "" {
		c.Template = f.Template
	}
	if f.EnvFile != "" {
		c.EnvFile = f.EnvFile
	}
	if f.RequiredEnv != nil {
		c.RequiredEnv = f.RequiredEnv
	}
	if len(f.Exclude) > 0 {
		c.Exclude = f.Exclude
	}
	if f.BatchSize > 0 {
		c.BatchSize = f.BatchSize
	}
	if f.Defaults.Timeout > 0 {
		c.Timeout = f.Defaults.Timeout
	}
	if f.DBDir != "" {
		c.DBDir = f.DBDir
	}
	if f.Papermill != "" {
		c.Papermill = f.Papermill
	}
	if f.Jupyter != "" {
		c.Jupyter = f.Jupyter
	}
	if f.Pip != "" {
		c.Pip = f.Pip
	}
}

// Project returns the merged settings for projectID, with the global
// timeout as the fallback.
func (c *Config) Project(projectID string) ProjectConfig {
	var pc ProjectConfig
	if c.Projects != nil {
		pc = c.Projects.GetProjectConfig(projectID)
	}
	if pc.Timeout <= 0 {
		pc.Timeout = c.Timeout
	}
	return pc
}

// XDGDataDir returns the XDG data directory for nbsummary.
// On Linux: ~/.local/share/nbsummary
// On macOS: ~/Library/Application Support/nbsummary
// On Windows: %LOCALAPPDATA%\nbsummary
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for nbsummary.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// The first problem found is returned.
func (c *Config) Validate() error {
	if c.NotebooksDir == "" {
		return ErrNoNotebooksDir
	}

	if c.OutputDir == "" {
		return ErrNoOutputDir
	}

	if c.Template == "" {
		return ErrNoTemplate
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
