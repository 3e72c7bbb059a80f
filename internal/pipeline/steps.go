package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eeshansrivastava89/datascienceapps/internal/config"
	"github.com/eeshansrivastava89/datascienceapps/internal/model"
	"github.com/eeshansrivastava89/datascienceapps/internal/notebook"
	"github.com/eeshansrivastava89/datascienceapps/internal/summary"
)

// Step names, recorded in model.Run.Steps.
const (
	StepExecute = "execute"
	StepConvert = "convert"
	StepInspect = "inspect"
	StepSummary = "summary"
	StepRecord  = "record"
)

// Metrics added to synthesized summaries.
const (
	MetricExecutionSeconds = "execution_seconds"
	MetricCodeCells        = "code_cells"
	MetricErrorOutputs     = "error_outputs"
)

// ErrNotExecuted is returned by steps that need the papermill output when
// the execute step did not produce one.
var ErrNotExecuted = errors.New("notebook has not been executed")

// ErrNotConverted is returned by steps that need the HTML page when the
// convert step did not produce one.
var ErrNotConverted = errors.New("notebook has not been converted to HTML")

// ExecuteStep runs the notebook with papermill.
// Before executing it reads the source notebook's metadata and fingerprint
// so that they describe exactly what was run.
type ExecuteStep struct {
	executor    Executor
	papermill   string
	executedDir string

	// parameters are papermill "-p name value" arguments.
	parameters []string

	// kernel overrides the notebook kernel when set.
	kernel string

	logger *slog.Logger
}

// ExecuteStepOption configures an ExecuteStep.
type ExecuteStepOption func(*ExecuteStep)

// WithParameters sets papermill parameter arguments (see config.ProjectConfig.ParameterArgs).
func WithParameters(args []string) ExecuteStepOption {
	return func(s *ExecuteStep) {
		s.parameters = args
	}
}

// WithKernel sets the kernel papermill uses.
func WithKernel(kernel string) ExecuteStepOption {
	return func(s *ExecuteStep) {
		s.kernel = kernel
	}
}

// WithPapermill sets the papermill executable.
func WithPapermill(name string) ExecuteStepOption {
	return func(s *ExecuteStep) {
		if name != "" {
			s.papermill = name
		}
	}
}

// WithExecuteLogger sets a custom logger for the execute step.
func WithExecuteLogger(logger *slog.Logger) ExecuteStepOption {
	return func(s *ExecuteStep) {
		s.logger = logger
	}
}

// NewExecuteStep creates an execute step writing executed notebooks to executedDir.
func NewExecuteStep(executor Executor, executedDir string, opts ...ExecuteStepOption) *ExecuteStep {
	s := &ExecuteStep{
		executor:    executor,
		papermill:   config.DefaultPapermill,
		executedDir: executedDir,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ExecuteStep) Name() string {
	return StepExecute
}

// ExecutedPath returns where the executed copy of nb is written. The project
// ID is part of the name so that notebooks with the same file name in
// different projects can run concurrently.
func (s *ExecuteStep) ExecutedPath(nb model.Notebook) string {
	return filepath.Join(s.executedDir, nb.ProjectID+"-"+nb.NotebookID+"-executed"+notebook.Extension)
}

// Do executes the notebook.
func (s *ExecuteStep) Do(ctx context.Context, run *model.Run) error {
	meta, err := notebook.ReadMetadata(run.Notebook.Path)
	if err != nil {
		return err
	}
	run.CodeCells = meta.CodeCells
	if run.HTMLTitle == "" {
		run.HTMLTitle = meta.Title
	}

	if len(s.parameters) > 0 && !meta.HasParametersCell {
		s.logger.Warn("notebook has no cell tagged \"parameters\"; papermill will inject parameters at the top",
			"notebook", run.Notebook.Key(),
		)
	}

	hash, err := notebook.Fingerprint(run.Notebook.Path)
	if err != nil {
		return err
	}
	run.SourceHash = hash

	if err := os.MkdirAll(s.executedDir, 0750); err != nil {
		return fmt.Errorf("failed to create executed notebook directory: %w", err)
	}

	executed := s.ExecutedPath(run.Notebook)
	args := []string{run.Notebook.Path, executed, "--no-progress-bar", "--log-output"}
	if s.kernel != "" {
		args = append(args, "-k", s.kernel)
	}
	args = append(args, s.parameters...)

	if err := s.executor.Run(ctx, Command{Name: s.papermill, Args: args}); err != nil {
		return err
	}

	run.ExecutedPath = executed
	return nil
}

// ConvertStep renders the executed notebook to HTML with nbconvert.
type ConvertStep struct {
	executor  Executor
	jupyter   string
	outputDir string
	template  string
}

// ConvertStepOption configures a ConvertStep.
type ConvertStepOption func(*ConvertStep)

// WithTemplate sets the nbconvert template.
func WithTemplate(template string) ConvertStepOption {
	return func(s *ConvertStep) {
		if template != "" {
			s.template = template
		}
	}
}

// WithJupyter sets the jupyter executable.
func WithJupyter(name string) ConvertStepOption {
	return func(s *ConvertStep) {
		if name != "" {
			s.jupyter = name
		}
	}
}

// NewConvertStep creates a convert step writing HTML below outputDir.
func NewConvertStep(executor Executor, outputDir string, opts ...ConvertStepOption) *ConvertStep {
	s := &ConvertStep{
		executor:  executor,
		jupyter:   config.DefaultJupyter,
		outputDir: outputDir,
		template:  config.DefaultTemplate,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ConvertStep) Name() string {
	return StepConvert
}

// Do converts the executed notebook to <outputDir>/<project>/<notebook>.html.
func (s *ConvertStep) Do(ctx context.Context, run *model.Run) error {
	if run.ExecutedPath == "" {
		return ErrNotExecuted
	}

	dir := filepath.Join(s.outputDir, run.Notebook.ProjectID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	cmd := Command{
		Name: s.jupyter,
		Args: []string{
			"nbconvert", run.ExecutedPath,
			"--to", "html",
			"--template", s.template,
			"--output", run.Notebook.NotebookID,
			"--output-dir", dir,
		},
	}
	if err := s.executor.Run(ctx, cmd); err != nil {
		return err
	}

	run.HTMLPath = filepath.Join(dir, run.Notebook.NotebookID+".html")
	return nil
}

// InspectStep reads the rendered page and records what it shows.
// Error outputs are reported but do not fail the run: papermill already
// fails on uncaught exceptions, so what remains are warnings on stderr.
type InspectStep struct {
	logger *slog.Logger
}

// NewInspectStep creates an inspect step.
func NewInspectStep(logger *slog.Logger) *InspectStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &InspectStep{logger: logger}
}

// Name returns the step name.
func (s *InspectStep) Name() string {
	return StepInspect
}

// Do inspects run.HTMLPath.
func (s *InspectStep) Do(_ context.Context, run *model.Run) error {
	if run.HTMLPath == "" {
		return ErrNotConverted
	}

	page, err := notebook.InspectHTML(run.HTMLPath)
	if err != nil {
		return err
	}

	// nbconvert titles pages with the output name; prefer the notebook's own heading.
	if run.HTMLTitle == "" {
		run.HTMLTitle = page.Title
	}
	run.ErrorOutputs = page.ErrorOutputs

	if page.ErrorOutputs > 0 {
		s.logger.Warn("rendered notebook contains error output",
			"notebook", run.Notebook.Key(),
			"count", page.ErrorOutputs,
		)
	}
	s.logger.Debug("rendered notebook inspected",
		"notebook", run.Notebook.Key(),
		"images", page.Images,
		"tables", page.Tables,
	)

	return nil
}

// SummaryStep publishes the notebook summary next to the HTML page.
//
// Notebooks normally write their own summary through the analytics package.
// A summary written during this run is completed with run details; otherwise
// one is synthesized from run statistics so every page has a summary.
type SummaryStep struct {
	outputDir string
	logger    *slog.Logger
}

// NewSummaryStep creates a summary step for outputDir.
func NewSummaryStep(outputDir string, logger *slog.Logger) *SummaryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryStep{outputDir: outputDir, logger: logger}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return StepSummary
}

// Do loads or synthesizes the summary and writes it.
func (s *SummaryStep) Do(_ context.Context, run *model.Run) error {
	sum, err := s.written(run)
	if err != nil {
		return err
	}
	if sum == nil {
		s.logger.Info("notebook did not write a summary, synthesizing one",
			"notebook", run.Notebook.Key(),
		)
		sum = synthesize(run)
	}

	sum.SourcePath = run.Notebook.RelPath
	sum.SourceHash = run.SourceHash
	if run.HTMLPath != "" {
		if rel, err := filepath.Rel(s.outputDir, run.HTMLPath); err == nil {
			sum.HTMLPath = filepath.ToSlash(rel)
		}
	}

	path, err := summary.WriteNotebookSummary(s.outputDir, sum)
	if err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	// Reload to pick up the stamped timestamp and labels.
	written, err := summary.Load(path)
	if err != nil {
		return err
	}
	run.SummaryPath = path
	run.Summary = written
	return nil
}

// written returns the summary the notebook wrote during this run, or nil.
// Files older than the run are left over from earlier runs.
func (s *SummaryStep) written(run *model.Run) (*summary.NotebookSummary, error) {
	path := filepath.Join(s.outputDir, run.Notebook.ProjectID, run.Notebook.NotebookID+summary.FileSuffix)

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if info.ModTime().Before(run.StartedAt.Truncate(time.Second)) {
		return nil, nil
	}

	sum, err := summary.Load(path)
	if err != nil {
		return nil, err
	}
	if sum.Key() != run.Notebook.Key() {
		return nil, fmt.Errorf("summary %s belongs to %s, not %s", path, sum.Key(), run.Notebook.Key())
	}
	return sum, nil
}

// synthesize builds a summary from run statistics.
func synthesize(run *model.Run) *summary.NotebookSummary {
	sum := summary.NewNotebookSummary(run.Notebook.ProjectID, run.Notebook.NotebookID)
	sum.Title = run.HTMLTitle
	if sum.Title == "" {
		sum.Title = summary.LabelFromName(strings.ReplaceAll(run.Notebook.NotebookID, "-", "_"))
	}

	sum.AddMetric(summary.Metric{
		Name:      MetricExecutionSeconds,
		Label:     "Execution Time",
		Value:     time.Since(run.StartedAt).Seconds(),
		Unit:      "s",
		Precision: 1,
	})
	sum.AddMetric(summary.Metric{
		Name:  MetricCodeCells,
		Value: float64(run.CodeCells),
	})
	sum.AddMetric(summary.Metric{
		Name:  MetricErrorOutputs,
		Value: float64(run.ErrorOutputs),
	})
	return sum
}

// Recorder persists summaries. *database.HistoryDB implements it.
type Recorder interface {
	SaveSummary(ctx context.Context, runID string, s *summary.NotebookSummary) (int64, error)
}

// RecordStep stores the published summary in the history database.
// The run row itself is saved by the caller once the run has finished.
type RecordStep struct {
	recorder Recorder
}

// NewRecordStep creates a record step.
func NewRecordStep(recorder Recorder) *RecordStep {
	return &RecordStep{recorder: recorder}
}

// Name returns the step name.
func (s *RecordStep) Name() string {
	return StepRecord
}

// Do saves run.Summary, if any.
func (s *RecordStep) Do(ctx context.Context, run *model.Run) error {
	if run.Summary == nil {
		return nil
	}
	if _, err := s.recorder.SaveSummary(ctx, run.ID, run.Summary); err != nil {
		return fmt.Errorf("failed to record summary: %w", err)
	}
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// OutputDir receives HTML pages and summaries.
	OutputDir string

	// ExecutedDir receives papermill output notebooks.
	ExecutedDir string

	// Template is the nbconvert template.
	Template string

	// Papermill and Jupyter are the executables to invoke.
	Papermill string
	Jupyter   string

	// Project holds parameters, kernel and timeout for the notebook's project.
	Project config.ProjectConfig

	// Recorder, when set, adds the record step.
	Recorder Recorder

	// Logger is passed to the steps.
	Logger *slog.Logger
}

// DefaultPipelineOption configures the default pipeline.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineProject sets per-project settings.
func WithPipelineProject(pc config.ProjectConfig) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Project = pc
	}
}

// WithPipelineRecorder enables the record step.
func WithPipelineRecorder(r Recorder) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Recorder = r
	}
}

// WithPipelineLogger sets the step logger.
func WithPipelineLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// ConfigFrom copies directories, template and executables from cfg.
func ConfigFrom(cfg *config.Config) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.OutputDir = cfg.OutputDir
		c.ExecutedDir = cfg.ExecutedDir
		c.Template = cfg.Template
		c.Papermill = cfg.Papermill
		c.Jupyter = cfg.Jupyter
	}
}

// DefaultPipeline creates the execute, convert, inspect, summary (and,
// with a recorder, record) pipeline for one notebook. The project timeout
// is applied unless pipelineOpts set another one.
func DefaultPipeline(executor Executor, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	cfg := &DefaultPipelineConfig{
		OutputDir:   config.DefaultOutputDir,
		ExecutedDir: os.TempDir(),
		Template:    config.DefaultTemplate,
		Papermill:   config.DefaultPapermill,
		Jupyter:     config.DefaultJupyter,
		Logger:      slog.Default(),
	}

	for _, opt := range configOpts {
		opt(cfg)
	}

	opts := make([]Option, 0, len(pipelineOpts)+1)
	opts = append(opts, WithTimeout(cfg.Project.Timeout))
	opts = append(opts, pipelineOpts...)
	p := New(opts...)

	p.AddSteps(
		NewExecuteStep(executor, cfg.ExecutedDir,
			WithPapermill(cfg.Papermill),
			WithParameters(cfg.Project.ParameterArgs()),
			WithKernel(cfg.Project.Kernel),
			WithExecuteLogger(cfg.Logger),
		),
		NewConvertStep(executor, cfg.OutputDir,
			WithTemplate(cfg.Template),
			WithJupyter(cfg.Jupyter),
		),
		NewInspectStep(cfg.Logger),
		NewSummaryStep(cfg.OutputDir, cfg.Logger),
	)

	if cfg.Recorder != nil {
		p.AddStep(NewRecordStep(cfg.Recorder))
	}

	return p
}
