package config

import (
	"fmt"
	"sort"
	"time"
)

// ProjectConfig holds settings for the notebooks of one project.
type ProjectConfig struct {
	// Parameters are injected into the notebook's "parameters" cell with
	// papermill -p.
	Parameters map[string]any `yaml:"parameters,omitempty"`

	// Timeout overrides the global per-notebook timeout.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Kernel overrides the notebook's kernel (papermill -k).
	Kernel string `yaml:"kernel,omitempty"`

	// Skip excludes the whole project from runs.
	Skip bool `yaml:"skip,omitempty"`
}

// ParameterArgs renders Parameters as papermill arguments, sorted by name
// so the command line is deterministic.
func (pc ProjectConfig) ParameterArgs() []string {
	names := make([]string, 0, len(pc.Parameters))
	for name := range pc.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]string, 0, len(names)*3)
	for _, name := range names {
		args = append(args, "-p", name, fmt.Sprint(pc.Parameters[name]))
	}
	return args
}

// File represents the structure of the .nbsummary.yaml configuration file.
type File struct {
	NotebooksDir string   `yaml:"notebooks_dir,omitempty"`
	OutputDir    string   `yaml:"output_dir,omitempty"`
	ExecutedDir  string   `yaml:"executed_dir,omitempty"`
	Requirements string   `yaml:"requirements,omitempty"`
	Template     string   `yaml:"template,omitempty"`
	EnvFile      string   `yaml:"env_file,omitempty"`
	RequiredEnv  []string `yaml:"required_env,omitempty"`
	Exclude      []string `yaml:"exclude,omitempty"`
	BatchSize    int      `yaml:"batch_size,omitempty"`
	DBDir        string   `yaml:"db_dir,omitempty"`
	Papermill    string   `yaml:"papermill,omitempty"`
	Jupyter      string   `yaml:"jupyter,omitempty"`
	Pip          string   `yaml:"pip,omitempty"`

	// Projects maps project IDs to their settings.
	Projects map[string]ProjectConfig `yaml:"projects,omitempty"`

	// Defaults apply to every project unless overridden.
	Defaults ProjectConfig `yaml:"defaults,omitempty"`
}

// GetProjectConfig returns the configuration for a project, merged with
// defaults. Project parameters are added to (and override) default ones.
func (cf *File) GetProjectConfig(projectID string) ProjectConfig {
	result := cf.Defaults
	if len(cf.Defaults.Parameters) > 0 {
		result.Parameters = make(map[string]any, len(cf.Defaults.Parameters))
		for k, v := range cf.Defaults.Parameters {
			result.Parameters[k] = v
		}
	}

	pc, ok := cf.Projects[projectID]
	if !ok {
		return result
	}

	if len(pc.Parameters) > 0 {
		if result.Parameters == nil {
			result.Parameters = make(map[string]any, len(pc.Parameters))
		}
		for k, v := range pc.Parameters {
			result.Parameters[k] = v
		}
	}
	if pc.Timeout > 0 {
		result.Timeout = pc.Timeout
	}
	if pc.Kernel != "" {
		result.Kernel = pc.Kernel
	}
	if pc.Skip {
		result.Skip = true
	}

	return result
}
