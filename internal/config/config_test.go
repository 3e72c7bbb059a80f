package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default directories", func(t *testing.T) {
		t.Parallel()
		if cfg.NotebooksDir != "analytics/notebooks" {
			t.Errorf("expected NotebooksDir to be 'analytics/notebooks', got '%s'", cfg.NotebooksDir)
		}
		if cfg.OutputDir != "public/analysis" {
			t.Errorf("expected OutputDir to be 'public/analysis', got '%s'", cfg.OutputDir)
		}
		if cfg.RequirementsFile != "analytics/requirements.txt" {
			t.Errorf("expected RequirementsFile to be 'analytics/requirements.txt', got '%s'", cfg.RequirementsFile)
		}
		if cfg.ExecutedDir == "" {
			t.Error("expected non-empty ExecutedDir")
		}
	})

	t.Run("default template is lab", func(t *testing.T) {
		t.Parallel()
		if cfg.Template != "lab" {
			t.Errorf("expected Template to be 'lab', got '%s'", cfg.Template)
		}
	})

	t.Run("default timeout is 30 minutes", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 30*time.Minute {
			t.Errorf("expected Timeout to be 30m, got %v", cfg.Timeout)
		}
	})

	t.Run("default BatchSize is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 1 {
			t.Errorf("expected BatchSize to be 1, got %d", cfg.BatchSize)
		}
	})

	t.Run("default required env is Supabase", func(t *testing.T) {
		t.Parallel()
		want := []string{"PUBLIC_SUPABASE_URL", "PUBLIC_SUPABASE_ANON_KEY"}
		if diff := cmp.Diff(want, cfg.RequiredEnv); diff != "" {
			t.Errorf("RequiredEnv mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("defaults validate", func(t *testing.T) {
		t.Parallel()
		if err := NewConfig().Validate(); err != nil {
			t.Errorf("expected valid defaults, got %v", err)
		}
	})
}

// TestConfigValidate tests configuration validation.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		mutate   func(*Config)
		expected error
	}{
		{"empty notebooks dir", func(c *Config) { c.NotebooksDir = "" }, ErrNoNotebooksDir},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }, ErrNoOutputDir},
		{"empty template", func(c *Config) { c.Template = "" }, ErrNoTemplate},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, ErrInvalidTimeout},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"json and markdown", func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, ErrConflictingReportFormats},
		{"json only", func(c *Config) { c.JSONReport = true }, nil},
		{"markdown only", func(c *Config) { c.MarkdownReport = true }, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, err)
			}
		})
	}
}

// TestFileGetProjectConfig tests merging project settings with defaults.
func TestFileGetProjectConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: ProjectConfig{
			Parameters: map[string]any{"days": 30, "env": "prod"},
			Timeout:    10 * time.Minute,
		},
		Projects: map[string]ProjectConfig{
			"ab-simulator": {
				Parameters: map[string]any{"days": 7},
				Kernel:     "python3",
			},
			"legacy": {Skip: true, Timeout: time.Hour},
		},
	}

	t.Run("returns defaults when project not found", func(t *testing.T) {
		t.Parallel()

		got := cf.GetProjectConfig("unknown")
		if diff := cmp.Diff(cf.Defaults, got); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("project parameters override defaults", func(t *testing.T) {
		t.Parallel()

		got := cf.GetProjectConfig("ab-simulator")
		want := ProjectConfig{
			Parameters: map[string]any{"days": 7, "env": "prod"},
			Timeout:    10 * time.Minute,
			Kernel:     "python3",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}
		if cf.Defaults.Parameters["days"] != 30 {
			t.Error("merging must not modify defaults")
		}
	})

	t.Run("skip and timeout", func(t *testing.T) {
		t.Parallel()

		got := cf.GetProjectConfig("legacy")
		if !got.Skip || got.Timeout != time.Hour {
			t.Errorf("unexpected config %+v", got)
		}
	})

	t.Run("parameter args are sorted", func(t *testing.T) {
		t.Parallel()

		got := cf.GetProjectConfig("ab-simulator").ParameterArgs()
		want := []string{"-p", "days", "7", "-p", "env", "prod"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("args mismatch (-want +got):\n%s", diff)
		}
	})
}

// TestConfigApplyFile tests that file settings override defaults.
func TestConfigApplyFile(t *testing.T) {
	t.Parallel()

	t.Run("nil file keeps defaults", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplyFile(nil)
		if cfg.NotebooksDir != DefaultNotebooksDir {
			t.Errorf("expected default notebooks dir, got %q", cfg.NotebooksDir)
		}
	})

	t.Run("non-zero values override", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplyFile(&File{
			NotebooksDir: "nb",
			OutputDir:    "site/analysis",
			Template:     "classic",
			RequiredEnv:  []string{},
			Exclude:      []string{"**/scratch/**"},
			BatchSize:    4,
			Papermill:    "/opt/venv/bin/papermill",
			Defaults:     ProjectConfig{Timeout: 5 * time.Minute},
			Projects:     map[string]ProjectConfig{"p": {Timeout: time.Minute}},
		})

		if cfg.NotebooksDir != "nb" || cfg.OutputDir != "site/analysis" || cfg.Template != "classic" {
			t.Errorf("directories not applied: %+v", cfg)
		}
		if len(cfg.RequiredEnv) != 0 {
			t.Errorf("expected explicit empty required env, got %v", cfg.RequiredEnv)
		}
		if cfg.BatchSize != 4 || cfg.Timeout != 5*time.Minute {
			t.Errorf("unexpected batch size %d / timeout %v", cfg.BatchSize, cfg.Timeout)
		}
		if cfg.Papermill != "/opt/venv/bin/papermill" || cfg.Jupyter != DefaultJupyter {
			t.Errorf("unexpected executables %q / %q", cfg.Papermill, cfg.Jupyter)
		}
		if cfg.RequirementsFile != DefaultRequirementsFile {
			t.Errorf("expected default requirements, got %q", cfg.RequirementsFile)
		}
		if cfg.Project("p").Timeout != time.Minute {
			t.Errorf("expected project timeout 1m, got %v", cfg.Project("p").Timeout)
		}
		if cfg.Project("other").Timeout != 5*time.Minute {
			t.Errorf("expected default timeout 5m, got %v", cfg.Project("other").Timeout)
		}
	})
}

// TestLoadConfigFile tests YAML loading.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `notebooks_dir: analytics/notebooks
output_dir: public/analysis
template: lab
exclude:
  - "**/drafts/**"
defaults:
  timeout: 15m
  parameters:
    days: 30
projects:
  ab-simulator:
    kernel: python3
    parameters:
      variant: "B"
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile failed: %v", err)
		}

		got := cf.GetProjectConfig("ab-simulator")
		want := ProjectConfig{
			Parameters: map[string]any{"days": 30, "variant": "B"},
			Timeout:    15 * time.Minute,
			Kernel:     "python3",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("project config mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"**/drafts/**"}, cf.Exclude); diff != "" {
			t.Errorf("exclude mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("projects: [unclosed"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Projects map", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "empty.yaml")
		if err := os.WriteFile(path, []byte("template: lab\n"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile failed: %v", err)
		}
		if cf.Projects == nil {
			t.Error("expected initialized Projects map")
		}
	})
}

// TestFindConfigFile tests config file lookup.
func TestFindConfigFile(t *testing.T) {
	t.Run("returns explicit path if exists", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); got != "" {
			t.Errorf("expected empty path, got %q", got)
		}
	})

	t.Run("finds file in current directory", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("{}"), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		t.Chdir(dir)

		got := FindConfigFile("")
		if filepath.Base(got) != DefaultConfigFile {
			t.Errorf("expected %s in cwd, got %q", DefaultConfigFile, got)
		}
	})
}

// TestEnv tests .env loading and required variable checks.
func TestEnv(t *testing.T) {
	t.Run("loads without overriding existing variables", func(t *testing.T) {
		t.Setenv("NBSUMMARY_TEST_EXISTING", "from-shell")
		t.Setenv("NBSUMMARY_TEST_NEW", "")
		os.Unsetenv("NBSUMMARY_TEST_NEW") //nolint:errcheck // restored by t.Setenv

		path := filepath.Join(t.TempDir(), ".env")
		content := "# comment\nNBSUMMARY_TEST_EXISTING=from-file\nNBSUMMARY_TEST_NEW=\"quoted value\"\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}

		names, err := LoadEnv(path)
		if err != nil {
			t.Fatalf("LoadEnv failed: %v", err)
		}
		if diff := cmp.Diff([]string{"NBSUMMARY_TEST_EXISTING", "NBSUMMARY_TEST_NEW"}, names); diff != "" {
			t.Errorf("names mismatch (-want +got):\n%s", diff)
		}
		if got := os.Getenv("NBSUMMARY_TEST_EXISTING"); got != "from-shell" {
			t.Errorf("expected existing value kept, got %q", got)
		}
		if got := os.Getenv("NBSUMMARY_TEST_NEW"); got != "quoted value" {
			t.Errorf("expected value from file, got %q", got)
		}
	})

	t.Run("missing file is not an error", func(t *testing.T) {
		names, err := LoadEnv(filepath.Join(t.TempDir(), ".env"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if names != nil {
			t.Errorf("expected nil names, got %v", names)
		}
	})

	t.Run("empty file is loaded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte("# nothing yet\n"), 0600); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		names, err := LoadEnv(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if names == nil || len(names) != 0 {
			t.Errorf("expected empty non-nil names, got %#v", names)
		}
	})

	t.Run("check reports every missing variable", func(t *testing.T) {
		t.Setenv("NBSUMMARY_TEST_SET", "x")
		t.Setenv("NBSUMMARY_TEST_BLANK", "  ")

		err := CheckEnv([]string{"NBSUMMARY_TEST_SET", "NBSUMMARY_TEST_BLANK", "NBSUMMARY_TEST_UNSET_VARIABLE"})
		if !errors.Is(err, ErrMissingEnv) {
			t.Fatalf("expected ErrMissingEnv, got %v", err)
		}
		want := "missing required environment variables: NBSUMMARY_TEST_BLANK, NBSUMMARY_TEST_UNSET_VARIABLE"
		if err.Error() != want {
			t.Errorf("expected %q, got %q", want, err.Error())
		}
		if err := CheckEnv([]string{"NBSUMMARY_TEST_SET"}); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

// TestXDGDirs tests XDG directory helpers.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if filepath.Base(XDGDataDir()) != AppName {
		t.Errorf("expected data dir to end in %s, got %q", AppName, XDGDataDir())
	}
	if filepath.Base(XDGConfigDir()) != AppName {
		t.Errorf("expected config dir to end in %s, got %q", AppName, XDGConfigDir())
	}
}
