package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/eeshansrivastava89/datascienceapps/internal/config"
	applog "github.com/eeshansrivastava89/datascienceapps/internal/log"
)

// testTree is an isolated working tree with its own configuration file, so
// commands never read the user's configuration or history database.
type testTree struct {
	dir          string
	configPath   string
	notebooksDir string
	outputDir    string
	dbDir        string
}

// newTestTree writes a configuration pointing every directory into a fresh
// temporary directory. extraConfig is appended verbatim.
func newTestTree(t *testing.T, extraConfig string) testTree {
	t.Helper()

	dir := t.TempDir()
	tree := testTree{
		dir:          dir,
		configPath:   filepath.Join(dir, ".nbsummary.yaml"),
		notebooksDir: filepath.Join(dir, "analytics", "notebooks"),
		outputDir:    filepath.Join(dir, "public", "analysis"),
		dbDir:        filepath.Join(dir, "db"),
	}

	content := fmt.Sprintf(`notebooks_dir: %q
output_dir: %q
db_dir: %q
executed_dir: %q
env_file: %q
requirements: %q
%s
`,
		tree.notebooksDir,
		tree.outputDir,
		tree.dbDir,
		filepath.Join(dir, "executed"),
		filepath.Join(dir, ".env"),
		filepath.Join(dir, "requirements.txt"),
		extraConfig,
	)
	writeTestFile(t, tree.configPath, content)

	return tree
}

// execute runs the root command with args plus "-c <config>".
func (tree testTree) execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeCmd(t, append(args, "-c", tree.configPath)...)
}

// executeCmd runs the root command and captures its output.
func executeCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeTestFile writes content to path, creating parent directories.
func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// writeScript writes an executable shell script and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o700); err != nil { //nolint:gosec // test script must be executable
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "nbsummary" {
			t.Errorf("expected use 'nbsummary', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions and version", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty descriptions")
		}
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has persistent flags", func(t *testing.T) {
		t.Parallel()
		shorthands := map[string]string{
			"verbose":       "v",
			"config":        "c",
			"notebooks-dir": "",
			"output-dir":    "",
		}
		for name, shorthand := range shorthands {
			flag := cmd.PersistentFlags().Lookup(name)
			if flag == nil {
				t.Errorf("expected persistent flag %q", name)
				continue
			}
			if flag.Shorthand != shorthand {
				t.Errorf("flag %q: expected shorthand %q, got %q", name, shorthand, flag.Shorthand)
			}
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := []string{"run", "list", "check", "write", "show", "compare", "index", "init", "version"}
		have := make(map[string]bool)
		for _, sub := range cmd.Commands() {
			have[sub.Name()] = true
		}
		for _, name := range want {
			if !have[name] {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage {
			t.Error("expected SilenceUsage to be true")
		}
		if !cmd.SilenceErrors {
			t.Error("expected SilenceErrors to be true")
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("config file and flags", func(t *testing.T) {
		t.Parallel()

		tree := newTestTree(t, "batch_size: 3\nexclude:\n  - \"drafts/**\"")

		root := NewRootCmd()
		for name, value := range map[string]string{"config": tree.configPath, "output-dir": "site/out"} {
			if err := root.PersistentFlags().Set(name, value); err != nil {
				t.Fatalf("failed to set %s: %v", name, err)
			}
		}
		sub, _, err := root.Find([]string{"list"})
		if err != nil {
			t.Fatalf("failed to find list: %v", err)
		}

		cfg, err := loadConfig(sub)
		if err != nil {
			t.Fatalf("loadConfig failed: %v", err)
		}
		if cfg.NotebooksDir != tree.notebooksDir {
			t.Errorf("expected notebooks dir from file, got %q", cfg.NotebooksDir)
		}
		if cfg.OutputDir != "site/out" {
			t.Errorf("expected flag to override output dir, got %q", cfg.OutputDir)
		}
		if cfg.BatchSize != 3 {
			t.Errorf("expected batch size 3, got %d", cfg.BatchSize)
		}
		if cfg.DBDir != tree.dbDir {
			t.Errorf("expected db dir from file, got %q", cfg.DBDir)
		}
	})

	t.Run("explicit missing config is an error", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeCmd(t, "list", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
		if err == nil {
			t.Fatal("expected error for missing config file")
		}
	})

	t.Run("invalid config is an error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.yaml")
		writeTestFile(t, path, "batch_size: [not, a, number]\n")
		_, _, err := executeCmd(t, "list", "-c", path)
		if err == nil {
			t.Fatal("expected error for invalid config file")
		}
	})
}

func TestGetVerboseFlag(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	if err := root.PersistentFlags().Set("verbose", "true"); err != nil {
		t.Fatalf("failed to set verbose: %v", err)
	}
	sub, _, err := root.Find([]string{"list"})
	if err != nil {
		t.Fatalf("failed to find list: %v", err)
	}

	if !getVerboseFlag(sub) {
		t.Error("expected verbose from root persistent flags")
	}
	if getStringFlag(sub, "no-such-flag") != "" {
		t.Error("expected empty value for unknown flag")
	}
}

func TestLoadEnvRegistersSecrets(t *testing.T) {
	const (
		anonKeyName = "NBSUMMARY_TEST_SUPABASE_ANON_KEY"
		urlName     = "NBSUMMARY_TEST_SUPABASE_URL"
		anonKey     = "anon-7f3c9e2b41d8"
		url         = "https://xyzcompany.supabase.co"
	)
	for _, name := range []string{anonKeyName, urlName} {
		t.Setenv(name, "")
		os.Unsetenv(name) //nolint:errcheck // restored by t.Setenv
	}

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	writeTestFile(t, envFile, anonKeyName+"="+anonKey+"\n"+urlName+"="+url+"\n")

	cfg := config.NewConfig()
	cfg.EnvFile = envFile
	cfg.RequiredEnv = []string{urlName, anonKeyName}

	redactor := applog.NewRedactor()
	names, err := loadEnv(cfg, redactor)
	if err != nil {
		t.Fatalf("loadEnv failed: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("expected 2 names, got %v", names)
	}

	var buf bytes.Buffer
	logger := applog.NewSecureLogger(&buf, true, applog.WithRedactor(redactor))
	logger.Error("papermill failed",
		"error", fmt.Errorf("request to %s with apikey %s rejected", url, anonKey),
		"command", []string{"papermill", "in.ipynb", "out.ipynb", "-p", "api_base", url, "-p", "anon", anonKey},
	)

	out := buf.String()
	if strings.Contains(out, anonKey) {
		t.Errorf("anon key leaked into log:\n%s", out)
	}
	if !strings.Contains(out, url) {
		t.Errorf("expected the public URL to stay readable:\n%s", out)
	}
}
