package main

import (
	"errors"
	"fmt"

	"github.com/eeshansrivastava89/datascienceapps/internal/pipeline"
	"github.com/spf13/cobra"
)

// errCheckFailed is returned when the environment is not ready to run
// notebooks.
var errCheckFailed = errors.New("environment check failed")

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the environment and install notebook requirements",
		Long: `Check loads the env file, verifies the required environment variables,
looks up papermill, jupyter and pip in PATH and installs the requirements
file. Nothing is executed or published.`,
		Args: cobra.NoArgs,
		RunE: runCheckCmd,
	}

	cmd.Flags().Bool("skip-install", false, "Do not install the requirements file with pip")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	skipInstall, err := cmd.Flags().GetBool("skip-install")
	if err != nil {
		return err
	}
	cfg.SkipInstall = cfg.SkipInstall || skipInstall

	logger, redactor := setupSecretLogger(cfg.Verbose)
	out := cmd.OutOrStdout()

	names, err := loadEnv(cfg, redactor)
	if err != nil {
		return err
	}
	if names != nil {
		fmt.Fprintf(out, "Loaded %s\n\n", cfg.EnvFile)
	}

	ok := printEnvStatus(out, cfg)

	fmt.Fprintln(out, "\nTools:")
	tools := []string{cfg.Papermill, cfg.Jupyter}
	if !cfg.SkipInstall {
		tools = append(tools, cfg.Pip)
	}
	for _, tool := range tools {
		if err := pipeline.CheckTools(tool); err != nil {
			fmt.Fprintf(out, "  ✗ %s not found\n", tool)
			ok = false
			continue
		}
		fmt.Fprintf(out, "  ✓ %s\n", tool)
	}

	if !ok {
		return errCheckFailed
	}

	if !cfg.SkipInstall {
		ctx, cancel := signalContext(cmd.Context(), logger)
		defer cancel()

		executor := pipeline.NewCommandExecutor(
			pipeline.WithOutput(cmd.ErrOrStderr(), cmd.ErrOrStderr()),
			pipeline.WithExecutorLogger(logger),
		)
		fmt.Fprintf(out, "\nInstalling requirements from %s...\n", cfg.RequirementsFile)
		if err := pipeline.InstallRequirements(ctx, executor, cfg.Pip, cfg.RequirementsFile); err != nil {
			return err
		}
		fmt.Fprintln(out, "  ✓ requirements installed")
	}

	fmt.Fprintln(out, "\n✓ Ready")
	return nil
}
