package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrToolNotFound is returned by CheckTools when an executable is not in PATH.
var ErrToolNotFound = errors.New("required tool not found in PATH")

// Command is an external program invocation.
type Command struct {
	// Name is the executable, looked up in PATH.
	Name string

	// Args are passed verbatim; no shell is involved.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is appended to the inherited environment.
	Env []string
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// LogValue logs the executable and its arguments separately. The secure
// logger treats the argument list as a command line and masks secret
// parameter values in it.
func (c Command) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("name", c.Name),
		slog.Any("args", c.Args),
	}
	if c.Dir != "" {
		attrs = append(attrs, slog.String("dir", c.Dir))
	}
	return slog.GroupValue(attrs...)
}

// Executor runs external commands. Steps depend on this interface so tests
// can record commands instead of running papermill and jupyter.
type Executor interface {
	Run(ctx context.Context, cmd Command) error
}

// CommandExecutor runs commands with os/exec, inheriting the environment and
// streaming their output.
type CommandExecutor struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// ExecutorOption configures a CommandExecutor.
type ExecutorOption func(*CommandExecutor)

// WithOutput sets where command stdout and stderr are written.
// Defaults to os.Stdout and os.Stderr.
func WithOutput(stdout, stderr io.Writer) ExecutorOption {
	return func(e *CommandExecutor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithExecutorLogger sets a custom logger for the executor.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *CommandExecutor) {
		e.logger = logger
	}
}

// NewCommandExecutor creates a CommandExecutor.
func NewCommandExecutor(opts ...ExecutorOption) *CommandExecutor {
	e := &CommandExecutor{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

// Run starts cmd and waits for it. When ctx is done the process is killed
// and the context error is returned wrapped, so callers can tell a timeout
// from a failing notebook.
func (e *CommandExecutor) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...) //nolint:gosec // commands are built from configuration, not user input
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdout = e.stdout
	c.Stderr = e.stderr
	// Give jupyter kernels a moment to exit after the parent is killed.
	c.WaitDelay = 5 * time.Second

	e.logger.Debug("running command", "command", cmd)

	start := time.Now()
	err := c.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s interrupted after %s: %w", cmd.Name, elapsed.Round(time.Millisecond), ctxErr)
		}
		return fmt.Errorf("%s failed: %w", cmd.Name, err)
	}

	e.logger.Debug("command finished", "command", cmd.Name, "elapsed", elapsed)
	return nil
}

// InstallRequirements runs "pip install -q -r requirementsPath".
func InstallRequirements(ctx context.Context, executor Executor, pip, requirementsPath string) error {
	if _, err := os.Stat(requirementsPath); err != nil {
		return fmt.Errorf("requirements file %s: %w", requirementsPath, err)
	}
	cmd := Command{
		Name: pip,
		Args: []string{"install", "-q", "-r", requirementsPath},
	}
	if err := executor.Run(ctx, cmd); err != nil {
		return fmt.Errorf("failed to install requirements: %w", err)
	}
	return nil
}

// CheckTools verifies that every named executable is in PATH.
// All missing tools are reported together.
func CheckTools(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrToolNotFound, strings.Join(missing, ", "))
	}
	return nil
}
