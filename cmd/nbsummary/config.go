package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/eeshansrivastava89/datascienceapps/internal/config"
	"github.com/eeshansrivastava89/datascienceapps/internal/database"
	applog "github.com/eeshansrivastava89/datascienceapps/internal/log"
	"github.com/spf13/cobra"
)

// loadConfig builds a Config from defaults, the configuration file and the
// global flags, in that order of precedence (flags win).
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.ConfigFilePath = getStringFlag(cmd, "config")

	// If the user explicitly specified a config file path, error if not found.
	// Otherwise run with defaults when no file is found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		f, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(f)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if dir := getStringFlag(cmd, "notebooks-dir"); dir != "" {
		cfg.NotebooksDir = dir
	}
	if dir := getStringFlag(cmd, "output-dir"); dir != "" {
		cfg.OutputDir = dir
	}

	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getStringFlag retrieves a string flag from the command or the root's
// persistent flags. A flag that exists nowhere reads as "".
func getStringFlag(cmd *cobra.Command, name string) string {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		value, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return value
}

// setupLogger creates the secure structured logger used by every command.
// Logs go to stderr so that stdout only carries reports.
func setupLogger(verbose bool) *slog.Logger {
	logger, _ := setupSecretLogger(verbose)
	return logger
}

// setupSecretLogger is setupLogger for commands that load the env file.
// Secrets registered on the returned redactor are masked from then on.
func setupSecretLogger(verbose bool) (*slog.Logger, *applog.Redactor) {
	redactor := applog.NewRedactor()
	logger := applog.NewSecureLogger(os.Stderr, verbose, applog.WithRedactor(redactor))
	slog.SetDefault(logger)
	return logger, redactor
}

// loadEnv loads the env file and registers the values of its sensitive
// variables, and of the required ones, with redactor. It returns the names
// the file defines, nil when there is no file.
func loadEnv(cfg *config.Config, redactor *applog.Redactor) ([]string, error) {
	names, err := config.LoadEnv(cfg.EnvFile)
	if err != nil {
		return nil, err
	}
	redactor.AddEnv(names...)
	redactor.AddEnv(cfg.RequiredEnv...)
	return names, nil
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM,
// or when the returned cancel function is called.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// openHistory opens the history database. With create false a missing
// database is an error, which read-only commands report to the user.
func openHistory(cfg *config.Config, create bool) (*database.HistoryDB, error) {
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = create

	db, err := database.Open(cfg.DBDir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return db, nil
}
