// Package log provides the logger used by every command: log/slog with a
// handler that masks secrets before they reach the output.
//
// Notebook runs handle Supabase credentials. They arrive through the env
// file, are passed to notebooks as papermill parameters and show up in
// command lines and error messages. The Redactor masks:
//   - attributes whose name has a sensitive word (key, token, secret, ...)
//   - JWTs, Supabase sb_ keys, bearer values and connection URLs with a password
//   - papermill -p parameters whose name is sensitive
//   - literal values registered at runtime, such as the env file variables
//
// # Usage
//
//	redactor := log.NewRedactor()
//	logger := log.NewSecureLogger(os.Stderr, verbose, log.WithRedactor(redactor))
//	names, _ := config.LoadEnv(".env")
//	redactor.AddEnv(names...)
//	logger.Debug("running command", "command", cmd) // -p anon_key ***REDACTED***
package log
