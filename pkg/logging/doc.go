// Package logging provides the subsystem logger used across chapterbase.
//
// It is a thin layer over log/slog: every line carries a subsystem key, the
// level is set once at startup, and output is text (default) or JSON.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Session", "Loaded session from %s", path)
//	logging.Error("Login", err, "Token exchange failed")
//
// Session lifecycle events use Audit, which prefixes the message with
// SECURITY_AUDIT and adds an event key. Token values are never logged.
package logging
