// Package logger provides the structured logging interface used across pinmark.
//
// It wraps zerolog. Console output goes to stderr in a colored, human-readable
// form; when a log file is configured every line is also appended to it as JSON.
//
// Basic Usage:
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("url", pageURL).Info("Loading page")
//	log.WithError(err).Error("Failed to fetch fragment")
//
// Components take a Logger in their constructors. Tests pass NewTestLogger()
// to capture lines or NewNopLogger() to discard them.
package logger
