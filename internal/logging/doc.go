// Package logging assembles structured slog loggers and formatting helpers used
// across bettermarkers.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so embed and recovery code can tag
// log lines with the media path and a correlation ID. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
