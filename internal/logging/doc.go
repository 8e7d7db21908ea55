// Package logging assembles structured slog loggers and formatting helpers used
// across animesync.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with run identifiers, stages, and provider names. The CLI logger writes
// the configured format to stderr and a JSON copy to the log directory.
//
// Provider endpoints embed access keys; callers redact messages before logging
// them.
package logging
