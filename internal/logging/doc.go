// Package logging assembles structured slog loggers and formatting helpers used
// across narrate.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so stage code automatically tags log lines
// with the work, chapter, stage, and correlation id. The package also provides
// a no-op logger for tests and wiring code that cannot fail.
package logging
