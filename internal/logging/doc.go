// Package logging assembles structured slog loggers shared across quizbooth.
//
// It owns the console and JSON handlers, centralizes level plumbing, and
// exposes context-aware helpers so wizard and service code automatically tag
// log lines with stages, result IDs, and correlation IDs. A no-op logger is
// provided for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
