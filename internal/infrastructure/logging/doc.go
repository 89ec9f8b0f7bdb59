// Package logging provides structured logging for Telemetry Core.
//
// It wraps log/slog with service defaults (service name, version) and
// level filtering driven by configuration. Components derive scoped
// loggers with With("component", name).
package logging
