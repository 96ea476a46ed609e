// Package logging provides structured logging helpers built on log/slog.
//
// It defines the canonical attribute keys used across the triage pipeline
// (operation, thread, uid, intent, status) so that log lines from the
// engine, the adapters, and the MCP surface can be correlated, plus a small
// Logger interface for components that take an injected logger.
package logging
