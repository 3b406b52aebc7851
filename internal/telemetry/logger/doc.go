// Package logger provides structured logging for the cluster topology
// manager.
//
// It wraps the standard library log/slog:
//
//   - logger.go: slog handler construction and level control
//   - context.go: context-aware logging with tick/request correlation IDs
//   - redact.go: sensitive field redaction
//
// @design DS-0502
package logger
