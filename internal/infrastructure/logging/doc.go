// Package logging provides the structured logger used across the agent.
//
// It wraps log/slog with level parsing, format selection, and default
// service/version attributes. Packages that need logging accept a small
// Logger interface locally and default to a no-op implementation, so only
// cmd/signaged depends on this package directly.
package logging
