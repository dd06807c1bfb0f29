// Package notifications pushes search and download outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally.
package notifications
