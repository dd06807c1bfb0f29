// Package services defines shared utilities consumed by the search workers,
// the blocklist manager and the HTTP surface.
//
// Key responsibilities:
//   - Context helpers that stamp search item IDs, event IDs, source names and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (source failure, validation, not found) without string
//     matching.
//
// Use these helpers when wiring new worker logic so operational behaviour
// (error handling, observability, retries) stays uniform across the engine.
package services
