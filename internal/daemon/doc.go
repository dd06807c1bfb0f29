// Package daemon wires the long-running eventarr process together.
//
// New builds the catalog, release sources, breaker, blocklist manager,
// scorer, pack matcher and search queue from configuration. Start takes a
// flock-based lock to prevent multiple instances, starts the worker pool and
// serves the HTTP API. The Daemon itself implements api.Service, so every
// API call lands on one of the components it owns.
//
// Keep decision logic in the component packages; the daemon only handles
// startup, shutdown and delegation.
package daemon
