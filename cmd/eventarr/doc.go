// Package main hosts the eventarr CLI.
//
// The Cobra command tree turns terminal invocations into HTTP calls against
// the daemon API: queueing searches, inspecting the queue, scoring and
// matching ad-hoc release titles, editing the blocklist and reporting download
// outcomes. Local-only commands (check, catalog, config) read the configuration
// and catalog directly without contacting the daemon.
package main
