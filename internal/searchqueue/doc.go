// Package searchqueue runs event searches on a bounded worker pool.
//
// An Orchestrator accepts search requests, dispatches them to a fixed number
// of workers in the order they were queued, and publishes a point-in-time
// Snapshot after every state change so pollers never contend with workers.
// Each worker takes a settings snapshot for its item, fans the query out to
// every source whose breaker is closed, filters the combined releases through
// pack matching and the quality scorer, ranks what survives and optionally
// hands the best candidate to a download client. Source failures only update
// source health; an item fails when no source answered or when acquisition of
// every candidate failed.
//
// Cancellation is cooperative: a queued item is cancelled at once, a
// searching item stops at its next checkpoint before an outbound call.
package searchqueue
