// Package api defines the HTTP surface of the eventarr daemon and the client
// the CLI uses to reach it.
//
// # Key Types
//
// Service: the operations the daemon exposes (search queue, release
// evaluation, pack matching, blocklist and download feedback, source health).
//
// Server: chi router with bearer-token authentication, request logging and
// a Prometheus /metrics endpoint.
//
// Client: typed HTTP client mirroring every route.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Queue items, evaluations and match results
// are served in their package representations; request bodies wrap them in
// small envelope types. Errors are returned as {"error", "kind"} where kind
// is the services marker name (validation_error, not_found, ...), so clients can
// branch without parsing messages.
package api
