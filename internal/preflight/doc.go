// Package preflight provides readiness checks for the filesystem paths,
// catalog and release sources eventarr depends on.
//
// The daemon runs RunAll at startup and logs every failed check without
// refusing to start. The CLI "eventarr check" command prints the same
// results, optionally probing each source's caps endpoint.
package preflight
