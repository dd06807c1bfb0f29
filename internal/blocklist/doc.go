// Package blocklist persists refused releases and the grab history used to
// resolve failed downloads back to their release.
//
// The SQLite Store holds two tables: blocklist entries keyed by content hash
// and grabs keyed by download id. Manager is the write path: it serializes
// every mutation behind one mutex, keeps an in-memory index of blocked hashes
// for the scorer, counts import failures against a cap and can re-enqueue a
// search after a download fails. Entries never expire; Remove is the explicit
// override.
package blocklist
