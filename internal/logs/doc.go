// Package logs reads the daemon's log file for `eventarr logs`: the last N
// lines, then optionally new lines as they are appended. Memory stays bounded
// by the requested line count.
package logs
