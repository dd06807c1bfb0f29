// Package daemonctl starts and stops a detached eventarr daemon from the CLI.
//
// The daemon is found through its HTTP API first and its pid file second;
// Stop escalates from SIGTERM to SIGKILL after a grace period.
package daemonctl
