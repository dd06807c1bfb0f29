// Package daemonrun hosts the foreground daemon process: logger setup,
// startup checks, the pid file and signal handling around daemon.Daemon.
package daemonrun
