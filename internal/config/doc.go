// Package config loads, normalizes, and validates eventarr configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// EVENTARR_API_TOKEN and per-source API keys. The Config type centralizes every
// knob the daemon and CLI need: the search pool size, per-source timeouts,
// circuit breaker thresholds, matching weights and the configured release
// sources.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical source definitions, and clear validation errors.
package config
