// Package indexer queries release sources and tracks their health.
//
// Source is the narrow contract the search orchestrator fans out over.
// Torznab implements it for Torznab and Newznab endpoints: requests are
// throttled per source with a token bucket, the RSS feed is decoded and each
// item is normalized into a release.Release (seeders, peers, info hash and
// freeleech flags come from the feed attributes).
//
// HealthTracker implements the per-source circuit breaker. Query and grab
// failures are counted separately; reaching the threshold disables that side
// of the source until its cool-down passes.
package indexer
