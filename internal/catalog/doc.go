// Package catalog supplies the search engine with tracked events and the
// quality settings (definitions, custom formats and profiles) they are scored
// against.
//
// Events and Settings are the collaborator contracts the orchestrator and the
// API depend on. Static implements both from a YAML file that can be reloaded
// at runtime; every Snapshot is a deep copy so a search keeps the settings it
// started with even if the file changes underneath it.
package catalog
