// Package packmatch maps a release onto the tracked events it covers.
//
// Each candidate event receives a heuristic confidence (0-100) built from four
// signals: date proximity, participant or title token overlap, an explicit
// round/number, and league presence. Signals the event cannot supply (no
// round, no league) are left out of the weighting rather than counted as
// misses. Events at or above the threshold are matched; a release that matches
// more than one event is a pack.
package packmatch
