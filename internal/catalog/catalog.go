package catalog

import (
	"context"
	"time"

	"eventarr/internal/packmatch"
	"eventarr/internal/quality"
)

// Events looks up tracked events.
type Events interface {
	Event(ctx context.Context, id int64) (packmatch.Event, error)
	// Candidates returns the events a release found for ev may also cover.
	// The result includes ev.
	Candidates(ctx context.Context, ev packmatch.Event) ([]packmatch.Event, error)
}

// Settings provides the quality settings a search is evaluated with.
type Settings interface {
	Snapshot(ctx context.Context, profileID int64) (Snapshot, error)
}

// Snapshot is an immutable copy of the settings in force when a search began.
type Snapshot struct {
	Profile quality.Profile `json:"profile"`
	Quality quality.Catalog `json:"quality"`
	TakenAt time.Time       `json:"takenAt"`
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{Profile: s.Profile.Clone(), Quality: s.Quality.Clone(), TakenAt: s.TakenAt}
}
