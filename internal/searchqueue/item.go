package searchqueue

import (
	"time"

	"eventarr/internal/packmatch"
	"eventarr/internal/quality"
	"eventarr/internal/release"
)

// Status is the lifecycle state of a search item.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusSearching Status = "searching"
	StatusCompleted Status = "completed"
	StatusNoResults Status = "no_results"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusNoResults, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Selection is the release chosen for an item.
type Selection struct {
	Release    release.Release         `json:"release"`
	Evaluation quality.Evaluation      `json:"evaluation"`
	Match      *packmatch.MatchedEvent `json:"match,omitempty"`
	IsPack     bool                    `json:"isPack"`
	DownloadID string                  `json:"downloadId,omitempty"`
	Grabbed    bool                    `json:"grabbed"`
}

// Detail summarizes how an item's releases were filtered.
type Detail struct {
	Quality           string `json:"quality,omitempty"`
	Score             int64  `json:"score,omitempty"`
	IsPack            bool   `json:"isPack"`
	UnmatchedReleases int    `json:"unmatchedReleases"`
	RejectedReleases  int    `json:"rejectedReleases"`
	SourcesQueried    int    `json:"sourcesQueried"`
	SourcesFailed     int    `json:"sourcesFailed"`
	SourcesSkipped    int    `json:"sourcesSkipped"`
	GrabAttempts      int    `json:"grabAttempts,omitempty"`
}

// Item is one search request and its outcome.
type Item struct {
	ID              string     `json:"id"`
	EventID         int64      `json:"eventId"`
	EventTitle      string     `json:"eventTitle"`
	Part            string     `json:"part,omitempty"`
	Status          Status     `json:"status"`
	QueuedAt        time.Time  `json:"queuedAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	ReleasesFound   int        `json:"releasesFound"`
	Success         bool       `json:"success"`
	SelectedRelease *Selection `json:"selectedRelease,omitempty"`
	Message         string     `json:"message,omitempty"`
	Detail          Detail     `json:"detail"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (it Item) Clone() Item {
	out := it
	if it.StartedAt != nil {
		t := *it.StartedAt
		out.StartedAt = &t
	}
	if it.CompletedAt != nil {
		t := *it.CompletedAt
		out.CompletedAt = &t
	}
	if it.SelectedRelease != nil {
		sel := *it.SelectedRelease
		sel.Release = sel.Release.Clone()
		sel.Evaluation.MatchedFormats = append(sel.Evaluation.MatchedFormats[:0:0], sel.Evaluation.MatchedFormats...)
		sel.Evaluation.Rejections = append(sel.Evaluation.Rejections[:0:0], sel.Evaluation.Rejections...)
		if sel.Match != nil {
			m := *sel.Match
			m.Reasons = append(m.Reasons[:0:0], m.Reasons...)
			sel.Match = &m
		}
		out.SelectedRelease = &sel
	}
	return out
}

// Snapshot is a point-in-time view of the queue.
type Snapshot struct {
	PendingCount      int       `json:"pendingCount"`
	ActiveCount       int       `json:"activeCount"`
	MaxConcurrent     int       `json:"maxConcurrent"`
	Pending           []Item    `json:"pending"`
	Active            []Item    `json:"active"`
	RecentlyCompleted []Item    `json:"recentlyCompleted"`
	GeneratedAt       time.Time `json:"generatedAt"`
}

// Find returns the item with id from any of the snapshot's sets.
func (s Snapshot) Find(id string) (Item, bool) {
	for _, set := range [][]Item{s.Active, s.Pending, s.RecentlyCompleted} {
		for _, it := range set {
			if it.ID == id {
				return it, true
			}
		}
	}
	return Item{}, false
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Pending = cloneItems(s.Pending)
	out.Active = cloneItems(s.Active)
	out.RecentlyCompleted = cloneItems(s.RecentlyCompleted)
	return out
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
