package api

import (
	"context"
	"time"

	"eventarr/internal/blocklist"
	"eventarr/internal/indexer"
	"eventarr/internal/packmatch"
	"eventarr/internal/quality"
	"eventarr/internal/release"
	"eventarr/internal/searchqueue"
)

// Service is implemented by the daemon.
type Service interface {
	Status(ctx context.Context) Status
	Enqueue(ctx context.Context, eventID int64, part string) (string, error)
	Snapshot() searchqueue.Snapshot
	Item(id string) (searchqueue.Item, error)
	Cancel(id string) (bool, error)
	Evaluate(ctx context.Context, rel release.Release, profileID int64, override bool) (quality.Evaluation, error)
	MatchToEvents(ctx context.Context, rel release.Release, eventIDs []int64) (packmatch.Result, error)
	Block(ctx context.Context, rel release.Release, eventID int64, reason blocklist.Reason, message string) (blocklist.Entry, error)
	Blocklist(ctx context.Context, eventID int64) ([]blocklist.Entry, error)
	Unblock(ctx context.Context, contentHash string) (bool, error)
	MarkFailed(ctx context.Context, downloadID string, alsoSearch bool) (blocklist.FailureResult, error)
	RecordImportFailure(ctx context.Context, downloadID, message string) (blocklist.Grab, error)
	Sources() []SourceStatus
}

// Status summarizes the running daemon.
type Status struct {
	Running         bool      `json:"running"`
	PID             int       `json:"pid"`
	StartedAt       time.Time `json:"startedAt"`
	DatabasePath    string    `json:"databasePath"`
	LockPath        string    `json:"lockPath"`
	CatalogPath     string    `json:"catalogPath"`
	CatalogLoadedAt time.Time `json:"catalogLoadedAt"`
	PendingCount    int       `json:"pendingCount"`
	ActiveCount     int       `json:"activeCount"`
	MaxConcurrent   int       `json:"maxConcurrent"`
	Sources         int       `json:"sources"`
	AutoGrab        bool      `json:"autoGrab"`
	BlockedReleases int       `json:"blockedReleases"`
}

// SourceStatus pairs a configured source with its breaker state.
type SourceStatus struct {
	Name           string         `json:"name"`
	Protocol       string         `json:"protocol"`
	QueryAvailable bool           `json:"queryAvailable"`
	GrabAvailable  bool           `json:"grabAvailable"`
	Health         indexer.Health `json:"health"`
}

// SearchRequest queues a search.
type SearchRequest struct {
	EventID int64  `json:"eventId"`
	Part    string `json:"part,omitempty"`
}

// SearchResponse returns the queued item id.
type SearchResponse struct {
	ItemID string `json:"itemId"`
}

// ItemResponse wraps one queue item.
type ItemResponse struct {
	Item searchqueue.Item `json:"item"`
}

// CancelResponse reports whether a cancellation took effect.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// EvaluateRequest asks for a decision on one release.
type EvaluateRequest struct {
	Release           release.Release `json:"release"`
	ProfileID         int64           `json:"profileId,omitempty"`
	OverrideBlocklist bool            `json:"overrideBlocklist,omitempty"`
}

// EvaluateResponse returns the enriched release and its evaluation.
type EvaluateResponse struct {
	Release    release.Release    `json:"release"`
	Evaluation quality.Evaluation `json:"evaluation"`
}

// MatchRequest maps a release onto events. An empty EventIDs matches
// against every catalog event.
type MatchRequest struct {
	Release  release.Release `json:"release"`
	EventIDs []int64         `json:"eventIds,omitempty"`
}

// MatchResponse wraps a pack match result.
type MatchResponse struct {
	Result packmatch.Result `json:"result"`
}

// BlockRequest blocklists a release.
type BlockRequest struct {
	Release release.Release  `json:"release"`
	EventID int64            `json:"eventId,omitempty"`
	Reason  blocklist.Reason `json:"reason,omitempty"`
	Message string           `json:"message,omitempty"`
}

// BlockResponse returns the stored entry.
type BlockResponse struct {
	Entry blocklist.Entry `json:"entry"`
}

// BlocklistResponse lists entries.
type BlocklistResponse struct {
	Entries []blocklist.Entry `json:"entries"`
}

// UnblockResponse reports whether an entry was removed.
type UnblockResponse struct {
	Removed bool `json:"removed"`
}

// FailedRequest marks a download as failed.
type FailedRequest struct {
	AlsoSearch bool `json:"alsoSearch"`
}

// FailedResponse wraps the outcome of a failed-download report.
type FailedResponse struct {
	Result blocklist.FailureResult `json:"result"`
}

// ImportFailedRequest reports a failed import attempt.
type ImportFailedRequest struct {
	Message string `json:"message"`
}

// GrabResponse wraps one grab record.
type GrabResponse struct {
	Grab blocklist.Grab `json:"grab"`
}

// SourcesResponse lists source health.
type SourcesResponse struct {
	Sources []SourceStatus `json:"sources"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
