package daemon

import (
	"context"

	"eventarr/internal/api"
	"eventarr/internal/blocklist"
	"eventarr/internal/packmatch"
	"eventarr/internal/quality"
	"eventarr/internal/release"
	"eventarr/internal/searchqueue"
	"eventarr/internal/services"
)

var _ api.Service = (*Daemon)(nil)

// Enqueue queues a search for an event.
func (d *Daemon) Enqueue(ctx context.Context, eventID int64, part string) (string, error) {
	return d.queue.Enqueue(ctx, eventID, part)
}

// Snapshot returns the queue state.
func (d *Daemon) Snapshot() searchqueue.Snapshot {
	return d.queue.Snapshot()
}

// Item returns one queue item.
func (d *Daemon) Item(id string) (searchqueue.Item, error) {
	return d.queue.Get(id)
}

// Cancel cancels a queue item.
func (d *Daemon) Cancel(id string) (bool, error) {
	return d.queue.Cancel(id)
}

// Evaluate scores rel against a profile from the current catalog. A zero
// profileID selects the default profile.
func (d *Daemon) Evaluate(ctx context.Context, rel release.Release, profileID int64, override bool) (quality.Evaluation, error) {
	snap, err := d.catalog.Snapshot(ctx, profileID)
	if err != nil {
		return quality.Evaluation{}, err
	}
	rel.Enrich()
	return d.scorer.Evaluate(rel, snap.Profile, snap.Quality, d.blocklist, quality.Options{OverrideBlocklist: override}), nil
}

// MatchToEvents matches rel against the given events, or every catalog
// event when eventIDs is empty.
func (d *Daemon) MatchToEvents(ctx context.Context, rel release.Release, eventIDs []int64) (packmatch.Result, error) {
	var events []packmatch.Event
	if len(eventIDs) == 0 {
		events = d.catalog.List(ctx)
	} else {
		events = make([]packmatch.Event, 0, len(eventIDs))
		for _, id := range eventIDs {
			ev, err := d.catalog.Event(ctx, id)
			if err != nil {
				return packmatch.Result{}, err
			}
			events = append(events, ev)
		}
	}
	rel.Enrich()
	return d.matcher.MatchToEvents(rel, events), nil
}

// Block blocklists rel. An empty reason records a manual block.
func (d *Daemon) Block(ctx context.Context, rel release.Release, eventID int64, reason blocklist.Reason, message string) (blocklist.Entry, error) {
	if rel.Title == "" && rel.ContentHash == "" {
		return blocklist.Entry{}, services.Wrap(services.ErrValidation, "daemon", "block", "release title or content hash is required", nil)
	}
	if reason == "" {
		reason = blocklist.ReasonManual
	}
	if rel.ContentHash == "" {
		rel.Enrich()
	}
	return d.blocklist.Block(ctx, rel, eventID, reason, message)
}

// Blocklist lists entries, optionally for one event.
func (d *Daemon) Blocklist(ctx context.Context, eventID int64) ([]blocklist.Entry, error) {
	return d.blocklist.List(ctx, eventID)
}

// Unblock removes the entry for contentHash.
func (d *Daemon) Unblock(ctx context.Context, contentHash string) (bool, error) {
	return d.blocklist.Remove(ctx, contentHash)
}

// MarkFailed blocklists a failed download and optionally searches again.
func (d *Daemon) MarkFailed(ctx context.Context, downloadID string, alsoSearch bool) (blocklist.FailureResult, error) {
	result, err := d.blocklist.MarkFailed(ctx, downloadID, alsoSearch)
	if err == nil || result.Entry.ContentHash != "" {
		d.notify.downloadFailed(ctx, result)
	}
	return result, err
}

// RecordImportFailure counts a failed import attempt.
func (d *Daemon) RecordImportFailure(ctx context.Context, downloadID, message string) (blocklist.Grab, error) {
	grab, err := d.blocklist.RecordImportFailure(ctx, downloadID, message)
	if err == nil {
		d.notify.importFailed(ctx, grab)
	}
	return grab, err
}

// Sources reports every configured source with its breaker state.
func (d *Daemon) Sources() []api.SourceStatus {
	out := make([]api.SourceStatus, 0, len(d.sources))
	for _, src := range d.sources {
		name := src.Name()
		out = append(out, api.SourceStatus{
			Name:           name,
			Protocol:       string(src.Protocol()),
			QueryAvailable: d.health.QueryAvailable(name),
			GrabAvailable:  d.health.GrabAvailable(name),
			Health:         d.health.Get(name),
		})
	}
	return out
}
