package searchqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"eventarr/internal/catalog"
	"eventarr/internal/indexer"
	"eventarr/internal/logging"
	"eventarr/internal/metrics"
	"eventarr/internal/packmatch"
	"eventarr/internal/quality"
	"eventarr/internal/release"
	"eventarr/internal/services"
)

// sourceResult is the outcome of one source query.
type sourceResult struct {
	name     string
	releases []release.Release
	err      error
	skipped  bool
}

// candidate is an approved release together with its pack match.
type candidate struct {
	quality.Candidate
	match  packmatch.MatchedEvent
	isPack bool
}

func (o *Orchestrator) search(ctx context.Context, e *entry, logger *slog.Logger) outcome {
	if out, stop := o.checkpoint(ctx, e); stop {
		return out
	}

	ev, err := o.deps.Events.Event(ctx, e.item.EventID)
	if err != nil {
		return failed("event lookup", err)
	}
	settings, err := o.deps.Settings.Snapshot(ctx, ev.ProfileID)
	if err != nil {
		return failed("settings snapshot", err)
	}
	candidates, err := o.deps.Events.Candidates(ctx, ev)
	if err != nil {
		return failed("candidate events", err)
	}

	results := o.fanOut(ctx, e, indexer.Query{
		EventID:    ev.ID,
		Term:       ev.Title,
		Part:       e.item.Part,
		Categories: o.opts.Categories,
	}, logger)
	if out, stop := o.checkpoint(ctx, e); stop {
		return out
	}

	var (
		releases []release.Release
		queried  int
		failures []string
		skipped  int
	)
	for _, res := range results {
		switch {
		case res.skipped:
			skipped++
		case res.err != nil:
			queried++
			failures = append(failures, fmt.Sprintf("%s: %v", res.name, res.err))
		default:
			queried++
			releases = append(releases, res.releases...)
		}
	}
	o.update(e, func(it *Item) {
		it.ReleasesFound = len(releases)
		it.Detail.SourcesQueried = queried
		it.Detail.SourcesFailed = len(failures)
		it.Detail.SourcesSkipped = skipped
	})

	switch {
	case len(results) == 0:
		return outcome{status: StatusFailed, message: "no release sources configured"}
	case queried == 0:
		return outcome{status: StatusFailed, message: fmt.Sprintf("all %d sources are disabled by their circuit breakers", skipped)}
	case len(failures) == queried:
		return outcome{status: StatusFailed, message: "all sources failed: " + strings.Join(failures, "; ")}
	}

	ranked, unmatched, rejected := o.decide(e, ev, candidates, settings, releases)
	metrics.RecordUnmatched(unmatched)
	o.update(e, func(it *Item) {
		it.Detail.UnmatchedReleases = unmatched
		it.Detail.RejectedReleases = rejected
	})

	if len(ranked) == 0 {
		msg := "no releases found"
		if len(releases) > 0 {
			msg = fmt.Sprintf("%d releases found, none acceptable (%d unmatched, %d rejected)", len(releases), unmatched, rejected)
		}
		return outcome{status: StatusNoResults, message: msg}
	}

	best := ranked[0]
	logger.Info("release selected",
		logging.Args(append(logging.DecisionAttrs("release_selection", "selected", best.Evaluation.QualityName),
			logging.String("title", best.Release.Title),
			logging.String(logging.FieldSource, best.Release.SourceName),
			logging.Int64("total_score", best.Evaluation.TotalScore),
			logging.Int("candidates", len(ranked)),
			logging.Bool("is_pack", best.isPack),
		)...)...,
	)

	if !o.opts.AutoGrab || o.deps.Downloader == nil {
		sel := selectionFrom(best, "")
		o.recordSelection(e, sel)
		return outcome{
			status:    StatusCompleted,
			message:   fmt.Sprintf("selected %s (%s, score %d)", best.Release.Title, best.Evaluation.QualityName, best.Evaluation.TotalScore),
			selection: sel,
		}
	}
	return o.grab(ctx, e, ranked, logger)
}

// fanOut queries every source concurrently. Sources whose query breaker is
// open are skipped without a call.
func (o *Orchestrator) fanOut(ctx context.Context, e *entry, q indexer.Query, logger *slog.Logger) []sourceResult {
	results := make([]sourceResult, len(o.deps.Sources))
	var g errgroup.Group
	for i, src := range o.deps.Sources {
		name := src.Name()
		results[i].name = name
		if !o.deps.Health.QueryAvailable(name) {
			results[i].skipped = true
			metrics.RecordSourceSkipped(name)
			continue
		}
		g.Go(func() error {
			if e.cancelRequested.Load() || ctx.Err() != nil {
				results[i].skipped = true
				return nil
			}
			defer func() {
				if r := recover(); r != nil {
					results[i].releases = nil
					results[i].err = fmt.Errorf("source panic: %v", r)
					o.deps.Health.RecordQueryFailure(name, results[i].err.Error())
				}
			}()
			results[i].releases, results[i].err = o.querySource(ctx, src, q, logger)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

type timeoutSource interface {
	Timeout() time.Duration
}

func (o *Orchestrator) querySource(ctx context.Context, src indexer.Source, q indexer.Query, logger *slog.Logger) ([]release.Release, error) {
	name := src.Name()
	timeout := o.opts.SourceTimeout
	if ts, ok := src.(timeoutSource); ok && ts.Timeout() > 0 {
		timeout = ts.Timeout()
	}
	callCtx, cancel := context.WithTimeout(services.WithSource(ctx, name), timeout)
	defer cancel()

	started := time.Now()
	releases, err := src.Search(callCtx, q)
	if err == nil {
		err = callCtx.Err()
	}
	metrics.RecordSourceQuery(name, err, time.Since(started))

	if err != nil {
		if ctx.Err() != nil {
			// Parent cancellation says nothing about the source.
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = services.Wrap(services.ErrTimeout, component, "query", name, err)
		}
		tripped := o.deps.Health.RecordQueryFailure(name, err.Error())
		logging.WarnWithContext(logger, "source query failed", "source_failure",
			logging.String(logging.FieldSource, name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "results from this source are missing for this search"),
		)
		if tripped {
			health := o.deps.Health.Get(name)
			metrics.SetSourceDisabled(name, "query", true)
			attrs := []logging.Attr{
				logging.String(logging.FieldSource, name),
				logging.Int("consecutive_failures", health.ConsecutiveQueryFailures),
				logging.String(logging.FieldErrorHint, "check the source URL, API key and availability"),
			}
			if health.QueryDisabledUntil != nil {
				attrs = append(attrs, logging.Time("disabled_until", *health.QueryDisabledUntil))
			}
			logging.WarnWithContext(logger, "source disabled for queries", "source_disabled", attrs...)
			o.sourceTripped(ctx, name, "query", err.Error())
		}
		return nil, err
	}

	o.deps.Health.RecordQuerySuccess(name)
	metrics.SetSourceDisabled(name, "query", false)
	for i := range releases {
		if releases[i].SourceName == "" {
			releases[i].SourceName = name
		}
		if releases[i].Protocol == "" {
			releases[i].Protocol = src.Protocol()
		}
		if releases[i].ContentHash == "" {
			releases[i].ContentHash = release.ContentHash(releases[i])
		}
	}
	logger.Debug("source query complete",
		logging.String(logging.FieldSource, name),
		logging.Int("releases", len(releases)),
	)
	return releases, nil
}

// decide filters releases through pack matching and the scorer and returns
// the approved candidates best first.
func (o *Orchestrator) decide(e *entry, ev packmatch.Event, events []packmatch.Event, settings catalog.Snapshot, releases []release.Release) ([]candidate, int, int) {
	blocked := o.deps.Blocklist.Snapshot()
	seen := make(map[string]struct{}, len(releases))
	var (
		approved  []candidate
		unmatched int
		rejected  int
	)
	for _, rel := range releases {
		if _, dup := seen[rel.ContentHash]; dup && rel.ContentHash != "" {
			continue
		}
		seen[rel.ContentHash] = struct{}{}
		if rel.Runtime == 0 {
			rel.Runtime = ev.Runtime
		}

		result := o.deps.Matcher.MatchToEvents(rel, events)
		match, ok := result.Contains(ev.ID)
		if !ok {
			unmatched++
			continue
		}
		if e.item.Part != "" && match.DetectedPart != "" && !packmatch.SamePart(match.DetectedPart, e.item.Part) {
			unmatched++
			continue
		}

		eval := o.deps.Scorer.Evaluate(rel, settings.Profile, settings.Quality, blocked, quality.Options{})
		metrics.RecordEvaluation(eval.Approved)
		if !eval.Approved {
			rejected++
			continue
		}
		approved = append(approved, candidate{
			Candidate: quality.Candidate{Release: rel, Evaluation: eval},
			match:     match,
			isPack:    result.IsPack,
		})
	}

	sort.SliceStable(approved, func(i, j int) bool {
		return quality.Better(approved[i].Candidate, approved[j].Candidate)
	})
	return approved, unmatched, rejected
}

func selectionFrom(c candidate, downloadID string) *Selection {
	match := c.match
	return &Selection{
		Release:    c.Release,
		Evaluation: c.Evaluation,
		Match:      &match,
		IsPack:     c.isPack,
		DownloadID: downloadID,
		Grabbed:    downloadID != "",
	}
}

func (o *Orchestrator) recordSelection(e *entry, sel *Selection) {
	o.update(e, func(it *Item) {
		it.Detail.Quality = sel.Evaluation.QualityName
		it.Detail.Score = sel.Evaluation.TotalScore
		it.Detail.IsPack = sel.IsPack
	})
}

func failed(op string, err error) outcome {
	details := services.Details(err)
	return outcome{status: StatusFailed, message: fmt.Sprintf("%s: %s", op, details.Message)}
}
