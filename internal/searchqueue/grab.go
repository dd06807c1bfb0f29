package searchqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"eventarr/internal/blocklist"
	"eventarr/internal/logging"
	"eventarr/internal/metrics"
	"eventarr/internal/services"
)

// grab hands ranked candidates to the download client until one is accepted
// or the attempt budget is spent. Definitive failures blocklist the release.
func (o *Orchestrator) grab(ctx context.Context, e *entry, ranked []candidate, logger *slog.Logger) outcome {
	var (
		attempts int
		failures []string
	)
	for _, c := range ranked {
		if attempts >= o.opts.GrabAttempts {
			break
		}
		if out, stop := o.checkpoint(ctx, e); stop {
			return out
		}
		// The snapshot was taken before the search; a release blocked since then is skipped.
		if o.deps.Blocklist.IsBlocked(c.Release.ContentHash) {
			logger.Info("skipping candidate, blocklisted during search",
				logging.String("title", c.Release.Title),
			)
			continue
		}
		source := c.Release.SourceName
		if !o.deps.Health.GrabAvailable(source) {
			logger.Info("skipping candidate, source disabled for grabs",
				logging.String(logging.FieldSource, source),
				logging.String("title", c.Release.Title),
			)
			continue
		}

		attempts++
		o.update(e, func(it *Item) { it.Detail.GrabAttempts = attempts })
		downloadID, err := o.deps.Downloader.Add(ctx, c.Release)
		metrics.RecordGrab(source, err)
		if err == nil {
			o.deps.Health.RecordGrabSuccess(source)
			metrics.SetSourceDisabled(source, "grab", false)
			if _, recErr := o.deps.Blocklist.RecordGrab(ctx, downloadID, c.Release, e.item.EventID, e.item.Part); recErr != nil {
				logging.WarnWithContext(logger, "grab history not recorded", "grab_history",
					logging.String("download_id", downloadID),
					logging.Error(recErr),
					logging.String(logging.FieldImpact, "a later failure report for this download cannot be resolved"),
				)
			}
			sel := selectionFrom(c, downloadID)
			o.recordSelection(e, sel)
			logger.Info("release grabbed",
				logging.String("download_id", downloadID),
				logging.String("title", c.Release.Title),
				logging.String(logging.FieldSource, source),
				logging.String("client", o.deps.Downloader.Name()),
			)
			return outcome{
				status:    StatusCompleted,
				message:   fmt.Sprintf("grabbed %s (%s, score %d)", c.Release.Title, c.Evaluation.QualityName, c.Evaluation.TotalScore),
				selection: sel,
			}
		}

		if ctx.Err() != nil {
			return outcome{status: StatusCancelled, message: "search queue stopping"}
		}
		failures = append(failures, fmt.Sprintf("%s: %v", c.Release.Title, err))
		o.grabFailed(ctx, e, c, err, logger)
	}

	if attempts == 0 {
		return outcome{status: StatusFailed, message: "no candidate could be grabbed: every candidate was blocklisted or its source is disabled for grabs"}
	}
	return outcome{
		status:  StatusFailed,
		message: fmt.Sprintf("grab failed for %d candidates: %s", attempts, strings.Join(failures, "; ")),
	}
}

func (o *Orchestrator) grabFailed(ctx context.Context, e *entry, c candidate, err error, logger *slog.Logger) {
	source := c.Release.SourceName
	if errors.Is(err, services.ErrSourceFailure) {
		if o.deps.Health.RecordGrabFailure(source, err.Error()) {
			metrics.SetSourceDisabled(source, "grab", true)
			logging.WarnWithContext(logger, "source disabled for grabs", "source_disabled",
				logging.String(logging.FieldSource, source),
				logging.String(logging.FieldErrorHint, "check the source download links"),
			)
			o.sourceTripped(ctx, source, "grab", err.Error())
		}
	}
	logging.WarnWithContext(logger, "grab failed", "grab_failed",
		logging.String("title", c.Release.Title),
		logging.String(logging.FieldSource, source),
		logging.Error(err),
		logging.String(logging.FieldImpact, "falling back to the next candidate"),
	)

	// Timeouts and cancellations may succeed on a later try.
	if services.IsTimeout(err) || errors.Is(err, services.ErrTransient) {
		return
	}
	if _, blockErr := o.deps.Blocklist.Block(ctx, c.Release, e.item.EventID, blocklist.ReasonGrabFailed, err.Error()); blockErr != nil {
		logging.WarnWithContext(logger, "failed release not blocklisted", "blocklist_write",
			logging.String("title", c.Release.Title),
			logging.Error(blockErr),
		)
	}
}
