package daemon

import (
	"context"
	"log/slog"

	"eventarr/internal/blocklist"
	"eventarr/internal/logging"
	"eventarr/internal/notifications"
	"eventarr/internal/searchqueue"
)

// notifier adapts queue and blocklist outcomes onto notification events.
// Delivery failures are logged and never surface to callers.
type notifier struct {
	svc    notifications.Service
	logger *slog.Logger
}

func (n notifier) hooks() searchqueue.Hooks {
	return searchqueue.Hooks{
		ItemFinished:  n.itemFinished,
		SourceTripped: n.sourceTripped,
	}
}

func (n notifier) itemFinished(ctx context.Context, it searchqueue.Item) {
	payload := notifications.Payload{
		"eventTitle": it.EventTitle,
		"itemId":     it.ID,
		"message":    it.Message,
	}
	var event notifications.Event
	switch it.Status {
	case searchqueue.StatusCompleted:
		if sel := it.SelectedRelease; sel != nil {
			payload["releaseTitle"] = sel.Release.Title
			payload["quality"] = sel.Evaluation.QualityName
			event = notifications.EventReleaseSelected
			if sel.Grabbed {
				event = notifications.EventReleaseGrabbed
			}
		}
	case searchqueue.StatusNoResults:
		event = notifications.EventSearchNoResults
	case searchqueue.StatusFailed:
		event = notifications.EventSearchFailed
	}
	if event == "" {
		return
	}
	n.publish(ctx, event, payload)
}

func (n notifier) sourceTripped(ctx context.Context, source, capability, reason string) {
	n.publish(ctx, notifications.EventSourceTripped, notifications.Payload{
		"source":  source + " (" + capability + ")",
		"message": reason,
	})
}

func (n notifier) downloadFailed(ctx context.Context, result blocklist.FailureResult) {
	n.publish(ctx, notifications.EventDownloadFailed, notifications.Payload{
		"releaseTitle": result.Entry.Title,
		"searchItemId": result.SearchItemID,
	})
}

func (n notifier) importFailed(ctx context.Context, grab blocklist.Grab) {
	if grab.Status != blocklist.GrabStatusPermanentlyFailed {
		return
	}
	n.publish(ctx, notifications.EventImportExhausted, notifications.Payload{
		"releaseTitle": grab.Title,
		"attempts":     grab.ImportAttempts,
		"message":      grab.LastError,
	})
}

func (n notifier) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if n.svc == nil {
		return
	}
	// Item contexts are often cancelled by the time a hook fires.
	if err := n.svc.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logging.WarnWithContext(n.logger, "notification failed", "notification_failed",
			logging.String("notification", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}
