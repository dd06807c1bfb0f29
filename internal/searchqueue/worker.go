package searchqueue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"

	"eventarr/internal/logging"
	"eventarr/internal/services"
)

// outcome is what a worker reports when an item reaches a terminal state.
type outcome struct {
	status    Status
	message   string
	selection *Selection
}

func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		e := o.next()
		if e == nil {
			select {
			case <-ctx.Done():
				return
			case <-o.wake:
			}
			continue
		}
		o.run(ctx, e)
	}
}

// run processes one item. A panic in the pipeline fails the item and leaves
// the worker alive.
func (o *Orchestrator) run(ctx context.Context, e *entry) {
	itemCtx := services.WithItemID(ctx, e.item.ID)
	itemCtx = services.WithEventID(itemCtx, e.item.EventID)
	logger := logging.WithContext(itemCtx, o.logger)

	out := func() (out outcome) {
		defer func() {
			if r := recover(); r != nil {
				logging.ErrorWithContext(logger, "search worker panic", "worker_panic",
					logging.String("panic", fmt.Sprint(r)),
					logging.String("stack", string(debug.Stack())),
				)
				out = outcome{status: StatusFailed, message: fmt.Sprintf("internal error: %v", r)}
			}
		}()
		return o.search(itemCtx, e, logger)
	}()

	finished := o.finish(e, out)
	logger.Info("search finished",
		logging.String("status", string(out.status)),
		logging.String("message", out.message),
	)
	if hook := o.deps.Hooks.ItemFinished; hook != nil {
		hook(itemCtx, finished)
	}
}

// checkpoint reports whether the item must stop before its next outbound call.
func (o *Orchestrator) checkpoint(ctx context.Context, e *entry) (outcome, bool) {
	if e.cancelRequested.Load() {
		return outcome{status: StatusCancelled, message: "cancelled"}, true
	}
	if ctx.Err() != nil {
		return outcome{status: StatusCancelled, message: "search queue stopping"}, true
	}
	return outcome{}, false
}

func sortByQueuedAt(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].QueuedAt.Before(items[j].QueuedAt)
	})
}
