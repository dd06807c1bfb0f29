package searchqueue_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"eventarr/internal/indexer"
	"eventarr/internal/release"
	"eventarr/internal/searchqueue"
	"eventarr/internal/services"
)

func TestSearchSelectsBestApprovedRelease(t *testing.T) {
	src := staticSource("alpha",
		makeRelease(ufcTitle720, 3),
		makeRelease(ufcTitle1080, 6),
		makeRelease("Some.Other.Show.S01E01.1080p.WEB-DL-GRP", 2),
	)
	h := newHarness(t, []indexer.Source{src})
	h.start(t)

	item := h.waitTerminal(t, h.enqueue(t, 1, ""))
	if item.Status != searchqueue.StatusCompleted || !item.Success {
		t.Fatalf("expected completed item, got %s: %s", item.Status, item.Message)
	}
	if item.SelectedRelease == nil || item.SelectedRelease.Release.Title != ufcTitle1080 {
		t.Fatalf("expected 1080p release selected, got %+v", item.SelectedRelease)
	}
	if item.SelectedRelease.Grabbed {
		t.Fatal("expected no grab without a downloader")
	}
	if item.ReleasesFound != 3 {
		t.Fatalf("expected 3 releases found, got %d", item.ReleasesFound)
	}
	if item.Detail.UnmatchedReleases != 1 {
		t.Fatalf("expected 1 unmatched release, got %d", item.Detail.UnmatchedReleases)
	}
	if item.Detail.Quality != "WEBDL-1080p" || item.Detail.IsPack {
		t.Fatalf("unexpected detail: %+v", item.Detail)
	}
	if item.Detail.SourcesQueried != 1 || item.Detail.SourcesFailed != 0 {
		t.Fatalf("unexpected source counts: %+v", item.Detail)
	}
	if item.EventTitle != "UFC 300: Pereira vs Hill" {
		t.Fatalf("unexpected event title %q", item.EventTitle)
	}
	if item.StartedAt == nil || item.CompletedAt == nil || item.CompletedAt.Before(*item.StartedAt) {
		t.Fatalf("expected ordered timestamps, got %v %v", item.StartedAt, item.CompletedAt)
	}
}

func TestSnapshotCountsPendingAndActive(t *testing.T) {
	gate := make(chan struct{})
	src := gatedSource("alpha", gate, makeRelease(ufcTitle1080, 6))
	h := newHarness(t, []indexer.Source{src}, withMaxConcurrent(2))
	h.start(t)

	ids := []string{
		h.enqueue(t, 1, ""),
		h.enqueue(t, 2, ""),
		h.enqueue(t, 1, "Main Card"),
	}

	waitFor(t, "two active searches", func() bool {
		snap := h.orch.Snapshot()
		return snap.ActiveCount == 2 && snap.PendingCount == 1
	})
	snap := h.orch.Snapshot()
	if snap.MaxConcurrent != 2 {
		t.Fatalf("expected max concurrent 2, got %d", snap.MaxConcurrent)
	}
	if snap.Pending[0].ID != ids[2] {
		t.Fatalf("expected the last enqueued item to wait, got %s", snap.Pending[0].ID)
	}
	seen := map[string]int{}
	for _, set := range [][]searchqueue.Item{snap.Pending, snap.Active, snap.RecentlyCompleted} {
		for _, it := range set {
			seen[it.ID]++
		}
	}
	for _, id := range ids {
		if seen[id] != 1 {
			t.Fatalf("item %s appears %d times in the snapshot", id, seen[id])
		}
	}

	close(gate)
	for _, id := range ids {
		h.waitTerminal(t, id)
	}
	final := h.orch.Snapshot()
	if final.ActiveCount != 0 || final.PendingCount != 0 || len(final.RecentlyCompleted) != 3 {
		t.Fatalf("unexpected final snapshot: %+v", final)
	}
}

func TestEnqueueReturnsOpenItemForSameRequest(t *testing.T) {
	h := newHarness(t, []indexer.Source{staticSource("alpha")})

	first := h.enqueue(t, 1, "Main Card")
	second := h.enqueue(t, 1, "main card")
	if first != second {
		t.Fatalf("expected duplicate request to reuse %s, got %s", first, second)
	}
	if other := h.enqueue(t, 1, "Prelims"); other == first {
		t.Fatal("expected a different part to queue a new item")
	}
	if _, err := h.orch.Enqueue(context.Background(), 99, ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown event, got %v", err)
	}
}

func TestReSearchDuringActiveSearchQueuesFreshItem(t *testing.T) {
	gate := make(chan struct{})
	best := makeRelease(ufcTitle1080, 6)
	src := gatedSource("alpha", gate, best, makeRelease(ufcTitle720, 3))
	dl := &fakeDownloader{}
	h := newHarness(t, []indexer.Source{src}, withDownloader(dl, 3), withMaxConcurrent(1))
	h.start(t)

	first := h.enqueue(t, 1, "")
	waitFor(t, "first item to start searching", func() bool {
		item, err := h.orch.Get(first)
		return err == nil && item.Status == searchqueue.StatusSearching && src.calls.Load() == 1
	})

	if _, err := h.blocklist.Block(context.Background(), best, 1, "manual", "wrong event"); err != nil {
		t.Fatalf("Block: %v", err)
	}
	second := h.enqueue(t, 1, "")
	if second == first {
		t.Fatal("expected a re-search to queue a new item instead of reusing the searching one")
	}
	if third := h.enqueue(t, 1, ""); third != second {
		t.Fatalf("expected the queued re-search to be reused, got %s and %s", second, third)
	}
	close(gate)

	for _, id := range []string{first, second} {
		item := h.waitTerminal(t, id)
		if item.Status != searchqueue.StatusCompleted {
			t.Fatalf("item %s: expected completed, got %s: %s", id, item.Status, item.Message)
		}
		if item.SelectedRelease == nil || item.SelectedRelease.Release.Title != ufcTitle720 {
			t.Fatalf("item %s: expected the unblocked release, got %+v", id, item.SelectedRelease)
		}
	}
	for _, title := range dl.titles() {
		if title == ufcTitle1080 {
			t.Fatalf("blocked release was grabbed: %v", dl.titles())
		}
	}
}

func TestActiveCountNeverExceedsPool(t *testing.T) {
	src := &fakeSource{name: "alpha"}
	src.fn = func(ctx context.Context, _ indexer.Query) ([]release.Release, error) {
		select {
		case <-time.After(20 * time.Millisecond):
		case <-ctx.Done():
		}
		return nil, nil
	}
	h := newHarness(t, []indexer.Source{src}, withMaxConcurrent(2))
	h.start(t)

	requests := []struct {
		event int64
		part  string
	}{{1, ""}, {1, "Early Prelims"}, {1, "Prelims"}, {1, "Main Card"}, {2, ""}, {2, "Qualifying"}}
	var ids []string
	for _, r := range requests {
		ids = append(ids, h.enqueue(t, r.event, r.part))
	}
	for _, id := range ids {
		if item := h.waitTerminal(t, id); item.Status != searchqueue.StatusNoResults {
			t.Fatalf("expected no results for %s, got %s: %s", id, item.Status, item.Message)
		}
	}
	if got := src.maxSeen.Load(); got > 2 {
		t.Fatalf("observed %d concurrent searches with a pool of 2", got)
	}
	if got := src.calls.Load(); got != int32(len(requests)) {
		t.Fatalf("expected %d source calls, got %d", len(requests), got)
	}
}

func TestDispatchFollowsQueueOrder(t *testing.T) {
	src := staticSource("alpha")
	h := newHarness(t, []indexer.Source{src}, withMaxConcurrent(1))

	ids := []string{h.enqueue(t, 1, ""), h.enqueue(t, 2, ""), h.enqueue(t, 1, "Prelims")}
	h.start(t)

	var started []time.Time
	for _, id := range ids {
		item := h.waitTerminal(t, id)
		started = append(started, *item.StartedAt)
	}
	for i := 1; i < len(started); i++ {
		if started[i].Before(started[i-1]) {
			t.Fatalf("item %d started before item %d", i, i-1)
		}
	}
}

func TestSourceFailureIsSwallowedWhenAnotherAnswers(t *testing.T) {
	bad := failingSource("bad")
	good := staticSource("good", makeRelease(ufcTitle1080, 6))
	h := newHarness(t, []indexer.Source{bad, good})
	h.start(t)

	item := h.waitTerminal(t, h.enqueue(t, 1, ""))
	if item.Status != searchqueue.StatusCompleted {
		t.Fatalf("expected completed, got %s: %s", item.Status, item.Message)
	}
	if item.Detail.SourcesQueried != 2 || item.Detail.SourcesFailed != 1 {
		t.Fatalf("unexpected source counts: %+v", item.Detail)
	}
	if got := h.health.Get("bad").ConsecutiveQueryFailures; got != 1 {
		t.Fatalf("expected one recorded failure, got %d", got)
	}
}

func TestAllSourcesFailedFailsItem(t *testing.T) {
	h := newHarness(t, []indexer.Source{failingSource("a"), failingSource("b")})
	h.start(t)

	item := h.waitTerminal(t, h.enqueue(t, 1, ""))
	if item.Status != searchqueue.StatusFailed || item.Success {
		t.Fatalf("expected failed item, got %s", item.Status)
	}
	if !strings.Contains(item.Message, "all sources failed") {
		t.Fatalf("unexpected message %q", item.Message)
	}
}

func TestCircuitBreakerSkipsDisabledSource(t *testing.T) {
	bad := failingSource("flaky")
	h := newHarness(t, []indexer.Source{bad})
	h.start(t)

	for i := 0; i < 3; i++ {
		item := h.waitTerminal(t, h.enqueue(t, 1, ""))
		if item.Status != searchqueue.StatusFailed {
			t.Fatalf("search %d: expected failed, got %s", i, item.Status)
		}
	}
	if h.health.QueryAvailable("flaky") {
		t.Fatal("expected source to be disabled after three failures")
	}
	health := h.health.Get("flaky")
	if health.QueryDisabledUntil == nil || !health.QueryDisabledUntil.After(time.Now()) {
		t.Fatalf("expected a future cool-down horizon, got %v", health.QueryDisabledUntil)
	}

	item := h.waitTerminal(t, h.enqueue(t, 1, ""))
	if item.Status != searchqueue.StatusFailed || !strings.Contains(item.Message, "circuit breakers") {
		t.Fatalf("expected breaker failure, got %s: %s", item.Status, item.Message)
	}
	if item.Detail.SourcesSkipped != 1 {
		t.Fatalf("expected skipped source, got %+v", item.Detail)
	}
	if got := bad.calls.Load(); got != 3 {
		t.Fatalf("expected no call to a disabled source, got %d calls", got)
	}
}

func TestNoResultsWhenNothingSurvives(t *testing.T) {
	tests := []struct {
		name      string
		releases  []release.Release
		unmatched int
		rejected  int
	}{
		{name: "empty feed"},
		{
			name:      "unrelated release",
			releases:  []release.Release{makeRelease("Some.Other.Show.S01E01.1080p.WEB-DL-GRP", 2)},
			unmatched: 1,
		},
		{
			name:     "unwanted quality",
			releases: []release.Release{makeRelease("UFC.300.Pereira.vs.Hill.2024.04.13.2160p.WEB-DL.H265-GRP", 30)},
			rejected: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, []indexer.Source{staticSource("alpha", tt.releases...)})
			h.start(t)

			item := h.waitTerminal(t, h.enqueue(t, 1, ""))
			if item.Status != searchqueue.StatusNoResults || item.Success {
				t.Fatalf("expected no results, got %s: %s", item.Status, item.Message)
			}
			if item.Detail.UnmatchedReleases != tt.unmatched || item.Detail.RejectedReleases != tt.rejected {
				t.Fatalf("unexpected detail: %+v", item.Detail)
			}
		})
	}
}

func TestBlockedReleaseIsNotSelected(t *testing.T) {
	blocked := makeRelease(ufcTitle1080, 6)
	h := newHarness(t, []indexer.Source{staticSource("alpha", blocked, makeRelease(ufcTitle720, 3))})
	if _, err := h.blocklist.Block(context.Background(), blocked, 1, "manual", "bad encode"); err != nil {
		t.Fatalf("Block: %v", err)
	}
	h.start(t)

	item := h.waitTerminal(t, h.enqueue(t, 1, ""))
	if item.Status != searchqueue.StatusCompleted {
		t.Fatalf("expected completed, got %s: %s", item.Status, item.Message)
	}
	if item.SelectedRelease.Release.Title != ufcTitle720 {
		t.Fatalf("expected blocked release skipped, got %s", item.SelectedRelease.Release.Title)
	}
	if item.Detail.RejectedReleases != 1 {
		t.Fatalf("expected one rejection, got %d", item.Detail.RejectedReleases)
	}
}

func TestPartFilterDropsOtherParts(t *testing.T) {
	src := staticSource("alpha",
		makeRelease("UFC.300.Prelims.2024.04.13.1080p.WEB-DL.H264-GRP", 4),
		makeRelease("UFC.300.Main.Card.2024.04.13.720p.HDTV.x264-TV", 2),
	)
	h := newHarness(t, []indexer.Source{src})
	h.start(t)

	item := h.waitTerminal(t, h.enqueue(t, 1, "Main Card"))
	if item.Status != searchqueue.StatusCompleted {
		t.Fatalf("expected completed, got %s: %s", item.Status, item.Message)
	}
	if !strings.Contains(item.SelectedRelease.Release.Title, "Main.Card") {
		t.Fatalf("expected main card release, got %s", item.SelectedRelease.Release.Title)
	}
	if item.Detail.UnmatchedReleases != 1 {
		t.Fatalf("expected the prelims release dropped, got %+v", item.Detail)
	}
}

func TestCancelQueuedItem(t *testing.T) {
	h := newHarness(t, []indexer.Source{staticSource("alpha")})

	id := h.enqueue(t, 1, "")
	ok, err := h.orch.Cancel(id)
	if err != nil || !ok {
		t.Fatalf("Cancel: ok=%v err=%v", ok, err)
	}
	item, err := h.orch.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if item.Status != searchqueue.StatusCancelled || item.CompletedAt == nil {
		t.Fatalf("expected cancelled item, got %+v", item)
	}
	snap := h.orch.Snapshot()
	if snap.PendingCount != 0 || len(snap.RecentlyCompleted) != 1 {
		t.Fatalf("unexpected snapshot after cancel: %+v", snap)
	}

	if ok, err := h.orch.Cancel(id); ok || err != nil {
		t.Fatalf("expected second cancel to be a no-op, got ok=%v err=%v", ok, err)
	}
	if _, err := h.orch.Cancel("missing"); !errors.Is(err, searchqueue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelSearchingItemStopsAtCheckpoint(t *testing.T) {
	gate := make(chan struct{})
	src := gatedSource("alpha", gate, makeRelease(ufcTitle1080, 6))
	dl := &fakeDownloader{}
	h := newHarness(t, []indexer.Source{src}, withDownloader(dl, 1))
	h.start(t)

	id := h.enqueue(t, 1, "")
	waitFor(t, "item to start searching", func() bool {
		item, err := h.orch.Get(id)
		return err == nil && item.Status == searchqueue.StatusSearching && src.calls.Load() == 1
	})
	if ok, err := h.orch.Cancel(id); err != nil || !ok {
		t.Fatalf("Cancel: ok=%v err=%v", ok, err)
	}
	close(gate)

	item := h.waitTerminal(t, id)
	if item.Status != searchqueue.StatusCancelled {
		t.Fatalf("expected cancelled, got %s: %s", item.Status, item.Message)
	}
	if len(dl.titles()) != 0 {
		t.Fatalf("expected no grab after cancellation, got %v", dl.titles())
	}
}

func TestAutoGrabFallsBackAndBlocklistsFailure(t *testing.T) {
	best := makeRelease(ufcTitle1080, 6)
	next := makeRelease(ufcTitle720, 3)
	dl := &fakeDownloader{failures: 1}
	h := newHarness(t, []indexer.Source{staticSource("alpha", best, next)}, withDownloader(dl, 3))
	h.start(t)

	item := h.waitTerminal(t, h.enqueue(t, 1, ""))
	if item.Status != searchqueue.StatusCompleted {
		t.Fatalf("expected completed, got %s: %s", item.Status, item.Message)
	}
	if got := dl.titles(); len(got) != 2 || got[0] != ufcTitle1080 || got[1] != ufcTitle720 {
		t.Fatalf("unexpected grab order: %v", got)
	}
	sel := item.SelectedRelease
	if sel == nil || !sel.Grabbed || sel.DownloadID == "" || sel.Release.Title != ufcTitle720 {
		t.Fatalf("unexpected selection: %+v", sel)
	}
	if item.Detail.GrabAttempts != 2 {
		t.Fatalf("expected two grab attempts, got %d", item.Detail.GrabAttempts)
	}
	if !h.blocklist.IsBlocked(best.ContentHash) {
		t.Fatal("expected failed grab to be blocklisted")
	}
	grabs, err := h.blocklist.Grabs(context.Background(), 10)
	if err != nil {
		t.Fatalf("Grabs: %v", err)
	}
	if len(grabs) != 1 || grabs[0].DownloadID != sel.DownloadID || grabs[0].EventID != 1 {
		t.Fatalf("unexpected grab history: %+v", grabs)
	}
	if got := h.health.Get("alpha").ConsecutiveGrabFailures; got != 0 {
		t.Fatalf("expected grab success to reset failures, got %d", got)
	}
}

func TestAutoGrabGivesUpAfterAttempts(t *testing.T) {
	dl := &fakeDownloader{failures: 10}
	src := staticSource("alpha", makeRelease(ufcTitle1080, 6), makeRelease(ufcTitle720, 3))
	h := newHarness(t, []indexer.Source{src}, withDownloader(dl, 1))
	h.start(t)

	item := h.waitTerminal(t, h.enqueue(t, 1, ""))
	if item.Status != searchqueue.StatusFailed {
		t.Fatalf("expected failed, got %s", item.Status)
	}
	if len(dl.titles()) != 1 {
		t.Fatalf("expected a single attempt, got %v", dl.titles())
	}
	if !strings.Contains(item.Message, "grab failed") {
		t.Fatalf("unexpected message %q", item.Message)
	}
}

func TestWorkerPanicFailsItemAndKeepsPool(t *testing.T) {
	h := newHarness(t, []indexer.Source{staticSource("alpha")}, withSettings(panicSettings{}), withMaxConcurrent(1))
	h.start(t)

	first := h.waitTerminal(t, h.enqueue(t, 1, ""))
	if first.Status != searchqueue.StatusFailed || !strings.Contains(first.Message, "internal error") {
		t.Fatalf("expected internal failure, got %s: %s", first.Status, first.Message)
	}
	second := h.waitTerminal(t, h.enqueue(t, 2, ""))
	if second.Status != searchqueue.StatusFailed {
		t.Fatalf("expected the pool to keep serving, got %s", second.Status)
	}
}

func TestCompletedItemsArePruned(t *testing.T) {
	h := newHarness(t, []indexer.Source{staticSource("alpha")})
	now := time.Now()
	var offset atomicDuration
	h.orch.SetClock(func() time.Time { return now.Add(offset.Load()) })
	h.start(t)

	id := h.enqueue(t, 1, "")
	h.waitTerminal(t, id)

	offset.Store(2 * time.Minute)
	waitFor(t, "completed item to be pruned", func() bool {
		return len(h.orch.Snapshot().RecentlyCompleted) == 0
	})
	if _, err := h.orch.Get(id); !errors.Is(err, searchqueue.ErrNotFound) {
		t.Fatalf("expected pruned item to be gone, got %v", err)
	}
}

func TestStartTwiceFails(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	if err := h.orch.Start(context.Background()); !errors.Is(err, searchqueue.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestNoSourcesFailsItem(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	item := h.waitTerminal(t, h.enqueue(t, 1, ""))
	if item.Status != searchqueue.StatusFailed || !strings.Contains(item.Message, "no release sources") {
		t.Fatalf("unexpected outcome %s: %s", item.Status, item.Message)
	}
}

func TestHooksSeeFinishedItemsAndTrippedSources(t *testing.T) {
	var (
		mu       sync.Mutex
		finished []searchqueue.Item
		tripped  []string
	)
	hooks := searchqueue.Hooks{
		ItemFinished: func(_ context.Context, it searchqueue.Item) {
			mu.Lock()
			defer mu.Unlock()
			finished = append(finished, it)
		},
		SourceTripped: func(_ context.Context, source, capability, _ string) {
			mu.Lock()
			defer mu.Unlock()
			tripped = append(tripped, source+"/"+capability)
		},
	}
	h := newHarness(t, []indexer.Source{failingSource("flaky")}, withHooks(hooks))
	h.start(t)

	for i := 0; i < 3; i++ {
		h.waitTerminal(t, h.enqueue(t, 1, ""))
	}
	waitFor(t, "three finished callbacks", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(finished) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	for _, it := range finished {
		if it.Status != searchqueue.StatusFailed || it.CompletedAt == nil {
			t.Fatalf("unexpected finished item %+v", it)
		}
	}
	if len(tripped) != 1 || tripped[0] != "flaky/query" {
		t.Fatalf("expected one query trip, got %v", tripped)
	}
}
