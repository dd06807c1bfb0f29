package blocklist_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"eventarr/internal/blocklist"
	"eventarr/internal/release"
	"eventarr/internal/services"
	"eventarr/internal/testsupport"
)

type recordingSearcher struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingSearcher) Enqueue(_ context.Context, eventID int64, part string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, part)
	return "item-1", nil
}

func sampleRelease(title, hash string) release.Release {
	return release.Release{Title: title, ContentHash: hash, SourceName: "alpha", Protocol: release.ProtocolTorrent}
}

func TestBlockAndLookup(t *testing.T) {
	manager := testsupport.MustNewManager(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if manager.IsBlocked("btih:01") {
		t.Fatal("fresh manager reports blocked hash")
	}
	entry, err := manager.Block(ctx, sampleRelease("UFC.300.720p", "btih:01"), 5, blocklist.ReasonManual, "fake release")
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if entry.EventID != 5 || entry.Message != "fake release" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	message, ok := manager.Lookup("btih:01")
	if !ok || message != "fake release" {
		t.Fatalf("Lookup = %q, %v", message, ok)
	}

	snapshot := manager.Snapshot()
	if _, err := manager.Remove(ctx, "btih:01"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if manager.IsBlocked("btih:01") {
		t.Fatal("expected hash unblocked after Remove")
	}
	if !snapshot.Contains("btih:01") {
		t.Fatal("snapshot must not observe later removals")
	}
}

func TestBlockComputesMissingHash(t *testing.T) {
	manager := testsupport.MustNewManager(t, testsupport.NewConfig(t))
	rel := release.Release{Title: "Some.Event.1080p", GUID: "guid-1", SourceName: "alpha"}

	entry, err := manager.Block(context.Background(), rel, 0, "", "")
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if entry.ContentHash != release.ContentHash(rel) {
		t.Fatalf("expected computed hash, got %q", entry.ContentHash)
	}
	if entry.Reason != blocklist.ReasonManual || entry.Message != "manual" {
		t.Fatalf("expected manual defaults, got %+v", entry)
	}
}

func TestManagerReloadsPersistedEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	if _, err := store.PutEntry(ctx, blocklist.Entry{Title: "x", ContentHash: "btih:ff", Reason: blocklist.ReasonManual, Message: "m"}); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	manager, err := blocklist.NewManager(ctx, store, 3, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if !manager.IsBlocked("btih:ff") {
		t.Fatal("expected persisted entry loaded at startup")
	}
}

func TestMarkFailedBlocksAndResearches(t *testing.T) {
	manager := testsupport.MustNewManager(t, testsupport.NewConfig(t))
	ctx := context.Background()
	searcher := &recordingSearcher{}
	manager.AttachSearcher(searcher)

	rel := sampleRelease("UFC.300.Prelims.1080p", "btih:02")
	if _, err := manager.RecordGrab(ctx, "dl-9", rel, 12, "Prelims"); err != nil {
		t.Fatalf("RecordGrab: %v", err)
	}

	result, err := manager.MarkFailed(ctx, "dl-9", true)
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if result.Entry.Reason != blocklist.ReasonDownloadFailed || result.Entry.EventID != 12 {
		t.Fatalf("unexpected entry %+v", result.Entry)
	}
	if result.Grab.Status != blocklist.GrabStatusFailed {
		t.Fatalf("expected grab failed, got %s", result.Grab.Status)
	}
	if result.SearchItemID != "item-1" || len(searcher.calls) != 1 || searcher.calls[0] != "Prelims" {
		t.Fatalf("expected one re-search for Prelims, got %+v / %v", result, searcher.calls)
	}
	if !manager.IsBlocked("btih:02") {
		t.Fatal("failed release must be blocked")
	}
}

func TestMarkFailedUnknownDownload(t *testing.T) {
	manager := testsupport.MustNewManager(t, testsupport.NewConfig(t))
	_, err := manager.MarkFailed(context.Background(), "missing", false)
	if !errors.Is(err, services.ErrNotFound) || !errors.Is(err, blocklist.ErrDownloadNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkFailedWithoutSearcher(t *testing.T) {
	manager := testsupport.MustNewManager(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := manager.RecordGrab(ctx, "dl-1", sampleRelease("a", "btih:03"), 1, ""); err != nil {
		t.Fatalf("RecordGrab: %v", err)
	}
	result, err := manager.MarkFailed(ctx, "dl-1", true)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !manager.IsBlocked("btih:03") || result.Entry.ContentHash != "btih:03" {
		t.Fatal("release must still be blocked when re-search is unavailable")
	}
}

func TestImportFailureCap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Retry.MaxImportAttempts = 2
	manager := testsupport.MustNewManager(t, cfg)
	ctx := context.Background()
	if _, err := manager.RecordGrab(ctx, "dl-2", sampleRelease("Race", "btih:04"), 4, "Race"); err != nil {
		t.Fatalf("RecordGrab: %v", err)
	}

	for attempt := 1; attempt <= 2; attempt++ {
		grab, err := manager.RecordImportFailure(ctx, "dl-2", "checksum mismatch")
		if err != nil {
			t.Fatalf("failure %d: %v", attempt, err)
		}
		if grab.Status != blocklist.GrabStatusImportFailed || grab.ImportAttempts != attempt {
			t.Fatalf("unexpected grab after failure %d: %+v", attempt, grab)
		}
		if manager.IsBlocked("btih:04") {
			t.Fatalf("release blocked after %d failures, cap not yet exceeded", attempt)
		}
	}

	grab, err := manager.RecordImportFailure(ctx, "dl-2", "checksum mismatch")
	if err != nil {
		t.Fatalf("third failure: %v", err)
	}
	if grab.Status != blocklist.GrabStatusPermanentlyFailed || !grab.Terminal() || grab.ImportAttempts != 3 {
		t.Fatalf("expected permanently failed, got %+v", grab)
	}
	message, blocked := manager.Lookup("btih:04")
	if !blocked || !strings.Contains(message, "import failed 3 times") {
		t.Fatalf("expected import failure block, got %q %v", message, blocked)
	}

	if _, err := manager.RecordImportFailure(ctx, "dl-2", "again"); !errors.Is(err, blocklist.ErrPermanentlyFailed) {
		t.Fatalf("expected permanently failed download to be refused, got %v", err)
	}
}

func TestConcurrentBlocksAreSerialized(t *testing.T) {
	manager := testsupport.MustNewManager(t, testsupport.NewConfig(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hash := "btih:" + string(rune('a'+i))
			if _, err := manager.Block(ctx, sampleRelease("r", hash), 1, blocklist.ReasonGrabFailed, "x"); err != nil {
				t.Errorf("Block %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	entries, err := manager.List(ctx, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 16 || len(manager.Snapshot()) != 16 {
		t.Fatalf("expected 16 entries, got %d stored / %d cached", len(entries), len(manager.Snapshot()))
	}
}
