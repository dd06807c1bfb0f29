package searchqueue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"eventarr/internal/blocklist"
	"eventarr/internal/catalog"
	"eventarr/internal/indexer"
	"eventarr/internal/logging"
	"eventarr/internal/release"
	"eventarr/internal/searchqueue"
	"eventarr/internal/services"
	"eventarr/internal/testsupport"
)

const (
	ufcTitle1080 = "UFC.300.Pereira.vs.Hill.2024.04.13.1080p.WEB-DL.H264-GRP"
	ufcTitle720  = "UFC.300.Pereira.vs.Hill.2024.04.13.720p.HDTV.x264-TV"
)

func makeRelease(title string, sizeGiB float64) release.Release {
	rel := release.Release{
		Title:       title,
		Protocol:    release.ProtocolTorrent,
		SizeBytes:   int64(sizeGiB * float64(1<<30)),
		PublishedAt: time.Date(2024, 4, 14, 6, 0, 0, 0, time.UTC),
		DownloadURL: "http://tracker.local/download/" + title,
	}
	rel.Enrich()
	return rel
}

// fakeSource answers every query through fn and counts calls.
type fakeSource struct {
	name     string
	fn       func(ctx context.Context, q indexer.Query) ([]release.Release, error)
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeSource) Name() string               { return f.name }
func (f *fakeSource) Protocol() release.Protocol { return release.ProtocolTorrent }

func (f *fakeSource) Search(ctx context.Context, q indexer.Query) ([]release.Release, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	return f.fn(ctx, q)
}

func staticSource(name string, releases ...release.Release) *fakeSource {
	return &fakeSource{name: name, fn: func(context.Context, indexer.Query) ([]release.Release, error) {
		out := make([]release.Release, len(releases))
		copy(out, releases)
		return out, nil
	}}
}

func failingSource(name string) *fakeSource {
	return &fakeSource{name: name, fn: func(context.Context, indexer.Query) ([]release.Release, error) {
		return nil, services.Wrap(services.ErrSourceFailure, "fake", "search", "http 503", nil)
	}}
}

// gatedSource blocks every query until the gate is opened.
func gatedSource(name string, gate <-chan struct{}, releases ...release.Release) *fakeSource {
	return &fakeSource{name: name, fn: func(ctx context.Context, _ indexer.Query) ([]release.Release, error) {
		select {
		case <-gate:
			return releases, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
}

// fakeDownloader fails the first failures calls and accepts the rest.
type fakeDownloader struct {
	mu       sync.Mutex
	failures int
	added    []string
}

func (d *fakeDownloader) Name() string { return "fake" }

func (d *fakeDownloader) Add(_ context.Context, rel release.Release) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.added = append(d.added, rel.Title)
	if len(d.added) <= d.failures {
		return "", services.Wrap(services.ErrSourceFailure, "fake", "add", "fetch link", errors.New("http 404"))
	}
	return "dl-" + rel.ContentHash[len(rel.ContentHash)-8:], nil
}

func (d *fakeDownloader) titles() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.added...)
}

type atomicDuration struct{ v atomic.Int64 }

func (d *atomicDuration) Load() time.Duration   { return time.Duration(d.v.Load()) }
func (d *atomicDuration) Store(v time.Duration) { d.v.Store(int64(v)) }

type panicSettings struct{}

func (panicSettings) Snapshot(context.Context, int64) (catalog.Snapshot, error) {
	panic("settings store exploded")
}

type harness struct {
	orch      *searchqueue.Orchestrator
	blocklist *blocklist.Manager
	health    *indexer.HealthTracker
	catalog   *catalog.Static
}

type harnessOption func(*searchqueue.Deps, *searchqueue.Options)

func withSettings(s catalog.Settings) harnessOption {
	return func(d *searchqueue.Deps, _ *searchqueue.Options) { d.Settings = s }
}

func withDownloader(dl *fakeDownloader, attempts int) harnessOption {
	return func(d *searchqueue.Deps, o *searchqueue.Options) {
		d.Downloader = dl
		o.AutoGrab = true
		o.GrabAttempts = attempts
	}
}

func withHooks(hooks searchqueue.Hooks) harnessOption {
	return func(d *searchqueue.Deps, _ *searchqueue.Options) { d.Hooks = hooks }
}

func withMaxConcurrent(n int) harnessOption {
	return func(_ *searchqueue.Deps, o *searchqueue.Options) { o.MaxConcurrent = n }
}

func newHarness(t *testing.T, sources []indexer.Source, opts ...harnessOption) *harness {
	t.Helper()

	file, err := catalog.Parse([]byte(catalog.SampleYAML()))
	if err != nil {
		t.Fatalf("parse sample catalog: %v", err)
	}
	static, err := catalog.NewStatic(file)
	if err != nil {
		t.Fatalf("NewStatic: %v", err)
	}
	cfg := testsupport.NewConfig(t)
	manager := testsupport.MustNewManager(t, cfg)
	health := indexer.NewHealthTracker(indexer.BreakerConfig{
		QueryThreshold: 3,
		GrabThreshold:  3,
		QueryCooldown:  time.Hour,
		GrabCooldown:   time.Hour,
	})

	deps := searchqueue.Deps{
		Events:    static,
		Settings:  static,
		Sources:   sources,
		Health:    health,
		Blocklist: manager,
		Logger:    logging.NewNop(),
	}
	options := searchqueue.Options{
		MaxConcurrent:      2,
		SourceTimeout:      5 * time.Second,
		CompletedRetention: time.Minute,
	}
	for _, opt := range opts {
		opt(&deps, &options)
	}
	orch, err := searchqueue.New(deps, options)
	if err != nil {
		t.Fatalf("searchqueue.New: %v", err)
	}
	return &harness{orch: orch, blocklist: manager, health: health, catalog: static}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.orch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(h.orch.Stop)
}

func (h *harness) enqueue(t *testing.T, eventID int64, part string) string {
	t.Helper()
	id, err := h.orch.Enqueue(context.Background(), eventID, part)
	if err != nil {
		t.Fatalf("Enqueue(%d, %q): %v", eventID, part, err)
	}
	return id
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (h *harness) waitTerminal(t *testing.T, id string) searchqueue.Item {
	t.Helper()
	var item searchqueue.Item
	waitFor(t, "item "+id+" to finish", func() bool {
		got, err := h.orch.Get(id)
		if err != nil {
			return false
		}
		item = got
		return got.Status.Terminal()
	})
	return item
}
