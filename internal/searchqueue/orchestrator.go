package searchqueue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"eventarr/internal/blocklist"
	"eventarr/internal/catalog"
	"eventarr/internal/config"
	"eventarr/internal/download"
	"eventarr/internal/indexer"
	"eventarr/internal/logging"
	"eventarr/internal/metrics"
	"eventarr/internal/packmatch"
	"eventarr/internal/quality"
	"eventarr/internal/release"
	"eventarr/internal/services"
)

const component = "searchqueue"

var (
	// ErrNotFound reports an item id that is neither queued, active nor recently completed.
	ErrNotFound = errors.New("search item not found")
	// ErrAlreadyRunning reports a second Start.
	ErrAlreadyRunning = errors.New("orchestrator already running")
)

// Blocklist is the subset of the blocklist manager the workers use.
type Blocklist interface {
	Snapshot() blocklist.Set
	IsBlocked(contentHash string) bool
	Block(ctx context.Context, rel release.Release, eventID int64, reason blocklist.Reason, message string) (blocklist.Entry, error)
	RecordGrab(ctx context.Context, downloadID string, rel release.Release, eventID int64, part string) (blocklist.Grab, error)
}

// Deps are the collaborators an Orchestrator needs. Downloader may be nil
// when auto-grab is disabled.
type Deps struct {
	Events     catalog.Events
	Settings   catalog.Settings
	Sources    []indexer.Source
	Health     *indexer.HealthTracker
	Blocklist  Blocklist
	Downloader download.Client
	Matcher    *packmatch.Matcher
	Scorer     *quality.Scorer
	Logger     *slog.Logger
	Hooks      Hooks
}

// Hooks are optional callbacks fired from worker goroutines. They must not
// block for long.
type Hooks struct {
	// ItemFinished receives a copy of each item once it reaches a terminal
	// status.
	ItemFinished func(ctx context.Context, it Item)
	// SourceTripped fires when a source's query or grab breaker opens.
	SourceTripped func(ctx context.Context, source, capability, reason string)
}

// Options tune the pool.
type Options struct {
	MaxConcurrent      int
	SourceTimeout      time.Duration
	CompletedRetention time.Duration
	RecentLimit        int
	AutoGrab           bool
	GrabAttempts       int
	Categories         []int
}

// OptionsFromConfig maps the search section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		MaxConcurrent:      cfg.Search.MaxConcurrent,
		SourceTimeout:      cfg.SourceTimeout(),
		CompletedRetention: cfg.CompletedRetention(),
		RecentLimit:        cfg.Search.RecentlyCompletedLimit,
		AutoGrab:           cfg.Search.AutoGrab,
		GrabAttempts:       cfg.Search.GrabAttempts,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 1
	}
	if o.SourceTimeout <= 0 {
		o.SourceTimeout = 30 * time.Second
	}
	if o.CompletedRetention <= 0 {
		o.CompletedRetention = 5 * time.Second
	}
	if o.RecentLimit <= 0 {
		o.RecentLimit = 50
	}
	if o.GrabAttempts <= 0 {
		o.GrabAttempts = 1
	}
	return o
}

// entry is the orchestrator's record of an item. Fields other than
// cancelRequested are guarded by Orchestrator.mu.
type entry struct {
	item            Item
	cancelRequested atomic.Bool
}

// Orchestrator owns the search queue and its worker pool.
type Orchestrator struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending []*entry
	active  map[string]*entry
	recent  []*entry
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	wake     chan struct{}
	snapshot atomic.Pointer[Snapshot]
}

// New validates deps and returns a stopped orchestrator.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Events == nil:
		return nil, services.Wrap(services.ErrConfiguration, component, "init", "event catalog is required", nil)
	case deps.Settings == nil:
		return nil, services.Wrap(services.ErrConfiguration, component, "init", "settings provider is required", nil)
	case deps.Blocklist == nil:
		return nil, services.Wrap(services.ErrConfiguration, component, "init", "blocklist is required", nil)
	}
	if deps.Health == nil {
		deps.Health = indexer.NewHealthTracker(indexer.BreakerConfig{})
	}
	if deps.Matcher == nil {
		deps.Matcher = packmatch.NewMatcher(packmatch.DefaultConfig())
	}
	if deps.Scorer == nil {
		deps.Scorer = quality.NewScorer(1000)
	}
	opts = opts.withDefaults()
	o := &Orchestrator{
		deps:   deps,
		opts:   opts,
		logger: logging.NewComponentLogger(deps.Logger, component),
		now:    time.Now,
		active: make(map[string]*entry),
		wake:   make(chan struct{}, opts.MaxConcurrent),
	}
	o.publishLocked()
	return o, nil
}

// SetClock overrides the time source. Call before Start.
func (o *Orchestrator) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	o.mu.Lock()
	o.now = now
	o.publishLocked()
	o.mu.Unlock()
}

// MaxConcurrent returns the pool size.
func (o *Orchestrator) MaxConcurrent() int { return o.opts.MaxConcurrent }

// Start launches the worker pool and the pruning loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.running = true

	for i := 0; i < o.opts.MaxConcurrent; i++ {
		o.wg.Add(1)
		go o.worker(runCtx)
	}
	o.wg.Add(1)
	go o.pruneLoop(runCtx)

	o.logger.Info("search queue started",
		logging.Int("max_concurrent", o.opts.MaxConcurrent),
		logging.Int("sources", len(o.deps.Sources)),
		logging.Bool("auto_grab", o.opts.AutoGrab),
	)
	return nil
}

// Stop cancels in-flight work and waits for the workers to exit. Items still
// queued stay queued.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	running := o.running
	o.running = false
	o.cancel = nil
	o.mu.Unlock()
	if !running {
		return
	}
	if cancel != nil {
		cancel()
	}
	o.wg.Wait()
	o.logger.Info("search queue stopped")
}

// Running reports whether the pool is started.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Enqueue queues a search for an event, optionally limited to one part.
// A request matching an item that is still queued returns that item's id.
// Items already searching are never reused, so a re-search requested after a
// blocklist change sees the updated blocklist.
func (o *Orchestrator) Enqueue(ctx context.Context, eventID int64, part string) (string, error) {
	ev, err := o.deps.Events.Event(ctx, eventID)
	if err != nil {
		return "", err
	}
	part = strings.TrimSpace(part)

	o.mu.Lock()
	defer o.mu.Unlock()
	if existing := o.findOpenLocked(eventID, part); existing != nil {
		return existing.item.ID, nil
	}
	e := &entry{item: Item{
		ID:         uuid.NewString(),
		EventID:    ev.ID,
		EventTitle: ev.Title,
		Part:       part,
		Status:     StatusQueued,
		QueuedAt:   o.now().UTC(),
	}}
	o.pending = append(o.pending, e)
	o.publishLocked()

	select {
	case o.wake <- struct{}{}:
	default:
	}
	o.logger.Info("search queued",
		logging.String(logging.FieldItemID, e.item.ID),
		logging.Int64(logging.FieldEventID, ev.ID),
		logging.String("event_title", ev.Title),
		logging.String("part", part),
		logging.Int("pending", len(o.pending)),
	)
	return e.item.ID, nil
}

func (o *Orchestrator) findOpenLocked(eventID int64, part string) *entry {
	for _, e := range o.pending {
		if e.item.EventID == eventID && strings.EqualFold(e.item.Part, part) {
			return e
		}
	}
	return nil
}

// Cancel cancels an item. Queued items are cancelled immediately; searching
// items stop at their next checkpoint. The returned bool is false when the
// item had already finished.
func (o *Orchestrator) Cancel(id string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, e := range o.pending {
		if e.item.ID != id {
			continue
		}
		o.pending = append(o.pending[:i], o.pending[i+1:]...)
		e.cancelRequested.Store(true)
		o.finishLocked(e, outcome{status: StatusCancelled, message: "cancelled before start"})
		return true, nil
	}
	if e, ok := o.active[id]; ok {
		e.cancelRequested.Store(true)
		o.logger.Info("cancellation requested", logging.String(logging.FieldItemID, id))
		return true, nil
	}
	for _, e := range o.recent {
		if e.item.ID == id {
			return false, nil
		}
	}
	return false, services.Wrap(services.ErrNotFound, component, "cancel", id, ErrNotFound)
}

// Snapshot returns the latest published view of the queue.
func (o *Orchestrator) Snapshot() Snapshot {
	snap := o.snapshot.Load()
	if snap == nil {
		return Snapshot{MaxConcurrent: o.opts.MaxConcurrent}
	}
	return snap.clone()
}

// Get returns one item from the latest snapshot.
func (o *Orchestrator) Get(id string) (Item, error) {
	snap := o.snapshot.Load()
	if snap != nil {
		if it, ok := snap.Find(id); ok {
			return it.Clone(), nil
		}
	}
	return Item{}, services.Wrap(services.ErrNotFound, component, "get", id, ErrNotFound)
}

// next moves the oldest queued item to the active set.
func (o *Orchestrator) next() *entry {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.pending) == 0 {
		return nil
	}
	e := o.pending[0]
	o.pending[0] = nil
	o.pending = o.pending[1:]
	started := o.now().UTC()
	e.item.Status = StatusSearching
	e.item.StartedAt = &started
	o.active[e.item.ID] = e
	o.publishLocked()
	return e
}

// update applies fn to an active item under the lock and republishes.
func (o *Orchestrator) update(e *entry, fn func(*Item)) {
	o.mu.Lock()
	fn(&e.item)
	o.publishLocked()
	o.mu.Unlock()
}

func (o *Orchestrator) finish(e *entry, out outcome) Item {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, e.item.ID)
	o.finishLocked(e, out)
	return e.item.Clone()
}

func (o *Orchestrator) sourceTripped(ctx context.Context, source, capability, reason string) {
	if hook := o.deps.Hooks.SourceTripped; hook != nil {
		hook(ctx, source, capability, reason)
	}
}

func (o *Orchestrator) finishLocked(e *entry, out outcome) {
	completed := o.now().UTC()
	it := &e.item
	it.Status = out.status
	it.CompletedAt = &completed
	it.Message = out.message
	it.Success = out.status == StatusCompleted
	if out.selection != nil {
		it.SelectedRelease = out.selection
	}

	o.recent = append(o.recent, e)
	if extra := len(o.recent) - o.opts.RecentLimit; extra > 0 {
		o.recent = append(o.recent[:0:0], o.recent[extra:]...)
	}
	o.publishLocked()

	var duration time.Duration
	if it.StartedAt != nil {
		duration = completed.Sub(*it.StartedAt)
	}
	metrics.RecordSearch(string(out.status), duration)
}

// prune drops terminal items older than the retention window.
func (o *Orchestrator) prune() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pruneLocked() {
		o.publishLocked()
	}
}

func (o *Orchestrator) pruneLocked() bool {
	cutoff := o.now().Add(-o.opts.CompletedRetention)
	kept := o.recent[:0]
	for _, e := range o.recent {
		if e.item.CompletedAt != nil && e.item.CompletedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	changed := len(kept) != len(o.recent)
	for i := len(kept); i < len(o.recent); i++ {
		o.recent[i] = nil
	}
	o.recent = kept
	return changed
}

func (o *Orchestrator) pruneLoop(ctx context.Context) {
	defer o.wg.Done()
	interval := min(max(o.opts.CompletedRetention/2, 100*time.Millisecond), time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.prune()
		}
	}
}

// publishLocked stores a fresh snapshot. Callers hold o.mu.
func (o *Orchestrator) publishLocked() {
	o.pruneLocked()
	snap := &Snapshot{
		PendingCount:      len(o.pending),
		ActiveCount:       len(o.active),
		MaxConcurrent:     o.opts.MaxConcurrent,
		Pending:           make([]Item, 0, len(o.pending)),
		Active:            make([]Item, 0, len(o.active)),
		RecentlyCompleted: make([]Item, 0, len(o.recent)),
		GeneratedAt:       o.now().UTC(),
	}
	for _, e := range o.pending {
		snap.Pending = append(snap.Pending, e.item.Clone())
	}
	for _, e := range o.active {
		snap.Active = append(snap.Active, e.item.Clone())
	}
	sortByQueuedAt(snap.Active)
	for i := len(o.recent) - 1; i >= 0; i-- {
		snap.RecentlyCompleted = append(snap.RecentlyCompleted, o.recent[i].item.Clone())
	}
	o.snapshot.Store(snap)
	metrics.SetQueueDepth(snap.PendingCount, snap.ActiveCount)
}
