package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"eventarr/internal/api"
	"eventarr/internal/blocklist"
	"eventarr/internal/catalog"
	"eventarr/internal/config"
	"eventarr/internal/download"
	"eventarr/internal/indexer"
	"eventarr/internal/logging"
	"eventarr/internal/notifications"
	"eventarr/internal/packmatch"
	"eventarr/internal/quality"
	"eventarr/internal/searchqueue"
)

// ErrAlreadyRunning is returned by Start when the daemon or another instance
// holding the lock is already running.
var ErrAlreadyRunning = errors.New("daemon already running")

// Daemon owns every long-lived component and enforces single-instance
// execution through a file lock.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store     *blocklist.Store
	blocklist *blocklist.Manager
	catalog   *catalog.Static
	sources   []indexer.Source
	health    *indexer.HealthTracker
	matcher   *packmatch.Matcher
	scorer    *quality.Scorer
	queue     *searchqueue.Orchestrator
	server    *api.Server
	notify    notifier

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	started time.Time
	cancel  context.CancelFunc
	addr    net.Addr
}

// New opens the database and builds every component from cfg. The daemon is
// not started; call Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	static, err := catalog.LoadStatic(cfg.Paths.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	httpClient := &http.Client{Timeout: 2 * cfg.SourceTimeout()}
	sources, err := indexer.FromConfig(cfg, httpClient)
	if err != nil {
		return nil, fmt.Errorf("build sources: %w", err)
	}

	store, err := blocklist.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open blocklist store: %w", err)
	}
	manager, err := blocklist.NewManager(ctx, store, cfg.Retry.MaxImportAttempts, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load blocklist: %w", err)
	}

	var downloader download.Client
	if cfg.Search.AutoGrab {
		blackhole, err := download.NewBlackhole(cfg.Paths.BlackholeDir, httpClient, logger)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("auto-grab: %w", err)
		}
		downloader = blackhole
	}

	health := indexer.NewHealthTracker(BreakerConfig(cfg))
	matcher := packmatch.NewMatcher(MatchConfig(cfg))
	scorer := quality.NewScorer(cfg.Scoring.QualityWeight)
	notify := notifier{
		svc:    notifications.NewService(cfg),
		logger: logging.NewComponentLogger(logger, "notifications"),
	}

	queue, err := searchqueue.New(searchqueue.Deps{
		Events:     static,
		Settings:   static,
		Sources:    sources,
		Health:     health,
		Blocklist:  manager,
		Downloader: downloader,
		Matcher:    matcher,
		Scorer:     scorer,
		Logger:     logger,
		Hooks:      notify.hooks(),
	}, searchqueue.OptionsFromConfig(cfg))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build search queue: %w", err)
	}
	manager.AttachSearcher(queue)

	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		blocklist: manager,
		catalog:   static,
		sources:   sources,
		health:    health,
		matcher:   matcher,
		scorer:    scorer,
		queue:     queue,
		notify:    notify,
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}
	d.server = api.NewServer(d, cfg.Paths.APIToken, logger)
	return d, nil
}

// BreakerConfig maps the breaker section of cfg.
func BreakerConfig(cfg *config.Config) indexer.BreakerConfig {
	return indexer.BreakerConfig{
		QueryThreshold: cfg.Breaker.QueryFailureThreshold,
		GrabThreshold:  cfg.Breaker.GrabFailureThreshold,
		QueryCooldown:  cfg.QueryCooldown(),
		GrabCooldown:   cfg.GrabCooldown(),
	}
}

// MatchConfig maps the matching section of cfg.
func MatchConfig(cfg *config.Config) packmatch.Config {
	return packmatch.Config{
		Threshold:  cfg.Matching.Threshold,
		DateWindow: cfg.Matching.DateWindowDays,
		Weights: packmatch.Weights{
			Date:   cfg.Matching.WeightDate,
			Tokens: cfg.Matching.WeightTokens,
			Round:  cfg.Matching.WeightRound,
			League: cfg.Matching.WeightLeague,
		},
	}
}

// Start acquires the lock, starts the worker pool and, when a bind address
// is configured, the API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return ErrAlreadyRunning
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: lock %s is held by another eventarr daemon", ErrAlreadyRunning, d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.queue.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start search queue: %w", err)
	}
	if bind := strings.TrimSpace(d.cfg.Paths.APIBind); bind != "" {
		addr, err := d.server.Start(runCtx, bind)
		if err != nil {
			cancel()
			d.queue.Stop()
			_ = d.lock.Unlock()
			return fmt.Errorf("start api server: %w", err)
		}
		d.addr = addr
	}

	d.cancel = cancel
	d.started = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("eventarr daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("sources", len(d.sources)),
		logging.Int("max_concurrent", d.queue.MaxConcurrent()),
		logging.Bool("auto_grab", d.cfg.Search.AutoGrab),
	)
	return nil
}

// Stop halts the API server and worker pool and releases the lock.
// Queued items are dropped with the process.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	d.server.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.queue.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.String("lock", d.lockPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
		)
	}
	d.addr = nil
	d.running.Store(false)
	d.logger.Info("eventarr daemon stopped")
}

// Close stops the daemon and closes the database.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the API listen address, or nil when the API is not serving.
func (d *Daemon) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// ReloadCatalog re-reads the catalog file. Searches already running keep the
// settings they started with.
func (d *Daemon) ReloadCatalog() error {
	if err := d.catalog.Reload(); err != nil {
		logging.WarnWithContext(d.logger, "catalog reload failed", "catalog_reload_failed",
			logging.String("path", d.cfg.Paths.CatalogFile),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the previous catalog stays in force"),
		)
		return err
	}
	d.logger.Info("catalog reloaded",
		logging.String("path", d.cfg.Paths.CatalogFile),
		logging.Int("events", len(d.catalog.List(context.Background()))),
	)
	return nil
}

// Status implements api.Service.
func (d *Daemon) Status(_ context.Context) api.Status {
	snap := d.queue.Snapshot()
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	return api.Status{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		StartedAt:       started,
		DatabasePath:    d.cfg.DatabasePath(),
		LockPath:        d.lockPath,
		CatalogPath:     d.cfg.Paths.CatalogFile,
		CatalogLoadedAt: d.catalog.LoadedAt(),
		PendingCount:    snap.PendingCount,
		ActiveCount:     snap.ActiveCount,
		MaxConcurrent:   snap.MaxConcurrent,
		Sources:         len(d.sources),
		AutoGrab:        d.cfg.Search.AutoGrab,
		BlockedReleases: len(d.blocklist.Snapshot()),
	}
}
