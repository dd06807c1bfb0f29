package indexer

import (
	"sort"
	"sync"
	"time"
)

// BreakerConfig sets failure thresholds and cool-downs.
type BreakerConfig struct {
	QueryThreshold int
	GrabThreshold  int
	QueryCooldown  time.Duration
	GrabCooldown   time.Duration
}

// Health is a point-in-time view of one source.
type Health struct {
	Source                   string     `json:"source"`
	ConsecutiveQueryFailures int        `json:"consecutiveQueryFailures"`
	ConsecutiveGrabFailures  int        `json:"consecutiveGrabFailures"`
	QueryDisabledUntil       *time.Time `json:"queryDisabledUntil,omitempty"`
	GrabDisabledUntil        *time.Time `json:"grabDisabledUntil,omitempty"`
	LastFailureReason        string     `json:"lastFailureReason,omitempty"`
	LastFailureAt            *time.Time `json:"lastFailureAt,omitempty"`
}

// QueryAvailable reports whether queries are allowed at now.
func (h Health) QueryAvailable(now time.Time) bool {
	return h.QueryDisabledUntil == nil || !now.Before(*h.QueryDisabledUntil)
}

// GrabAvailable reports whether grabs are allowed at now.
func (h Health) GrabAvailable(now time.Time) bool {
	return h.GrabDisabledUntil == nil || !now.Before(*h.GrabDisabledUntil)
}

// HealthTracker counts consecutive failures per source. It is safe for
// concurrent use by search workers.
//
// A tripped side stays disabled until its cool-down passes. The failure
// counter is kept, so the first failure after the cool-down trips it again;
// a success resets it.
type HealthTracker struct {
	mu     sync.Mutex
	cfg    BreakerConfig
	now    func() time.Time
	states map[string]*Health
}

const (
	defaultBreakerThreshold = 3
	defaultBreakerCooldown  = 15 * time.Minute
)

// NewHealthTracker returns a tracker. Non-positive thresholds default to 3 and
// non-positive cool-downs to 15 minutes.
func NewHealthTracker(cfg BreakerConfig) *HealthTracker {
	if cfg.QueryThreshold <= 0 {
		cfg.QueryThreshold = defaultBreakerThreshold
	}
	if cfg.GrabThreshold <= 0 {
		cfg.GrabThreshold = defaultBreakerThreshold
	}
	if cfg.QueryCooldown <= 0 {
		cfg.QueryCooldown = defaultBreakerCooldown
	}
	if cfg.GrabCooldown <= 0 {
		cfg.GrabCooldown = defaultBreakerCooldown
	}
	return &HealthTracker{cfg: cfg, now: time.Now, states: make(map[string]*Health)}
}

// SetClock replaces the time source.
func (t *HealthTracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	t.now = now
}

func (t *HealthTracker) state(name string) *Health {
	h, ok := t.states[name]
	if !ok {
		h = &Health{Source: name}
		t.states[name] = h
	}
	return h
}

// QueryAvailable reports whether the source may be queried now.
func (t *HealthTracker) QueryAvailable(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state(name).QueryAvailable(t.now())
}

// GrabAvailable reports whether releases from the source may be grabbed now.
func (t *HealthTracker) GrabAvailable(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state(name).GrabAvailable(t.now())
}

// RecordQuerySuccess resets the query failure counter.
func (t *HealthTracker) RecordQuerySuccess(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.state(name)
	h.ConsecutiveQueryFailures = 0
	h.QueryDisabledUntil = nil
}

// RecordQueryFailure counts a failed query and reports whether it tripped the breaker.
func (t *HealthTracker) RecordQueryFailure(name, reason string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	h := t.state(name)
	h.ConsecutiveQueryFailures++
	h.LastFailureReason = reason
	h.LastFailureAt = &now
	if h.ConsecutiveQueryFailures < t.cfg.QueryThreshold {
		return false
	}
	until := now.Add(t.cfg.QueryCooldown)
	h.QueryDisabledUntil = &until
	return true
}

// RecordGrabSuccess resets the grab failure counter.
func (t *HealthTracker) RecordGrabSuccess(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.state(name)
	h.ConsecutiveGrabFailures = 0
	h.GrabDisabledUntil = nil
}

// RecordGrabFailure counts a failed grab and reports whether it tripped the breaker.
func (t *HealthTracker) RecordGrabFailure(name, reason string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	h := t.state(name)
	h.ConsecutiveGrabFailures++
	h.LastFailureReason = reason
	h.LastFailureAt = &now
	if h.ConsecutiveGrabFailures < t.cfg.GrabThreshold {
		return false
	}
	until := now.Add(t.cfg.GrabCooldown)
	h.GrabDisabledUntil = &until
	return true
}

// Get returns a copy of one source's health.
func (t *HealthTracker) Get(name string) Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyHealth(*t.state(name))
}

// Snapshot returns copies of every tracked source, sorted by name. names are
// included even when they have no recorded activity yet.
func (t *HealthTracker) Snapshot(names ...string) []Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, name := range names {
		t.state(name)
	}
	out := make([]Health, 0, len(t.states))
	for _, h := range t.states {
		out = append(out, copyHealth(*h))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

func copyHealth(h Health) Health {
	h.QueryDisabledUntil = copyTime(h.QueryDisabledUntil)
	h.GrabDisabledUntil = copyTime(h.GrabDisabledUntil)
	h.LastFailureAt = copyTime(h.LastFailureAt)
	return h
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
