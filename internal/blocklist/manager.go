package blocklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"eventarr/internal/logging"
	"eventarr/internal/metrics"
	"eventarr/internal/release"
	"eventarr/internal/services"
)

const component = "blocklist"

var (
	// ErrDownloadNotFound reports a download id with no recorded grab.
	ErrDownloadNotFound = errors.New("download not found")
	// ErrPermanentlyFailed reports a download that exhausted its import retries.
	ErrPermanentlyFailed = errors.New("download permanently failed")
)

// Searcher re-enqueues a search for an event after a download failed.
type Searcher interface {
	Enqueue(ctx context.Context, eventID int64, part string) (string, error)
}

// FailureResult describes what MarkFailed did.
type FailureResult struct {
	Entry        Entry  `json:"entry"`
	Grab         Grab   `json:"grab"`
	SearchItemID string `json:"searchItemId,omitempty"`
}

// Manager serializes blocklist and retry writes and serves lookups from an
// in-memory index of blocked hashes.
type Manager struct {
	store             *Store
	logger            *slog.Logger
	maxImportAttempts int

	writeMu sync.Mutex

	mu       sync.RWMutex
	blocked  map[string]string
	searcher Searcher
}

// NewManager loads the current blocklist into memory.
func NewManager(ctx context.Context, store *Store, maxImportAttempts int, logger *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "init", "store is required", nil)
	}
	if maxImportAttempts <= 0 {
		maxImportAttempts = 1
	}
	entries, err := store.Entries(ctx, 0)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, component, "load", "read blocklist", err)
	}
	blocked := make(map[string]string, len(entries))
	for _, entry := range entries {
		blocked[entry.ContentHash] = entry.Message
	}
	return &Manager{
		store:             store,
		logger:            logging.NewComponentLogger(logger, component),
		maxImportAttempts: maxImportAttempts,
		blocked:           blocked,
	}, nil
}

// AttachSearcher sets the searcher used by MarkFailed when a re-search is requested.
func (m *Manager) AttachSearcher(searcher Searcher) {
	m.mu.Lock()
	m.searcher = searcher
	m.mu.Unlock()
}

// IsBlocked reports whether contentHash is on the blocklist.
func (m *Manager) IsBlocked(contentHash string) bool {
	_, blocked := m.Lookup(contentHash)
	return blocked
}

// Lookup returns the stored message for a blocked hash.
func (m *Manager) Lookup(contentHash string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	message, ok := m.blocked[contentHash]
	return message, ok
}

// Snapshot returns a point-in-time copy of the blocked hashes.
func (m *Manager) Snapshot() Set {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := make(Set, len(m.blocked))
	for hash, message := range m.blocked {
		set[hash] = message
	}
	return set
}

// Block adds rel to the blocklist. Blocking an already blocked release
// refreshes its reason and message.
func (m *Manager) Block(ctx context.Context, rel release.Release, eventID int64, reason Reason, message string) (Entry, error) {
	hash := rel.ContentHash
	if hash == "" {
		hash = release.ContentHash(rel)
	}
	if strings.TrimSpace(rel.Title) == "" {
		return Entry{}, services.Wrap(services.ErrValidation, component, "block", "release title is required", nil)
	}
	if reason == "" {
		reason = ReasonManual
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = string(reason)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.blockLocked(ctx, Entry{
		EventID:     eventID,
		Title:       rel.Title,
		ContentHash: hash,
		SourceName:  rel.SourceName,
		Protocol:    string(rel.Protocol),
		Reason:      reason,
		Message:     message,
	})
}

func (m *Manager) blockLocked(ctx context.Context, entry Entry) (Entry, error) {
	stored, err := m.store.PutEntry(ctx, entry)
	if err != nil {
		return Entry{}, services.Wrap(services.ErrTransient, component, "block", "persist entry", err)
	}
	m.mu.Lock()
	m.blocked[stored.ContentHash] = stored.Message
	m.mu.Unlock()
	metrics.RecordBlock(string(stored.Reason))

	m.logger.Info("release blocklisted",
		logging.String("content_hash", stored.ContentHash),
		logging.String("title", stored.Title),
		logging.String("reason", string(stored.Reason)),
		logging.String(logging.FieldSource, stored.SourceName),
		logging.Int64(logging.FieldEventID, stored.EventID),
	)
	return stored, nil
}

// Remove unblocks a content hash. It reports whether an entry existed.
func (m *Manager) Remove(ctx context.Context, contentHash string) (bool, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	removed, err := m.store.DeleteEntry(ctx, contentHash)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, component, "remove", "delete entry", err)
	}
	m.mu.Lock()
	delete(m.blocked, contentHash)
	m.mu.Unlock()
	if removed {
		m.logger.Info("release unblocked", logging.String("content_hash", contentHash))
	}
	return removed, nil
}

// List returns blocklist entries, newest first. eventID > 0 filters by event.
func (m *Manager) List(ctx context.Context, eventID int64) ([]Entry, error) {
	entries, err := m.store.Entries(ctx, eventID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, component, "list", "read entries", err)
	}
	return entries, nil
}

// RecordGrab stores the hand-off of rel to a download client.
func (m *Manager) RecordGrab(ctx context.Context, downloadID string, rel release.Release, eventID int64, part string) (Grab, error) {
	hash := rel.ContentHash
	if hash == "" {
		hash = release.ContentHash(rel)
	}
	grab := Grab{
		DownloadID:  downloadID,
		EventID:     eventID,
		Part:        part,
		Title:       rel.Title,
		ContentHash: hash,
		SourceName:  rel.SourceName,
		Protocol:    string(rel.Protocol),
		DownloadURL: rel.DownloadURL,
		SizeBytes:   rel.SizeBytes,
		Status:      GrabStatusGrabbed,
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := m.store.InsertGrab(ctx, grab); err != nil {
		return Grab{}, services.Wrap(services.ErrTransient, component, "record grab", "persist grab", err)
	}
	stored, err := m.store.Grab(ctx, downloadID)
	if err != nil || stored == nil {
		return grab, nil
	}
	return *stored, nil
}

// Grabs lists recent grabs.
func (m *Manager) Grabs(ctx context.Context, limit int) ([]Grab, error) {
	grabs, err := m.store.Grabs(ctx, limit)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, component, "list grabs", "read grabs", err)
	}
	return grabs, nil
}

// MarkFailed blocklists the release behind a failed download. When alsoSearch
// is set a new search is enqueued for the same event and part; the blocked
// hash keeps the failed release out of its candidates.
func (m *Manager) MarkFailed(ctx context.Context, downloadID string, alsoSearch bool) (FailureResult, error) {
	m.writeMu.Lock()
	grab, err := m.grabLocked(ctx, downloadID, "mark failed")
	if err != nil {
		m.writeMu.Unlock()
		return FailureResult{}, err
	}
	entry, err := m.blockLocked(ctx, Entry{
		EventID:     grab.EventID,
		Title:       grab.Title,
		ContentHash: grab.ContentHash,
		SourceName:  grab.SourceName,
		Protocol:    grab.Protocol,
		Reason:      ReasonDownloadFailed,
		Message:     "download failed",
	})
	if err != nil {
		m.writeMu.Unlock()
		return FailureResult{}, err
	}
	grab.Status = GrabStatusFailed
	if err := m.store.UpdateGrabStatus(ctx, grab); err != nil {
		m.writeMu.Unlock()
		return FailureResult{}, services.Wrap(services.ErrTransient, component, "mark failed", "update grab", err)
	}
	m.writeMu.Unlock()

	result := FailureResult{Entry: entry, Grab: *grab}
	if !alsoSearch {
		return result, nil
	}

	m.mu.RLock()
	searcher := m.searcher
	m.mu.RUnlock()
	if searcher == nil {
		return result, services.Wrap(services.ErrConfiguration, component, "mark failed", "no searcher attached for re-search", nil)
	}
	itemID, err := searcher.Enqueue(ctx, grab.EventID, grab.Part)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, component, "mark failed", "enqueue re-search", err)
	}
	result.SearchItemID = itemID
	m.logger.Info("re-search enqueued after failed download",
		logging.String("download_id", downloadID),
		logging.String(logging.FieldItemID, itemID),
		logging.Int64(logging.FieldEventID, grab.EventID),
	)
	return result, nil
}

// RecordImportFailure counts one failed import of a download. Once the count
// exceeds the cap the grab becomes permanently failed, its release is
// blocklisted and further failures are refused. A cap of 2 allows two failed
// imports that stay retryable; the third is permanent.
func (m *Manager) RecordImportFailure(ctx context.Context, downloadID, message string) (Grab, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	grab, err := m.grabLocked(ctx, downloadID, "import failure")
	if err != nil {
		return Grab{}, err
	}
	if grab.Status == GrabStatusPermanentlyFailed {
		return *grab, services.Wrap(services.ErrValidation, component, "import failure",
			"download "+downloadID, ErrPermanentlyFailed)
	}

	grab.ImportAttempts++
	grab.LastError = strings.TrimSpace(message)
	grab.Status = GrabStatusImportFailed
	if grab.ImportAttempts > m.maxImportAttempts {
		grab.Status = GrabStatusPermanentlyFailed
	}
	if err := m.store.UpdateGrabStatus(ctx, grab); err != nil {
		return Grab{}, services.Wrap(services.ErrTransient, component, "import failure", "update grab", err)
	}

	if grab.Status == GrabStatusPermanentlyFailed {
		reason := fmt.Sprintf("import failed %d times", grab.ImportAttempts)
		if grab.LastError != "" {
			reason += ": " + grab.LastError
		}
		if _, err := m.blockLocked(ctx, Entry{
			EventID:     grab.EventID,
			Title:       grab.Title,
			ContentHash: grab.ContentHash,
			SourceName:  grab.SourceName,
			Protocol:    grab.Protocol,
			Reason:      ReasonImportFailed,
			Message:     reason,
		}); err != nil {
			return *grab, err
		}
		logging.WarnWithContext(m.logger, "download permanently failed", "import_failed",
			logging.String("download_id", downloadID),
			logging.Int("import_attempts", grab.ImportAttempts),
			logging.String(logging.FieldImpact, "release will not be retried automatically"),
			logging.String(logging.FieldErrorHint, "inspect the download and search again manually"),
		)
	}
	return *grab, nil
}

func (m *Manager) grabLocked(ctx context.Context, downloadID, op string) (*Grab, error) {
	downloadID = strings.TrimSpace(downloadID)
	if downloadID == "" {
		return nil, services.Wrap(services.ErrValidation, component, op, "download id is required", nil)
	}
	grab, err := m.store.Grab(ctx, downloadID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, component, op, "read grab", err)
	}
	if grab == nil {
		return nil, services.Wrap(services.ErrNotFound, component, op, downloadID, ErrDownloadNotFound)
	}
	return grab, nil
}
