package blocklist

import "time"

// Reason classifies why a release was blocked.
type Reason string

const (
	ReasonManual         Reason = "manual"
	ReasonGrabFailed     Reason = "grab_failed"
	ReasonDownloadFailed Reason = "download_failed"
	ReasonImportFailed   Reason = "import_failed"
)

// Entry is one blocked release.
type Entry struct {
	ID          int64     `json:"id"`
	EventID     int64     `json:"eventId,omitempty"`
	Title       string    `json:"title"`
	ContentHash string    `json:"contentHash"`
	SourceName  string    `json:"sourceName,omitempty"`
	Protocol    string    `json:"protocol,omitempty"`
	Reason      Reason    `json:"reason"`
	Message     string    `json:"message"`
	BlockedAt   time.Time `json:"blockedAt"`
}

// GrabStatus tracks a handed-off download.
type GrabStatus string

const (
	GrabStatusGrabbed           GrabStatus = "grabbed"
	GrabStatusFailed            GrabStatus = "failed"
	GrabStatusImportFailed      GrabStatus = "import_failed"
	GrabStatusPermanentlyFailed GrabStatus = "permanently_failed"
)

// Grab records a release handed to a download client.
type Grab struct {
	DownloadID     string     `json:"downloadId"`
	EventID        int64      `json:"eventId"`
	Part           string     `json:"part,omitempty"`
	Title          string     `json:"title"`
	ContentHash    string     `json:"contentHash"`
	SourceName     string     `json:"sourceName,omitempty"`
	Protocol       string     `json:"protocol,omitempty"`
	DownloadURL    string     `json:"downloadUrl,omitempty"`
	SizeBytes      int64      `json:"sizeBytes"`
	Status         GrabStatus `json:"status"`
	ImportAttempts int        `json:"importAttempts"`
	LastError      string     `json:"lastError,omitempty"`
	GrabbedAt      time.Time  `json:"grabbedAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Terminal reports whether the grab will never be retried automatically.
func (g Grab) Terminal() bool {
	return g.Status == GrabStatusFailed || g.Status == GrabStatusPermanentlyFailed
}
