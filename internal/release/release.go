package release

import (
	"strings"
	"time"
)

// Protocol identifies how a release is downloaded.
type Protocol string

const (
	ProtocolUnknown Protocol = ""
	ProtocolTorrent Protocol = "torrent"
	ProtocolUsenet  Protocol = "usenet"
)

// ParseProtocol converts a raw value into a Protocol.
func ParseProtocol(value string) Protocol {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "torrent", "torznab":
		return ProtocolTorrent
	case "usenet", "newznab", "nzb":
		return ProtocolUsenet
	default:
		return ProtocolUnknown
	}
}

// Kind classifies how many events a release claims to cover.
type Kind string

const (
	KindUnknown    Kind = ""
	KindSingle     Kind = "single"
	KindPack       Kind = "pack"
	KindHighlights Kind = "highlights"
)

// Detected source values.
const (
	SourceUnknown = ""
	SourceHDTV    = "HDTV"
	SourceWEBDL   = "WEBDL"
	SourceWEBRip  = "WEBRip"
	SourceBluray  = "Bluray"
	SourceRemux   = "Remux"
	SourceBRDisk  = "BR-DISK"
	SourceDVD     = "DVD"
)

// Release is one candidate returned by a release source.
type Release struct {
	GUID         string    `json:"guid,omitempty"`
	Title        string    `json:"title"`
	SourceName   string    `json:"sourceName"`
	Protocol     Protocol  `json:"protocol"`
	SizeBytes    int64     `json:"sizeBytes"`
	PublishedAt  time.Time `json:"publishedAt"`
	Seeders      *int      `json:"seeders,omitempty"`
	Leechers     *int      `json:"leechers,omitempty"`
	DownloadURL  string    `json:"downloadUrl,omitempty"`
	InfoHash     string    `json:"infoHash,omitempty"`
	IndexerFlags []string  `json:"indexerFlags,omitempty"`

	Quality    string `json:"quality,omitempty"`
	Language   string `json:"language,omitempty"`
	Source     string `json:"source,omitempty"`
	Resolution int    `json:"resolution,omitempty"`
	Group      string `json:"group,omitempty"`
	Kind       Kind   `json:"kind,omitempty"`

	ContentHash string `json:"contentHash,omitempty"`

	// Runtime is the expected runtime of the covered event, when known.
	// Size bounds become per-hour bounds when it is set.
	Runtime time.Duration `json:"runtime,omitempty"`
}

// SeederCount returns the seeder count or -1 when the protocol has none.
func (r Release) SeederCount() int {
	if r.Seeders == nil {
		return -1
	}
	return *r.Seeders
}

// HasFlag reports whether the source tagged the release with flag.
func (r Release) HasFlag(flag string) bool {
	for _, f := range r.IndexerFlags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}

// SizePerHour returns the release size in bytes per hour of runtime and true,
// or 0 and false when the runtime is unknown.
func (r Release) SizePerHour() (float64, bool) {
	if r.Runtime <= 0 {
		return 0, false
	}
	return float64(r.SizeBytes) / r.Runtime.Hours(), true
}

// Enrich fills detected attributes the source did not provide and computes
// the content hash. Source-provided values win.
func (r *Release) Enrich() {
	parsed := Parse(r.Title)
	if r.Resolution == 0 {
		r.Resolution = parsed.Resolution
	}
	if r.Source == "" {
		r.Source = parsed.Source
	}
	if r.Quality == "" {
		r.Quality = QualityName(r.Source, r.Resolution)
	}
	if r.Language == "" {
		r.Language = parsed.Language
	}
	if r.Group == "" {
		r.Group = parsed.Group
	}
	if r.Kind == KindUnknown {
		r.Kind = parsed.Kind
	}
	if r.ContentHash == "" {
		r.ContentHash = ContentHash(*r)
	}
}

// Clone returns a deep copy.
func (r Release) Clone() Release {
	out := r
	if r.Seeders != nil {
		v := *r.Seeders
		out.Seeders = &v
	}
	if r.Leechers != nil {
		v := *r.Leechers
		out.Leechers = &v
	}
	if r.IndexerFlags != nil {
		out.IndexerFlags = append([]string(nil), r.IndexerFlags...)
	}
	return out
}
