package quality

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"eventarr/internal/customformat"
	"eventarr/internal/release"
)

// Rejection reasons. Messages start with one of these.
const (
	ReasonBlocklisted       = "blocklisted"
	ReasonQualityNotWanted  = "quality not wanted"
	ReasonSizeBelowMinimum  = "size below minimum"
	ReasonSizeAboveMaximum  = "size above maximum"
	ReasonFormatScoreTooLow = "format score below minimum"
)

const mib = float64(1 << 20)

// Blocklist answers whether a content hash is blocked and why.
type Blocklist interface {
	Lookup(contentHash string) (message string, blocked bool)
}

// Options adjusts a single evaluation.
type Options struct {
	// OverrideBlocklist evaluates a blocklisted release as if it were not.
	OverrideBlocklist bool
}

// Evaluation is the decision for one release.
type Evaluation struct {
	Approved          bool                   `json:"approved"`
	QualityID         int64                  `json:"qualityId,omitempty"`
	QualityName       string                 `json:"quality"`
	QualityScore      int                    `json:"qualityScore"`
	CustomFormatScore int                    `json:"customFormatScore"`
	TotalScore        int64                  `json:"totalScore"`
	MatchedFormats    []customformat.Matched `json:"matchedFormats"`
	Rejections        []string               `json:"rejections"`
	MeetsCutoff       bool                   `json:"meetsCutoff"`
}

// Scorer evaluates releases. It holds no mutable state and is safe for
// concurrent use.
type Scorer struct {
	qualityWeight int
}

// NewScorer returns a scorer with the configured quality weight floor.
func NewScorer(qualityWeight int) *Scorer {
	if qualityWeight < 1 {
		qualityWeight = 1
	}
	return &Scorer{qualityWeight: qualityWeight}
}

// QualityWeight returns the multiplier applied to quality rank for profile:
// the configured floor or ten times the largest format score magnitude,
// whichever is larger.
func (s *Scorer) QualityWeight(profile Profile) int {
	w := s.qualityWeight
	if m := 10 * profile.MaxFormatMagnitude(); m > w {
		w = m
	}
	return w
}

// Evaluate decides whether rel is acceptable under profile. A nil blocklist
// blocks nothing.
func (s *Scorer) Evaluate(rel release.Release, profile Profile, catalog Catalog, blocklist Blocklist, opts Options) Evaluation {
	eval := Evaluation{QualityName: rel.Quality}
	reject := func(format string, args ...any) {
		eval.Rejections = append(eval.Rejections, fmt.Sprintf(format, args...))
	}

	if blocklist != nil && !opts.OverrideBlocklist && rel.ContentHash != "" {
		if message, blocked := blocklist.Lookup(rel.ContentHash); blocked {
			if strings.TrimSpace(message) == "" {
				reject("%s", ReasonBlocklisted)
			} else {
				reject("%s: %s", ReasonBlocklisted, message)
			}
		}
	}

	def, known := catalog.Definition(rel.Quality)
	if known {
		eval.QualityID = def.ID
		eval.QualityScore = def.RankWeight
	}
	if !known || !profile.Allows(def.ID) {
		name := rel.Quality
		if name == "" {
			name = "Unknown"
		}
		reject("%s: %s", ReasonQualityNotWanted, name)
	}

	s.checkSize(rel, profile, def, known, reject)

	eval.MatchedFormats = customformat.MatchFormats(rel, catalog.Formats, profile)
	eval.CustomFormatScore = customformat.TotalScore(eval.MatchedFormats)
	if eval.CustomFormatScore < profile.MinFormatScore {
		reject("%s (%d < %d)", ReasonFormatScoreTooLow, eval.CustomFormatScore, profile.MinFormatScore)
	}

	eval.TotalScore = int64(eval.QualityScore)*int64(s.QualityWeight(profile)) + int64(eval.CustomFormatScore)
	eval.Approved = len(eval.Rejections) == 0
	eval.MeetsCutoff = meetsCutoff(eval, profile, catalog)
	return eval
}

func (s *Scorer) checkSize(rel release.Release, profile Profile, def Definition, known bool, reject func(string, ...any)) {
	if rel.SizeBytes <= 0 {
		return
	}
	size := uint64(rel.SizeBytes)
	if profile.MinSizeBytes > 0 && rel.SizeBytes < profile.MinSizeBytes {
		reject("%s: %s < profile minimum %s", ReasonSizeBelowMinimum, humanize.IBytes(size), humanize.IBytes(uint64(profile.MinSizeBytes)))
	}
	if profile.MaxSizeBytes > 0 && rel.SizeBytes > profile.MaxSizeBytes {
		reject("%s: %s > profile maximum %s", ReasonSizeAboveMaximum, humanize.IBytes(size), humanize.IBytes(uint64(profile.MaxSizeBytes)))
	}
	if !known {
		return
	}
	perHour, ok := rel.SizePerHour()
	if !ok {
		return
	}
	observed := perHour / mib
	if def.MinMBPerHour > 0 && observed < def.MinMBPerHour {
		reject("%s: %s/h < %s minimum %s/h", ReasonSizeBelowMinimum, humanize.IBytes(uint64(perHour)), def.Name, humanize.IBytes(uint64(def.MinMBPerHour*mib)))
	}
	if def.MaxMBPerHour > 0 && observed > def.MaxMBPerHour {
		reject("%s: %s/h > %s maximum %s/h", ReasonSizeAboveMaximum, humanize.IBytes(uint64(perHour)), def.Name, humanize.IBytes(uint64(def.MaxMBPerHour*mib)))
	}
}

func meetsCutoff(eval Evaluation, profile Profile, catalog Catalog) bool {
	if !eval.Approved {
		return false
	}
	cutoff, ok := catalog.DefinitionByID(profile.CutoffQualityID)
	if !ok {
		return eval.CustomFormatScore >= profile.CutoffFormatScore
	}
	return eval.QualityScore >= cutoff.RankWeight && eval.CustomFormatScore >= profile.CutoffFormatScore
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
