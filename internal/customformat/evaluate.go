package customformat

import (
	"regexp"
	"strings"
	"sync"

	"eventarr/internal/language"
	"eventarr/internal/release"
)

const gib = float64(1 << 30)

// patternCache maps a raw pattern to its compiled form, or nil when invalid.
var patternCache sync.Map

func compile(pattern string) (*regexp.Regexp, bool) {
	if cached, ok := patternCache.Load(pattern); ok {
		re, _ := cached.(*regexp.Regexp)
		return re, re != nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		patternCache.Store(pattern, (*regexp.Regexp)(nil))
		return nil, false
	}
	patternCache.Store(pattern, re)
	return re, true
}

// Evaluate reports whether spec holds for rel, after negation.
func Evaluate(spec Specification, rel release.Release) bool {
	return rawMatch(spec, rel) != spec.Negate
}

func rawMatch(spec Specification, rel release.Release) bool {
	value := strings.TrimSpace(spec.Fields.Value)
	switch spec.Kind {
	case KindReleaseTitle:
		return matchPattern(spec.Fields.Value, rel.Title)
	case KindReleaseGroup:
		return matchPattern(spec.Fields.Value, rel.Group)
	case KindLanguage:
		return language.Equal(value, rel.Language)
	case KindSource:
		return value != "" && strings.EqualFold(value, rel.Source)
	case KindResolution:
		want, ok := parseResolution(value)
		return ok && want == rel.Resolution
	case KindSize:
		return matchSize(spec.Fields, rel)
	case KindIndexerFlag:
		return value != "" && rel.HasFlag(value)
	case KindReleaseType:
		return value != "" && strings.EqualFold(value, string(rel.Kind))
	default:
		return false
	}
}

func matchPattern(pattern, subject string) bool {
	if strings.TrimSpace(pattern) == "" {
		return false
	}
	re, ok := compile(pattern)
	if !ok {
		return false
	}
	return re.MatchString(subject)
}

func matchSize(fields Fields, rel release.Release) bool {
	if rel.SizeBytes <= 0 {
		return false
	}
	size := float64(rel.SizeBytes)
	if perHour, ok := rel.SizePerHour(); ok {
		size = perHour
	}
	size /= gib
	if size < fields.Min {
		return false
	}
	if fields.Max > 0 && size > fields.Max {
		return false
	}
	return true
}

// Matches reports whether every specification of f holds for rel.
func (f Format) Matches(rel release.Release) bool {
	for _, spec := range f.Specifications {
		if !Evaluate(spec, rel) {
			return false
		}
	}
	return true
}

// ScoreLookup resolves a format's score in the active profile.
type ScoreLookup interface {
	FormatScore(formatID int64) int
}

// Matched is one format that matched a release, with its profile score.
type Matched struct {
	FormatID int64  `json:"formatId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// MatchFormats returns every format in catalog that matches rel, in catalog
// order. Formats absent from the profile score 0. A nil lookup scores all
// matches as 0.
func MatchFormats(rel release.Release, catalog []Format, scores ScoreLookup) []Matched {
	var matched []Matched
	for _, format := range catalog {
		if !format.Matches(rel) {
			continue
		}
		score := 0
		if scores != nil {
			score = scores.FormatScore(format.ID)
		}
		matched = append(matched, Matched{FormatID: format.ID, Name: format.Name, Score: score})
	}
	return matched
}

// TotalScore sums the scores of matched formats.
func TotalScore(matched []Matched) int {
	total := 0
	for _, m := range matched {
		total += m.Score
	}
	return total
}
