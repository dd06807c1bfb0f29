package packmatch

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"eventarr/internal/release"
	"eventarr/internal/textutil"
)

// Matcher scores releases against candidate events. It is stateless and safe
// for concurrent use.
type Matcher struct {
	cfg Config
}

// NewMatcher returns a matcher. A non-positive threshold, a negative window or
// all-zero weights fall back to defaults; a zero window scores publish dates
// only on the event day itself.
func NewMatcher(cfg Config) *Matcher {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.DateWindow < 0 {
		cfg.DateWindow = def.DateWindow
	}
	w := cfg.Weights
	if w.Date+w.Tokens+w.Round+w.League <= 0 {
		cfg.Weights = def.Weights
	}
	return &Matcher{cfg: cfg}
}

// Threshold returns the confidence a match must reach.
func (m *Matcher) Threshold() int {
	return m.cfg.Threshold
}

// MatchToEvents scores rel against every candidate and returns the events at
// or above threshold, best first. Equal confidences prefer the nearer date,
// then the higher token overlap.
func (m *Matcher) MatchToEvents(rel release.Release, candidates []Event) Result {
	sig := extractSignals(rel)
	var result Result
	for _, ev := range candidates {
		match := m.score(sig, ev)
		if match.Confidence < m.cfg.Threshold {
			if match.Confidence > result.NearestMiss {
				result.NearestMiss = match.Confidence
			}
			continue
		}
		result.Matches = append(result.Matches, match)
	}
	sort.SliceStable(result.Matches, func(i, j int) bool {
		a, b := result.Matches[i], result.Matches[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.dateDistance != b.dateDistance {
			return a.dateDistance < b.dateDistance
		}
		if a.SubScores.Tokens != b.SubScores.Tokens {
			return a.SubScores.Tokens > b.SubScores.Tokens
		}
		if a.titleSimilarity != b.titleSimilarity {
			return a.titleSimilarity > b.titleSimilarity
		}
		return a.EventID < b.EventID
	})
	result.MatchedEventCount = len(result.Matches)
	result.IsPack = result.MatchedEventCount > 1
	if result.MatchedEventCount > 0 {
		result.BestConfidence = result.Matches[0].Confidence
	}
	return result
}

type signals struct {
	title       string
	fingerprint *textutil.Fingerprint
	dates       []time.Time
	published   time.Time
	tokens      map[string]struct{}
	compact     string
	rounds      map[int]struct{}
	part        string
}

func extractSignals(rel release.Release) signals {
	return signals{
		title:       rel.Title,
		fingerprint: textutil.NewFingerprint(rel.Title),
		dates:       titleDates(rel.Title),
		published:   rel.PublishedAt,
		tokens:      contentTokens(rel.Title),
		compact:     compact(rel.Title),
		rounds:      titleRounds(rel.Title),
		part:        DetectPart(rel.Title),
	}
}

func (m *Matcher) score(sig signals, ev Event) MatchedEvent {
	match := MatchedEvent{
		EventID:         ev.ID,
		DetectedPart:    sig.part,
		Reasons:         []string{},
		dateDistance:    math.MaxInt32,
		titleSimilarity: textutil.CosineSimilarity(sig.fingerprint, textutil.NewFingerprint(ev.Title)),
	}
	w := m.cfg.Weights
	var earned, possible float64

	if !ev.Date.IsZero() && w.Date > 0 {
		possible += float64(w.Date)
		distance, fromTitle, ok := m.dateDistance(sig, ev.Date)
		if ok {
			match.dateDistance = distance
			// An explicit title date names the day; only publish dates decay.
			if fromTitle {
				if distance == 0 {
					match.SubScores.Date = 1
				}
			} else {
				match.SubScores.Date = proximity(distance, m.cfg.DateWindow)
			}
			earned += match.SubScores.Date * float64(w.Date)
		}
		if match.SubScores.Date > 0 {
			origin := "published"
			if fromTitle {
				origin = "title"
			}
			match.Reasons = append(match.Reasons, fmt.Sprintf("%s date within %dd", origin, distance))
		}
	}

	if identity, ok := identityScore(ev, sig.tokens); ok && w.Tokens > 0 {
		possible += float64(w.Tokens)
		match.SubScores.Tokens = identity
		earned += match.SubScores.Tokens * float64(w.Tokens)
		if match.SubScores.Tokens > 0 {
			match.Reasons = append(match.Reasons, fmt.Sprintf("token overlap %.0f%%", match.SubScores.Tokens*100))
		}
	}

	if ev.Round > 0 && w.Round > 0 {
		possible += float64(w.Round)
		_, explicit := sig.rounds[ev.Round]
		_, numbered := leagueNumbers(sig.title, ev.League)[ev.Round]
		if explicit || numbered {
			match.SubScores.Round = 1
			earned += float64(w.Round)
			match.Reasons = append(match.Reasons, "round "+strconv.Itoa(ev.Round))
		}
	}

	if ev.League != "" && w.League > 0 {
		possible += float64(w.League)
		if league := compact(ev.League); league != "" && strings.Contains(sig.compact, league) {
			match.SubScores.League = 1
		} else {
			match.SubScores.League = textutil.Coverage(contentTokens(ev.League), sig.tokens)
		}
		earned += match.SubScores.League * float64(w.League)
		if match.SubScores.League > 0 {
			match.Reasons = append(match.Reasons, "league "+ev.League)
		}
	}

	if possible > 0 {
		match.Confidence = int(math.Round(earned / possible * 100))
	}
	return match
}

// dateDistance returns the distance in days to the closest title date, falling
// back to the publish date when the title carries none. fromTitle reports
// which was used; ok is false when neither is available.
func (m *Matcher) dateDistance(sig signals, eventDate time.Time) (distance int, fromTitle bool, ok bool) {
	if len(sig.dates) > 0 {
		best := math.MaxInt32
		for _, d := range sig.dates {
			if dist := dayDistance(eventDate, d); dist < best {
				best = dist
			}
		}
		return best, true, true
	}
	if !sig.published.IsZero() {
		return dayDistance(eventDate, sig.published), false, true
	}
	return 0, false, false
}
