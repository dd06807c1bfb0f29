package packmatch

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"eventarr/internal/textutil"
)

var (
	isoDatePattern   = regexp.MustCompile(`\b(19|20)(\d{2})[ ._-](\d{2})[ ._-](\d{2})\b`)
	dmyDatePattern   = regexp.MustCompile(`\b(\d{2})[ ._-](\d{2})[ ._-](19|20)(\d{2})\b`)
	roundPattern     = regexp.MustCompile(`(?i)\b(?:round|rd|r|week|wk|matchday|md|gameweek|gw|game|event)[ ._-]?0*(\d{1,3})\b`)
	roundSpanPattern = regexp.MustCompile(`(?i)\b(?:rounds?|r)[ ._-]?0*(\d{1,3})[ ._-]?(?:-|to)[ ._-]?r?0*(\d{1,3})\b`)
	compactStrip     = regexp.MustCompile(`[^a-z0-9]+`)
)

// maxRoundSpan bounds how many rounds a "Rounds 1-N" range expands to.
const maxRoundSpan = 60

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "vs": {}, "versus": {}, "at": {}, "of": {},
}

// titleDates extracts calendar dates written in the title.
func titleDates(title string) []time.Time {
	var out []time.Time
	for _, m := range isoDatePattern.FindAllStringSubmatch(title, -1) {
		if d, ok := makeDate(m[1]+m[2], m[3], m[4]); ok {
			out = append(out, d)
		}
	}
	for _, m := range dmyDatePattern.FindAllStringSubmatch(title, -1) {
		if d, ok := makeDate(m[3]+m[4], m[2], m[1]); ok {
			out = append(out, d)
		}
	}
	return out
}

func makeDate(year, month, day string) (time.Time, bool) {
	d, err := time.Parse("2006-01-02", year+"-"+month+"-"+day)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// dayDistance returns the absolute difference in calendar days.
func dayDistance(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// proximity decays linearly from 1 on the event date to 0 just past the window.
func proximity(distance, window int) float64 {
	if distance < 0 || distance > window {
		return 0
	}
	return 1 - float64(distance)/float64(window+1)
}

// titleRounds collects explicit round numbers, expanding ranges.
func titleRounds(title string) map[int]struct{} {
	rounds := make(map[int]struct{})
	for _, m := range roundSpanPattern.FindAllStringSubmatch(title, -1) {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if hi < lo {
			lo, hi = hi, lo
		}
		if hi-lo > maxRoundSpan {
			continue
		}
		for n := lo; n <= hi; n++ {
			rounds[n] = struct{}{}
		}
	}
	for _, m := range roundPattern.FindAllStringSubmatch(title, -1) {
		n, _ := strconv.Atoi(m[1])
		rounds[n] = struct{}{}
	}
	return rounds
}

// leagueNumbers finds numbered events written as "<league> <n>", e.g. "UFC.300".
func leagueNumbers(title, league string) map[int]struct{} {
	out := make(map[int]struct{})
	words := strings.Fields(compactStrip.ReplaceAllString(textutil.Fold(league), " "))
	if len(words) == 0 {
		return out
	}
	for i, word := range words {
		words[i] = regexp.QuoteMeta(word)
	}
	pattern, err := regexp.Compile(`\b` + strings.Join(words, `[ ._-]?`) + `[ ._-]?0*(\d{1,4})\b`)
	if err != nil {
		return out
	}
	for _, m := range pattern.FindAllStringSubmatch(textutil.Fold(title), -1) {
		n, _ := strconv.Atoi(m[1])
		out[n] = struct{}{}
	}
	return out
}

func compact(text string) string {
	return compactStrip.ReplaceAllString(textutil.Fold(text), "")
}

func contentTokens(text string) map[string]struct{} {
	set := textutil.TokenSet(text)
	for word := range stopwords {
		delete(set, word)
	}
	return set
}

// identityScore measures how well the release names the event: the share of
// participants mentioned, or the coverage of the event title (minus league
// words and numbers) when no participants are recorded. ok is false when the
// event offers nothing to compare.
func identityScore(ev Event, have map[string]struct{}) (score float64, ok bool) {
	if len(ev.Participants) > 0 {
		var named, total int
		for _, participant := range ev.Participants {
			tokens := contentTokens(participant)
			if len(tokens) == 0 {
				continue
			}
			total++
			for token := range tokens {
				if _, found := have[token]; found {
					named++
					break
				}
			}
		}
		if total > 0 {
			return float64(named) / float64(total), true
		}
	}
	want := contentTokens(ev.Title)
	for token := range contentTokens(ev.League) {
		delete(want, token)
	}
	for token := range want {
		if _, err := strconv.Atoi(token); err == nil {
			delete(want, token)
		}
	}
	if len(want) == 0 {
		return 0, false
	}
	return textutil.Coverage(want, have), true
}

var partPatterns = []struct {
	pattern *regexp.Regexp
	label   func([]string) string
}{
	{regexp.MustCompile(`(?i)\bearly[ ._-]?prelims?\b`), fixed("Early Prelims")},
	{regexp.MustCompile(`(?i)\bprelims?\b`), fixed("Prelims")},
	{regexp.MustCompile(`(?i)\bmain[ ._-]?(?:card|event)\b`), fixed("Main Card")},
	{regexp.MustCompile(`(?i)\b(?:part|pt)[ ._-]?0*(\d{1,2})\b`), numbered("Part")},
	{regexp.MustCompile(`(?i)\bday[ ._-]?0*(\d{1,2})\b`), numbered("Day")},
	{regexp.MustCompile(`(?i)\b(?:fp|free[ ._-]?practice|practice)[ ._-]?([1-3])\b`), numbered("Practice")},
	{regexp.MustCompile(`(?i)\bsprint[ ._-]?(?:qualifying|quali|shootout)\b`), fixed("Sprint Qualifying")},
	{regexp.MustCompile(`(?i)\bsprint\b`), fixed("Sprint")},
	{regexp.MustCompile(`(?i)\b(?:qualifying|quali)\b`), fixed("Qualifying")},
	{regexp.MustCompile(`(?i)\brace\b`), fixed("Race")},
}

func fixed(label string) func([]string) string {
	return func([]string) string { return label }
}

func numbered(prefix string) func([]string) string {
	return func(m []string) string {
		n, _ := strconv.Atoi(m[1])
		return prefix + " " + strconv.Itoa(n)
	}
}

// DetectPart returns the sub-section of an event a title names, such as
// "Main Card", "Qualifying" or "Part 2", or "" when none is named.
func DetectPart(title string) string {
	for _, candidate := range partPatterns {
		if m := candidate.pattern.FindStringSubmatch(title); m != nil {
			return candidate.label(m)
		}
	}
	return ""
}

// SamePart compares part labels case-insensitively, ignoring spacing.
func SamePart(a, b string) bool {
	return compact(a) == compact(b)
}
