package release

import (
	"regexp"
	"strconv"
	"strings"

	"eventarr/internal/language"
)

// Parsed holds attributes detected from a release title.
type Parsed struct {
	Resolution int
	Source     string
	Language   string
	Group      string
	Kind       Kind
}

var (
	resolutionPattern = regexp.MustCompile(`(?i)\b(2160|1080|720|576|480)[pi]\b`)
	uhdPattern        = regexp.MustCompile(`(?i)\b(4k|uhd)\b`)
	extensionPattern  = regexp.MustCompile(`(?i)\.(mkv|mp4|avi|ts|nzb|torrent)$`)
	groupPattern      = regexp.MustCompile(`-([A-Za-z0-9]+)(?:\[[^\]]*\])?$`)

	sourcePatterns = []struct {
		source  string
		pattern *regexp.Regexp
	}{
		{SourceBRDisk, regexp.MustCompile(`(?i)\b(bdmv|bdiso|br-?disk|complete[ ._-]?blu-?ray)\b`)},
		{SourceRemux, regexp.MustCompile(`(?i)\bremux\b`)},
		{SourceBluray, regexp.MustCompile(`(?i)\b(blu-?ray|bdrip|brrip)\b`)},
		{SourceWEBRip, regexp.MustCompile(`(?i)\bweb[ ._-]?rip\b`)},
		{SourceWEBDL, regexp.MustCompile(`(?i)\b(web[ ._-]?dl|web)\b`)},
		{SourceHDTV, regexp.MustCompile(`(?i)\b(hdtv|pdtv|sdtv|dsr|satrip|dvb)\b`)},
		{SourceDVD, regexp.MustCompile(`(?i)\bdvd(rip|r|5|9)?\b`)},
	}

	highlightsPattern = regexp.MustCompile(`(?i)\b(highlights?|recap|condensed|extended[ ._-]highlights)\b`)
	packPattern       = regexp.MustCompile(`(?i)\b(complete[ ._-]season|season[ ._-]?pack|full[ ._-]season|collection|rounds?[ ._-]?\d{1,2}[ ._-]?(-|to)[ ._-]?r?\d{1,2}|r\d{1,2}-r?\d{1,2})\b`)
)

// Parse detects attributes from a release title.
func Parse(title string) Parsed {
	title = strings.TrimSpace(title)
	base := extensionPattern.ReplaceAllString(title, "")
	return Parsed{
		Resolution: parseResolution(base),
		Source:     parseSource(base),
		Language:   language.Detect(base),
		Group:      parseGroup(base),
		Kind:       parseKind(base),
	}
}

func parseResolution(title string) int {
	if m := resolutionPattern.FindStringSubmatch(title); m != nil {
		value, _ := strconv.Atoi(m[1])
		return value
	}
	if uhdPattern.MatchString(title) {
		return 2160
	}
	return 0
}

func parseSource(title string) string {
	for _, candidate := range sourcePatterns {
		if candidate.pattern.MatchString(title) {
			return candidate.source
		}
	}
	return SourceUnknown
}

func parseGroup(title string) string {
	m := groupPattern.FindStringSubmatch(title)
	if m == nil {
		return ""
	}
	group := m[1]
	// A trailing resolution or year is not a group ("Event-1080p").
	if _, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(group), "p")); err == nil {
		return ""
	}
	return group
}

func parseKind(title string) Kind {
	switch {
	case highlightsPattern.MatchString(title):
		return KindHighlights
	case packPattern.MatchString(title):
		return KindPack
	default:
		return KindSingle
	}
}

// QualityName maps a detected source and resolution onto a quality
// definition name such as "WEBDL-1080p".
func QualityName(source string, resolution int) string {
	res := ""
	if resolution > 0 {
		res = strconv.Itoa(resolution) + "p"
	}
	switch source {
	case SourceBRDisk:
		return "BR-DISK"
	case SourceDVD:
		return "DVD"
	case SourceRemux, SourceBluray, SourceWEBDL, SourceWEBRip:
		if res == "" {
			res = "480p"
		}
		return source + "-" + res
	case SourceHDTV:
		if resolution == 0 || resolution <= 576 {
			return "SDTV"
		}
		return "HDTV-" + res
	default:
		switch {
		case resolution == 0:
			return "Unknown"
		case resolution <= 576:
			return "SDTV"
		default:
			return "HDTV-" + res
		}
	}
}
