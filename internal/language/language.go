package language

import (
	"strings"
	"unicode"
)

const (
	// Multi marks releases carrying several audio languages.
	Multi = "Multi"
	// Default is assumed when a title names no language.
	Default = "English"
)

type entry struct {
	code2   string
	code3   string
	alt3    string
	display string
	// tags are title tokens that identify the language in a release name.
	tags []string
}

// Order matters for Detect: the first entry with a matching tag wins.
var languages = []entry{
	{"en", "eng", "", "English", nil},
	{"de", "deu", "ger", "German", []string{"german", "ger", "deutsch"}},
	{"fr", "fra", "fre", "French", []string{"french", "fre", "vff", "vostfr", "truefrench"}},
	{"es", "spa", "", "Spanish", []string{"spanish", "esp", "castellano", "latino"}},
	{"it", "ita", "", "Italian", []string{"italian", "ita"}},
	{"pt", "por", "", "Portuguese", []string{"portuguese", "por", "ptbr"}},
	{"nl", "nld", "dut", "Dutch", []string{"dutch", "nl"}},
	{"ru", "rus", "", "Russian", []string{"russian", "rus"}},
	{"ja", "jpn", "", "Japanese", []string{"japanese", "jpn"}},
	{"ko", "kor", "", "Korean", nil},
	{"zh", "zho", "chi", "Chinese", nil},
	{"ar", "ara", "", "Arabic", nil},
	{"pl", "pol", "", "Polish", nil},
	{"sv", "swe", "", "Swedish", nil},
	{"da", "dan", "", "Danish", nil},
	{"no", "nor", "", "Norwegian", nil},
	{"fi", "fin", "", "Finnish", nil},
}

var byKey = func() map[string]*entry {
	m := make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		m[e.code2] = e
		m[e.code3] = e
		if e.alt3 != "" {
			m[e.alt3] = e
		}
		m[strings.ToLower(e.display)] = e
	}
	return m
}()

func lookup(value string) *entry {
	return byKey[strings.ToLower(strings.TrimSpace(value))]
}

// Detect returns the display name of the language a release title announces,
// Multi for multi-audio releases, or Default when none is named.
func Detect(title string) string {
	tokens := titleTokens(title)
	if _, ok := tokens["multi"]; ok {
		return Multi
	}
	for _, e := range languages {
		for _, tag := range e.tags {
			if _, ok := tokens[tag]; ok {
				return e.display
			}
		}
	}
	return Default
}

// titleTokens splits a title on separators. Adjacent tokens are also joined
// so "PT-BR" yields "ptbr".
func titleTokens(title string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields)*2)
	for i, f := range fields {
		out[f] = struct{}{}
		if i > 0 {
			out[fields[i-1]+f] = struct{}{}
		}
	}
	return out
}

// Normalize maps a code or name onto its display name. Unknown values are
// returned trimmed.
func Normalize(value string) string {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, Multi) {
		return Multi
	}
	if e := lookup(value); e != nil {
		return e.display
	}
	return value
}

// Equal reports whether a and b name the same language in any of the
// accepted forms ("de", "ger", "German").
func Equal(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(Normalize(a), Normalize(b))
}

// ToISO2 converts a recognized code or name to ISO 639-1. Unknown two-letter
// input passes through; anything else yields "".
func ToISO2(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if e := lookup(value); e != nil {
		return e.code2
	}
	if len(value) == 2 {
		return value
	}
	return ""
}
