package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFileNameBytes leaves room for an extension within the common 255 byte limit.
const maxFileNameBytes = 200

// SanitizeFileName turns a release title into a name that is safe to drop in a
// watch folder. Separators become dashes, shell and Windows metacharacters
// and control characters are dropped, and runs of spaces collapse.
func SanitizeFileName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*':
			return '-'
		case '?', '"', '<', '>', '|':
			return -1
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	out := strings.Join(strings.Fields(mapped), " ")
	for len(out) > maxFileNameBytes {
		_, size := utf8.DecodeLastRuneInString(out)
		out = out[:len(out)-size]
	}
	return strings.TrimSpace(out)
}
