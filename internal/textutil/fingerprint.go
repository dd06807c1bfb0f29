package textutil

import (
	"math"
	"strings"
	"unicode"
)

// minTokenLen drops connective noise such as "vs", "at" and single digits.
const minTokenLen = 3

// Fingerprint is a term-frequency vector over the folded tokens of a title.
type Fingerprint struct {
	counts map[string]float64
	norm   float64
}

// NewFingerprint builds a fingerprint, or nil when text has no usable tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	fp := &Fingerprint{counts: make(map[string]float64, len(tokens))}
	for _, tok := range tokens {
		fp.counts[tok]++
	}
	for _, c := range fp.counts {
		fp.norm += c * c
	}
	fp.norm = math.Sqrt(fp.norm)
	return fp
}

// Tokenize folds text and splits it on anything that is not an ASCII letter
// or digit. Tokens shorter than three bytes are dropped.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(Fold(text), func(r rune) bool {
		return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= minTokenLen {
			out = append(out, f)
		}
	}
	return out
}

// TokenSet returns the distinct tokens of text.
func TokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}
