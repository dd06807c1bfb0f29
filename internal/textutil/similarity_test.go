package textutil

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCosineSimilarityNil(t *testing.T) {
	tests := []struct {
		name string
		a    *Fingerprint
		b    *Fingerprint
	}{
		{"both nil", nil, nil},
		{"a nil", nil, NewFingerprint("hello world")},
		{"b nil", NewFingerprint("hello world"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); got != 0 {
				t.Errorf("CosineSimilarity() = %v, want 0", got)
			}
		})
	}
}

func TestCosineSimilarityIdentical(t *testing.T) {
	text := "Grand Prix of Monaco Qualifying"
	got := CosineSimilarity(NewFingerprint(text), NewFingerprint(text))
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("CosineSimilarity(identical) = %v, want 1.0", got)
	}
}

func TestCosineSimilarityPartialOverlap(t *testing.T) {
	a := NewFingerprint("UFC 300 Pereira Hill")
	b := NewFingerprint("UFC 300 Main Card")
	got := CosineSimilarity(a, b)
	if got <= 0 || got >= 1 {
		t.Errorf("CosineSimilarity(partial) = %v, want between 0 and 1", got)
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := NewFingerprint("monaco grand prix race")
	b := NewFingerprint("grand prix qualifying")
	if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
		t.Fatal("expected symmetric similarity")
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", []string{}},
		{"a b c", []string{}},
		{"UFC.300.Pereira.vs.Hill", []string{"ufc", "300", "pereira", "hill"}},
		{"Sergio Pérez", []string{"sergio", "perez"}},
		{"Formula1.2024.Round08.Monaco", []string{"formula1", "2024", "round08", "monaco"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Tokenize(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Tokenize(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFold(t *testing.T) {
	if got := Fold("Ñandú ÉLITE"); got != "nandu elite" {
		t.Fatalf("Fold = %q", got)
	}
}

func TestCoverage(t *testing.T) {
	want := TokenSet("Pereira Hill")
	if got := Coverage(want, TokenSet("UFC 300 Pereira vs Hill 1080p")); got != 1 {
		t.Fatalf("full coverage = %v", got)
	}
	if got := Coverage(want, TokenSet("UFC 300 Pereira")); got != 0.5 {
		t.Fatalf("half coverage = %v", got)
	}
	if got := Coverage(map[string]struct{}{}, TokenSet("anything")); got != 0 {
		t.Fatalf("empty coverage = %v", got)
	}
}

func TestTokenSetDropsDuplicatesAndShortTokens(t *testing.T) {
	if NewFingerprint("") != nil {
		t.Fatal("expected nil fingerprint for empty text")
	}
	set := TokenSet("Race race GP Qualifying")
	if len(set) != 2 {
		t.Fatalf("TokenSet = %v, want race and qualifying", set)
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := SanitizeFileName(` UFC: 300 / "Main" `); got != "UFC- 300 - Main" {
		t.Fatalf("SanitizeFileName = %q", got)
	}
	if got := SanitizeFileName("a\tb\x00c"); got != "a bc" {
		t.Fatalf("SanitizeFileName controls = %q", got)
	}
	long := SanitizeFileName(strings.Repeat("é", 150))
	if len(long) > 200 || !utf8.ValidString(long) {
		t.Fatalf("SanitizeFileName long = %d bytes", len(long))
	}
}
