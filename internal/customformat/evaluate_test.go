package customformat_test

import (
	"testing"
	"time"

	"eventarr/internal/customformat"
	"eventarr/internal/release"
)

type scoreMap map[int64]int

func (m scoreMap) FormatScore(id int64) int { return m[id] }

func sampleRelease() release.Release {
	seeders := 12
	rel := release.Release{
		Title:        "UFC.300.Pereira.vs.Hill.1080p.WEB-DL.H264-GRP",
		SourceName:   "alpha",
		Protocol:     release.ProtocolTorrent,
		SizeBytes:    6 << 30,
		Seeders:      &seeders,
		IndexerFlags: []string{"freeleech"},
	}
	rel.Enrich()
	return rel
}

func TestEvaluateKinds(t *testing.T) {
	rel := sampleRelease()
	tests := []struct {
		name string
		spec customformat.Specification
		want bool
	}{
		{"title pattern", customformat.Specification{Kind: customformat.KindReleaseTitle, Fields: customformat.Fields{Value: `\bpereira\b`}}, true},
		{"title miss", customformat.Specification{Kind: customformat.KindReleaseTitle, Fields: customformat.Fields{Value: `x265`}}, false},
		{"group", customformat.Specification{Kind: customformat.KindReleaseGroup, Fields: customformat.Fields{Value: `^grp$`}}, true},
		{"language", customformat.Specification{Kind: customformat.KindLanguage, Fields: customformat.Fields{Value: "english"}}, true},
		{"language code", customformat.Specification{Kind: customformat.KindLanguage, Fields: customformat.Fields{Value: "eng"}}, true},
		{"language miss", customformat.Specification{Kind: customformat.KindLanguage, Fields: customformat.Fields{Value: "de"}}, false},
		{"source", customformat.Specification{Kind: customformat.KindSource, Fields: customformat.Fields{Value: "WEBDL"}}, true},
		{"resolution", customformat.Specification{Kind: customformat.KindResolution, Fields: customformat.Fields{Value: "1080p"}}, true},
		{"resolution miss", customformat.Specification{Kind: customformat.KindResolution, Fields: customformat.Fields{Value: "720"}}, false},
		{"size in range", customformat.Specification{Kind: customformat.KindSize, Fields: customformat.Fields{Min: 1, Max: 10}}, true},
		{"size above", customformat.Specification{Kind: customformat.KindSize, Fields: customformat.Fields{Min: 1, Max: 5}}, false},
		{"size open max", customformat.Specification{Kind: customformat.KindSize, Fields: customformat.Fields{Min: 2}}, true},
		{"indexer flag", customformat.Specification{Kind: customformat.KindIndexerFlag, Fields: customformat.Fields{Value: "FreeLeech"}}, true},
		{"release type", customformat.Specification{Kind: customformat.KindReleaseType, Fields: customformat.Fields{Value: "single"}}, true},
		{"invalid pattern", customformat.Specification{Kind: customformat.KindReleaseTitle, Fields: customformat.Fields{Value: `([`}}, false},
		{"unknown kind", customformat.Specification{Kind: "Bogus"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := customformat.Evaluate(tt.spec, rel); got != tt.want {
				t.Fatalf("Evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNegationIsPureInversion(t *testing.T) {
	rel := sampleRelease()
	specs := []customformat.Specification{
		{Kind: customformat.KindReleaseTitle, Fields: customformat.Fields{Value: `web-?dl`}},
		{Kind: customformat.KindReleaseTitle, Fields: customformat.Fields{Value: `([`}},
		{Kind: customformat.KindSource, Fields: customformat.Fields{Value: "HDTV"}},
		{Kind: customformat.KindSize, Fields: customformat.Fields{Min: 100}},
		{Kind: "Bogus"},
	}
	for _, spec := range specs {
		plain := customformat.Evaluate(spec, rel)
		spec.Negate = true
		if negated := customformat.Evaluate(spec, rel); negated == plain {
			t.Fatalf("negation did not invert %+v", spec)
		}
	}
}

func TestSizeUsesRuntimeWhenKnown(t *testing.T) {
	rel := sampleRelease()
	spec := customformat.Specification{Kind: customformat.KindSize, Fields: customformat.Fields{Min: 0, Max: 4}}
	if customformat.Evaluate(spec, rel) {
		t.Fatal("6 GiB absolute should exceed 4 GiB")
	}
	rel.Runtime = 2 * time.Hour
	if !customformat.Evaluate(spec, rel) {
		t.Fatal("3 GiB/h should be within 4 GiB/h")
	}
}

func TestEmptyFormatMatchesEverything(t *testing.T) {
	format := customformat.Format{ID: 1, Name: "Any"}
	for _, rel := range []release.Release{{}, sampleRelease(), {Title: "x"}} {
		if !format.Matches(rel) {
			t.Fatalf("empty format should match %+v", rel)
		}
	}
}

func TestFormatRequiresAllSpecifications(t *testing.T) {
	rel := sampleRelease()
	format := customformat.Format{ID: 2, Name: "WEB 1080 not x265", Specifications: []customformat.Specification{
		{Kind: customformat.KindSource, Fields: customformat.Fields{Value: "WEBDL"}},
		{Kind: customformat.KindResolution, Fields: customformat.Fields{Value: "1080"}},
		{Kind: customformat.KindReleaseTitle, Negate: true, Fields: customformat.Fields{Value: `x265|hevc`}},
	}}
	if !format.Matches(rel) {
		t.Fatal("expected match")
	}
	format.Specifications[1].Fields.Value = "2160"
	if format.Matches(rel) {
		t.Fatal("expected no match once one spec fails")
	}
}

func TestMatchFormatsScores(t *testing.T) {
	rel := sampleRelease()
	catalog := []customformat.Format{
		{ID: 1, Name: "WEB", Specifications: []customformat.Specification{{Kind: customformat.KindSource, Fields: customformat.Fields{Value: "WEBDL"}}}},
		{ID: 2, Name: "BR-DISK", Specifications: []customformat.Specification{{Kind: customformat.KindSource, Fields: customformat.Fields{Value: "BR-DISK"}}}},
		{ID: 3, Name: "Unscored", Specifications: []customformat.Specification{{Kind: customformat.KindResolution, Fields: customformat.Fields{Value: "1080p"}}}},
	}
	matched := customformat.MatchFormats(rel, catalog, scoreMap{1: 50, 2: -10000})
	if len(matched) != 2 {
		t.Fatalf("expected 2 matches, got %+v", matched)
	}
	if matched[0].FormatID != 1 || matched[0].Score != 50 {
		t.Fatalf("unexpected first match: %+v", matched[0])
	}
	if matched[1].FormatID != 3 || matched[1].Score != 0 {
		t.Fatalf("unscored format should score 0: %+v", matched[1])
	}
	if customformat.TotalScore(matched) != 50 {
		t.Fatalf("total = %d", customformat.TotalScore(matched))
	}
	if got := customformat.MatchFormats(rel, catalog, nil); got[0].Score != 0 {
		t.Fatalf("nil lookup should score 0, got %+v", got)
	}
}

func TestValidate(t *testing.T) {
	good := customformat.Format{Name: "ok", Specifications: []customformat.Specification{
		{Kind: customformat.KindReleaseTitle, Fields: customformat.Fields{Value: `\bweb\b`}},
		{Kind: customformat.KindSize, Fields: customformat.Fields{Min: 1, Max: 2}},
	}}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := []customformat.Format{
		{Name: "regex", Specifications: []customformat.Specification{{Kind: customformat.KindReleaseTitle, Fields: customformat.Fields{Value: `(`}}}},
		{Name: "kind", Specifications: []customformat.Specification{{Kind: "Nope"}}},
		{Name: "size", Specifications: []customformat.Specification{{Kind: customformat.KindSize, Fields: customformat.Fields{Min: 5, Max: 1}}}},
		{Name: "res", Specifications: []customformat.Specification{{Kind: customformat.KindResolution, Fields: customformat.Fields{Value: "hd"}}}},
	}
	for _, format := range bad {
		if err := format.Validate(); err == nil {
			t.Fatalf("expected validation error for %s", format.Name)
		}
	}
}

func TestParseKind(t *testing.T) {
	if kind, ok := customformat.ParseKind("releasetitle"); !ok || kind != customformat.KindReleaseTitle {
		t.Fatalf("short form not parsed: %v %v", kind, ok)
	}
	if _, ok := customformat.ParseKind("unknown"); ok {
		t.Fatal("expected unknown kind")
	}
}
