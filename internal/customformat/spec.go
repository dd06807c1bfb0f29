package customformat

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind names the attribute a specification inspects. Values use the wire
// names found in exported *arr catalogs.
type Kind string

const (
	KindReleaseTitle Kind = "ReleaseTitleSpecification"
	KindReleaseGroup Kind = "ReleaseGroupSpecification"
	KindLanguage     Kind = "LanguageSpecification"
	KindSource       Kind = "SourceSpecification"
	KindResolution   Kind = "ResolutionSpecification"
	KindSize         Kind = "SizeSpecification"
	KindIndexerFlag  Kind = "IndexerFlagSpecification"
	KindReleaseType  Kind = "ReleaseTypeSpecification"
)

var allKinds = []Kind{
	KindReleaseTitle,
	KindReleaseGroup,
	KindLanguage,
	KindSource,
	KindResolution,
	KindSize,
	KindIndexerFlag,
	KindReleaseType,
}

// ParseKind accepts the wire name or its short form ("ReleaseTitle", "size").
func ParseKind(value string) (Kind, bool) {
	trimmed := strings.TrimSpace(value)
	for _, kind := range allKinds {
		if strings.EqualFold(trimmed, string(kind)) ||
			strings.EqualFold(trimmed, strings.TrimSuffix(string(kind), "Specification")) {
			return kind, true
		}
	}
	return "", false
}

// Fields holds the per-kind parameters of a specification. Value carries the
// pattern, the compared value or the flag name; Min and Max are size bounds in
// GiB (GiB per hour when the release runtime is known). A zero Max is unbounded.
type Fields struct {
	Value string  `json:"value,omitempty" yaml:"value,omitempty"`
	Min   float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max   float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Specification is one rule owned by a custom format.
type Specification struct {
	ID       int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string `json:"name" yaml:"name"`
	Kind     Kind   `json:"implementation" yaml:"implementation"`
	Negate   bool   `json:"negate,omitempty" yaml:"negate,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Fields   Fields `json:"fields" yaml:"fields"`
}

// Format is a named bundle of specifications.
type Format struct {
	ID                int64           `json:"id" yaml:"id"`
	Name              string          `json:"name" yaml:"name"`
	IncludeInRenaming bool            `json:"includeInRenaming,omitempty" yaml:"include_in_renaming,omitempty"`
	Specifications    []Specification `json:"specifications" yaml:"specifications"`
}

// Validate reports catalog authoring errors: unknown kinds, patterns that do
// not compile, unparsable resolutions and inverted size ranges.
func (f Format) Validate() error {
	for i, spec := range f.Specifications {
		if err := spec.validate(); err != nil {
			return fmt.Errorf("format %q spec %d (%s): %w", f.Name, i, spec.Name, err)
		}
	}
	return nil
}

func (s Specification) validate() error {
	switch s.Kind {
	case KindReleaseTitle, KindReleaseGroup:
		if _, ok := compile(s.Fields.Value); !ok {
			return fmt.Errorf("invalid pattern %q", s.Fields.Value)
		}
	case KindResolution:
		if _, ok := parseResolution(s.Fields.Value); !ok {
			return fmt.Errorf("invalid resolution %q", s.Fields.Value)
		}
	case KindSize:
		if s.Fields.Min < 0 || s.Fields.Max < 0 || (s.Fields.Max > 0 && s.Fields.Min > s.Fields.Max) {
			return fmt.Errorf("invalid size range [%v,%v]", s.Fields.Min, s.Fields.Max)
		}
	case KindLanguage, KindSource, KindIndexerFlag, KindReleaseType:
	default:
		return fmt.Errorf("unknown implementation %q", s.Kind)
	}
	return nil
}

func parseResolution(value string) (int, bool) {
	trimmed := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(value)), "p")
	n, err := strconv.Atoi(trimmed)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
