package quality

import (
	"eventarr/internal/customformat"
)

// Definition is one quality level. Definitions are totally ordered by RankWeight.
// Size bounds are MiB per hour of runtime; a zero max is unbounded.
type Definition struct {
	ID                 int64    `json:"id" yaml:"id"`
	Name               string   `json:"name" yaml:"name"`
	RankWeight         int      `json:"rankWeight" yaml:"rank_weight"`
	MinMBPerHour       float64  `json:"minSizePerHour,omitempty" yaml:"min_mb_per_hour,omitempty"`
	MaxMBPerHour       float64  `json:"maxSizePerHour,omitempty" yaml:"max_mb_per_hour,omitempty"`
	PreferredMBPerHour *float64 `json:"preferredSizePerHour,omitempty" yaml:"preferred_mb_per_hour,omitempty"`
}

// FormatItem assigns a score to a custom format within a profile.
type FormatItem struct {
	FormatID int64 `json:"formatId" yaml:"format_id"`
	Score    int   `json:"score" yaml:"score"`
}

// Profile is the read-only quality profile applied to a search.
type Profile struct {
	ID                int64        `json:"id" yaml:"id"`
	Name              string       `json:"name" yaml:"name"`
	AllowedQualityIDs []int64      `json:"allowedQualityIds" yaml:"allowed_quality_ids"`
	CutoffQualityID   int64        `json:"cutoffQualityId" yaml:"cutoff_quality_id"`
	CutoffFormatScore int          `json:"cutoffFormatScore" yaml:"cutoff_format_score"`
	MinFormatScore    int          `json:"minFormatScore" yaml:"min_format_score"`
	MinSizeBytes      int64        `json:"minSizeBytes,omitempty" yaml:"min_size_bytes,omitempty"`
	MaxSizeBytes      int64        `json:"maxSizeBytes,omitempty" yaml:"max_size_bytes,omitempty"`
	FormatItems       []FormatItem `json:"formatItems" yaml:"format_items"`
}

// FormatScore implements customformat.ScoreLookup. Absent formats score 0.
func (p Profile) FormatScore(formatID int64) int {
	for _, item := range p.FormatItems {
		if item.FormatID == formatID {
			return item.Score
		}
	}
	return 0
}

// Allows reports whether the quality definition is wanted by the profile.
func (p Profile) Allows(qualityID int64) bool {
	for _, id := range p.AllowedQualityIDs {
		if id == qualityID {
			return true
		}
	}
	return false
}

// MaxFormatMagnitude returns the largest absolute format score configured.
func (p Profile) MaxFormatMagnitude() int {
	maxAbs := 0
	for _, item := range p.FormatItems {
		v := item.Score
		if v < 0 {
			v = -v
		}
		if v > maxAbs {
			maxAbs = v
		}
	}
	return maxAbs
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	out := p
	out.AllowedQualityIDs = append([]int64(nil), p.AllowedQualityIDs...)
	out.FormatItems = append([]FormatItem(nil), p.FormatItems...)
	return out
}

// Catalog is the format and quality catalog a profile is evaluated against.
type Catalog struct {
	Definitions []Definition         `json:"definitions"`
	Formats     []customformat.Format `json:"formats"`
}

// Definition looks up a definition by name, case-insensitively.
func (c Catalog) Definition(name string) (Definition, bool) {
	for _, def := range c.Definitions {
		if equalFold(def.Name, name) {
			return def, true
		}
	}
	return Definition{}, false
}

// DefinitionByID looks up a definition by ID.
func (c Catalog) DefinitionByID(id int64) (Definition, bool) {
	for _, def := range c.Definitions {
		if def.ID == id {
			return def, true
		}
	}
	return Definition{}, false
}

// Clone returns a deep copy.
func (c Catalog) Clone() Catalog {
	out := Catalog{
		Definitions: make([]Definition, len(c.Definitions)),
		Formats:     make([]customformat.Format, len(c.Formats)),
	}
	for i, def := range c.Definitions {
		if def.PreferredMBPerHour != nil {
			v := *def.PreferredMBPerHour
			def.PreferredMBPerHour = &v
		}
		out.Definitions[i] = def
	}
	for i, format := range c.Formats {
		format.Specifications = append([]customformat.Specification(nil), format.Specifications...)
		out.Formats[i] = format
	}
	return out
}
