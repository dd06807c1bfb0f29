package packmatch

import "time"

// Event is a tracked event a release may cover.
type Event struct {
	ID           int64         `json:"id" yaml:"id"`
	Title        string        `json:"title" yaml:"title"`
	League       string        `json:"league,omitempty" yaml:"league,omitempty"`
	Date         time.Time     `json:"date" yaml:"date"`
	Round        int           `json:"round,omitempty" yaml:"round,omitempty"`
	Participants []string      `json:"participants,omitempty" yaml:"participants,omitempty"`
	Runtime      time.Duration `json:"runtime,omitempty" yaml:"runtime,omitempty"`
	ProfileID    int64         `json:"profileId,omitempty" yaml:"profile_id,omitempty"`
	Monitored    bool          `json:"monitored" yaml:"monitored"`
}

// Weights are the relative contributions of each signal.
type Weights struct {
	Date   int
	Tokens int
	Round  int
	League int
}

// Config tunes matching.
type Config struct {
	Threshold  int
	DateWindow int // days either side of the event date that still score
	Weights    Weights
}

// DefaultConfig returns the standard matching configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:  50,
		DateWindow: 3,
		Weights:    Weights{Date: 35, Tokens: 35, Round: 15, League: 15},
	}
}

// SubScores are the per-signal scores in [0,1].
type SubScores struct {
	Date   float64 `json:"date"`
	Tokens float64 `json:"tokens"`
	Round  float64 `json:"round"`
	League float64 `json:"league"`
}

// MatchedEvent is one event a release was matched to.
type MatchedEvent struct {
	EventID      int64     `json:"eventId"`
	Confidence   int       `json:"confidence"`
	DetectedPart string    `json:"detectedPart,omitempty"`
	Reasons      []string  `json:"reasons"`
	SubScores    SubScores `json:"subScores"`

	dateDistance    int
	titleSimilarity float64
}

// Result is the outcome of matching one release.
type Result struct {
	IsPack            bool           `json:"isPack"`
	Matches           []MatchedEvent `json:"matchedEvents"`
	BestConfidence    int            `json:"bestConfidence"`
	MatchedEventCount int            `json:"matchedEventCount"`
	// NearestMiss is the highest confidence among events below threshold.
	NearestMiss int `json:"nearestMiss,omitempty"`
}

// Contains returns the match for eventID, if any.
func (r Result) Contains(eventID int64) (MatchedEvent, bool) {
	for _, m := range r.Matches {
		if m.EventID == eventID {
			return m, true
		}
	}
	return MatchedEvent{}, false
}
