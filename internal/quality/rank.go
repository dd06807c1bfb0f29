package quality

import (
	"sort"

	"eventarr/internal/release"
)

// Candidate pairs a release with its evaluation.
type Candidate struct {
	Release    release.Release `json:"release"`
	Evaluation Evaluation      `json:"evaluation"`
}

// Rank orders candidates best first: total score, then seeders, then most
// recently published. Usenet releases count as zero seeders so the order
// stays total across protocols. The sort is stable so equal candidates keep
// their input order.
func Rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return Better(candidates[i], candidates[j])
	})
}

// Better reports whether a ranks ahead of b.
func Better(a, b Candidate) bool {
	if a.Evaluation.TotalScore != b.Evaluation.TotalScore {
		return a.Evaluation.TotalScore > b.Evaluation.TotalScore
	}
	if sa, sb := swarm(a.Release), swarm(b.Release); sa != sb {
		return sa > sb
	}
	return a.Release.PublishedAt.After(b.Release.PublishedAt)
}

func swarm(rel release.Release) int {
	if rel.Protocol != release.ProtocolTorrent {
		return 0
	}
	return rel.SeederCount()
}

// Approved returns the approved candidates, preserving order.
func Approved(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Evaluation.Approved {
			out = append(out, c)
		}
	}
	return out
}
