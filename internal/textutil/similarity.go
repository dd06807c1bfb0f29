package textutil

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.counts {
		if other, ok := b.counts[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// Coverage returns the fraction of want tokens present in have, in [0,1].
// An empty want set yields 0.
func Coverage(want, have map[string]struct{}) float64 {
	if len(want) == 0 {
		return 0
	}
	hits := 0
	for token := range want {
		if _, ok := have[token]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(want))
}
