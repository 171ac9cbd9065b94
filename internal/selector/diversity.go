package selector

import (
	"fmt"
	"math"
)

// DiversityBins is the histogram resolution for DiversityScore.
const DiversityBins = 10

// maxEnumerate bounds the combinatorial mode. C(15,3) = 455 subsets is the
// largest enumeration we accept; the default fetch size of 50 would mean
// 19,600 subsets and must go through Select instead.
const maxEnumerate = 15

// DiversityScore measures the information-theoretic spread of the selected
// scores relative to the candidate pool: selected scores are histogrammed
// over the pool's score range and the normalized Shannon entropy of that
// histogram is returned in [0,1]. A clustered selection scores near 0, a
// selection spanning the pool's range near 1.
func DiversityScore(selected, pool []float64) float64 {
	if len(selected) < 2 || len(pool) == 0 {
		return 0
	}

	lo, hi := pool[0], pool[0]
	for _, s := range pool {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	if hi <= lo {
		return 0
	}

	counts := make([]int, DiversityBins)
	for _, s := range selected {
		bin := int(float64(DiversityBins) * (s - lo) / (hi - lo))
		if bin >= DiversityBins {
			bin = DiversityBins - 1
		}
		if bin < 0 {
			bin = 0
		}
		counts[bin]++
	}

	var entropy float64
	total := float64(len(selected))
	for _, n := range counts {
		if n == 0 {
			continue
		}
		p := float64(n) / total
		entropy -= p * math.Log(p)
	}

	// Normalize by the maximum achievable entropy for this selection size.
	maxBuckets := DiversityBins
	if len(selected) < maxBuckets {
		maxBuckets = len(selected)
	}
	maxEntropy := math.Log(float64(maxBuckets))
	if maxEntropy == 0 {
		return 0
	}
	return entropy / maxEntropy
}

// SelectBest is the combinatorial selection mode: every size-topK subset of
// cands is scored by sqrt(meanSimilarity) * sqrt(diversityScore) and the
// maximizing subset wins (first maximum for determinism). It refuses pools
// larger than maxEnumerate candidates; callers fall back to Select, which is
// linear. Full enumeration at the default fetch size is deliberately not
// supported.
func SelectBest(cands []Candidate, topK int) ([]Candidate, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if len(cands) > maxEnumerate {
		return nil, fmt.Errorf("combinatorial selection limited to %d candidates, got %d (use Select)", maxEnumerate, len(cands))
	}
	if len(cands) <= topK {
		out := make([]Candidate, len(cands))
		copy(out, cands)
		return out, nil
	}

	pool := make([]float64, len(cands))
	for i, c := range cands {
		pool[i] = c.Score
	}

	var best []Candidate
	bestScore := -1.0

	forEachSubset(len(cands), topK, func(idxs []int) {
		var simSum float64
		scores := make([]float64, len(idxs))
		for i, idx := range idxs {
			simSum += cands[idx].Similarity
			scores[i] = cands[idx].Score
		}
		meanSim := simSum / float64(len(idxs))
		score := math.Sqrt(meanSim) * math.Sqrt(DiversityScore(scores, pool))
		if score > bestScore {
			bestScore = score
			best = make([]Candidate, len(idxs))
			for i, idx := range idxs {
				best[i] = cands[idx]
			}
		}
	})

	return best, nil
}

// forEachSubset visits every k-combination of [0,n) in lexicographic order.
func forEachSubset(n, k int, visit func(idxs []int)) {
	idxs := make([]int, k)
	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == k {
			visit(idxs)
			return
		}
		for i := start; i <= n-(k-depth); i++ {
			idxs[depth] = i
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
}
