package selector

import (
	"sort"

	"regai/internal/grading"
)

// Candidate is one approved grade+submission pair eligible as an in-context
// calibration example.
type Candidate struct {
	GradeID        string
	SubmissionID   string
	SubmissionText string
	Content        grading.GradeContent
	Score          float64 // overall score of the approved grade
	Similarity     float64 // semantic similarity to the query submission
}

// DefaultTopK is the number of calibration examples shown to the model.
const DefaultTopK = 3

// Select picks up to topK candidates that are both semantically similar and
// deliberately spread across the score range around target:
//
//  1. Candidates are bucketed by proximity to target: below / close / above,
//     with a band of ±10% of target (relative, not absolute).
//  2. The single most-similar candidate is taken from each non-empty bucket.
//  3. Remaining slots fill from the similarity-ranked remainder.
//  4. If the result still spans fewer than three distinct scores, the
//     globally lowest-, middle- and highest-scored candidates are forced in
//     so the anchors are never degenerate.
//
// Selection is deterministic for identical inputs: all scans are stable and
// ties resolve to the earliest candidate.
func Select(cands []Candidate, target float64, topK int) []Candidate {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if len(cands) <= topK {
		out := make([]Candidate, len(cands))
		copy(out, cands)
		return out
	}

	band := 0.1 * target
	var below, near, above []Candidate
	for _, c := range cands {
		switch {
		case c.Score < target-band:
			below = append(below, c)
		case c.Score > target+band:
			above = append(above, c)
		default:
			near = append(near, c)
		}
	}

	selected := make([]Candidate, 0, topK)
	picked := make(map[string]bool)
	for _, bucket := range [][]Candidate{below, near, above} {
		if best, ok := mostSimilar(bucket); ok {
			selected = append(selected, best)
			picked[best.GradeID] = true
		}
	}

	// Fill from the overall similarity ranking, skipping what we have.
	bySim := make([]Candidate, len(cands))
	copy(bySim, cands)
	sort.SliceStable(bySim, func(i, j int) bool { return bySim[i].Similarity > bySim[j].Similarity })
	for _, c := range bySim {
		if len(selected) >= topK {
			break
		}
		if !picked[c.GradeID] {
			selected = append(selected, c)
			picked[c.GradeID] = true
		}
	}

	if distinctScores(selected) < 3 {
		selected = forceSpread(selected, cands, topK)
	}
	if len(selected) > topK {
		selected = selected[:topK]
	}
	return selected
}

// mostSimilar returns the bucket's max-similarity candidate (first wins ties).
func mostSimilar(bucket []Candidate) (Candidate, bool) {
	if len(bucket) == 0 {
		return Candidate{}, false
	}
	best := bucket[0]
	for _, c := range bucket[1:] {
		if c.Similarity > best.Similarity {
			best = c
		}
	}
	return best, true
}

func distinctScores(cands []Candidate) int {
	seen := make(map[float64]bool, len(cands))
	for _, c := range cands {
		seen[c.Score] = true
	}
	return len(seen)
}

// forceSpread guarantees non-degenerate anchors: the pool's lowest-, middle-
// and highest-scored candidates (by score, not similarity) are placed ahead
// of the similarity picks, then duplicates are removed.
func forceSpread(selected, pool []Candidate, topK int) []Candidate {
	byScore := make([]Candidate, len(pool))
	copy(byScore, pool)
	sort.SliceStable(byScore, func(i, j int) bool { return byScore[i].Score < byScore[j].Score })

	forced := []Candidate{
		byScore[0],
		byScore[len(byScore)/2],
		byScore[len(byScore)-1],
	}

	out := make([]Candidate, 0, topK)
	seen := make(map[string]bool)
	for _, c := range append(forced, selected...) {
		if seen[c.GradeID] {
			continue
		}
		seen[c.GradeID] = true
		out = append(out, c)
		if len(out) == topK {
			break
		}
	}
	return out
}
