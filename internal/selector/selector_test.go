package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(id string, score, similarity float64) Candidate {
	return Candidate{GradeID: id, SubmissionID: "sub-" + id, Score: score, Similarity: similarity}
}

func scoresOf(cands []Candidate) []float64 {
	out := make([]float64, len(cands))
	for i, c := range cands {
		out[i] = c.Score
	}
	return out
}

func TestSelectDiversityGuarantee(t *testing.T) {
	// Pool clusters near the target; a nearest-neighbor-only pick would
	// return three scores around 0.5. The selection must still include one
	// candidate below 0.45 and one above 0.55.
	pool := []Candidate{
		cand("low-a", 0.2, 0.50),
		cand("low-b", 0.2, 0.40),
		cand("mid", 0.5, 0.99),
		cand("high-a", 0.9, 0.45),
		cand("high-b", 0.95, 0.35),
	}

	selected := Select(pool, 0.5, 3)
	require.Len(t, selected, 3)

	var hasBelow, hasAbove bool
	for _, c := range selected {
		if c.Score < 0.45 {
			hasBelow = true
		}
		if c.Score > 0.55 {
			hasAbove = true
		}
	}
	assert.True(t, hasBelow, "selection must include a low-scored anchor, got scores %v", scoresOf(selected))
	assert.True(t, hasAbove, "selection must include a high-scored anchor, got scores %v", scoresOf(selected))
}

func TestSelectOnePerBucket(t *testing.T) {
	pool := []Candidate{
		cand("below-far", 0.1, 0.9),
		cand("below-near", 0.3, 0.95),
		cand("close-a", 0.5, 0.8),
		cand("close-b", 0.52, 0.85),
		cand("above-a", 0.8, 0.7),
		cand("above-b", 0.9, 0.75),
	}

	selected := Select(pool, 0.5, 3)
	require.Len(t, selected, 3)

	// The most-similar candidate from each score regime.
	ids := []string{selected[0].GradeID, selected[1].GradeID, selected[2].GradeID}
	assert.Equal(t, []string{"below-near", "close-b", "above-b"}, ids)
}

func TestSelectFillsFromSimilarityWhenBucketEmpty(t *testing.T) {
	// No candidate scores above the band; the third slot fills from the
	// similarity ranking instead.
	pool := []Candidate{
		cand("below-a", 0.1, 0.6),
		cand("below-b", 0.2, 0.9),
		cand("close-a", 0.5, 0.8),
		cand("close-b", 0.51, 0.7),
	}

	selected := Select(pool, 0.5, 3)
	require.Len(t, selected, 3)

	picked := map[string]bool{}
	for _, c := range selected {
		picked[c.GradeID] = true
	}
	assert.True(t, picked["below-b"])
	assert.True(t, picked["close-a"])
	// close-b (0.7) beats below-a (0.6) in the fill.
	assert.True(t, picked["close-b"])
}

func TestSelectForcesSpreadOnDegenerateSelection(t *testing.T) {
	// At target 1.0 everything below 0.9 lands in one bucket, and the
	// similarity fill would pick a second 0.5 clone: two distinct scores.
	// The pool's global min and max must be forced in instead.
	pool := []Candidate{
		cand("mid-a", 0.5, 0.99),
		cand("mid-b", 0.5, 0.98),
		cand("mid-c", 0.5, 0.97),
		cand("mid-d", 0.5, 0.96),
		cand("mid-e", 0.5, 0.95),
		cand("low", 0.1, 0.20),
		cand("high", 0.9, 0.30),
	}

	selected := Select(pool, 1.0, 3)
	require.Len(t, selected, 3)

	picked := map[string]bool{}
	for _, c := range selected {
		picked[c.GradeID] = true
	}
	assert.True(t, picked["low"], "pool minimum must be forced in, got scores %v", scoresOf(selected))
	assert.True(t, picked["high"], "pool maximum must be forced in, got scores %v", scoresOf(selected))
	assert.Equal(t, 3, distinctScores(selected))
}

func TestSelectSmallPoolReturnedWhole(t *testing.T) {
	pool := []Candidate{cand("a", 0.3, 0.9), cand("b", 0.7, 0.8)}
	selected := Select(pool, 0.5, 3)
	assert.Len(t, selected, 2)
}

func TestSelectEmptyPool(t *testing.T) {
	assert.Empty(t, Select(nil, 0.5, 3))
}

func TestSelectDeterministic(t *testing.T) {
	pool := []Candidate{
		cand("a", 0.2, 0.5),
		cand("b", 0.2, 0.5),
		cand("c", 0.5, 0.5),
		cand("d", 0.9, 0.5),
		cand("e", 0.95, 0.5),
	}

	first := Select(pool, 0.5, 3)
	for i := 0; i < 10; i++ {
		again := Select(pool, 0.5, 3)
		assert.Equal(t, first, again)
	}
}

func TestSelectRelativeBand(t *testing.T) {
	// At target 0.1 the band is ±0.01, so 0.12 already counts as above.
	pool := []Candidate{
		cand("a", 0.05, 0.9),
		cand("b", 0.10, 0.8),
		cand("c", 0.12, 0.7),
		cand("d", 0.13, 0.6),
	}
	selected := Select(pool, 0.1, 3)
	require.Len(t, selected, 3)
	ids := []string{selected[0].GradeID, selected[1].GradeID, selected[2].GradeID}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestDiversityScoreSpreadBeatsCluster(t *testing.T) {
	pool := []float64{0.0, 0.2, 0.4, 0.5, 0.6, 0.8, 1.0}

	clustered := DiversityScore([]float64{0.5, 0.5, 0.5}, pool)
	spread := DiversityScore([]float64{0.0, 0.5, 1.0}, pool)

	assert.Equal(t, 0.0, clustered)
	assert.Greater(t, spread, clustered)
	assert.InDelta(t, 1.0, spread, 1e-9)
}

func TestDiversityScoreDegenerate(t *testing.T) {
	assert.Equal(t, 0.0, DiversityScore([]float64{0.5}, []float64{0.1, 0.9}))
	assert.Equal(t, 0.0, DiversityScore([]float64{0.1, 0.9}, nil))
	assert.Equal(t, 0.0, DiversityScore([]float64{0.5, 0.5}, []float64{0.5, 0.5}))
}

func TestSelectBestPrefersDiverseSubset(t *testing.T) {
	pool := []Candidate{
		cand("low", 0.1, 0.80),
		cand("mid", 0.5, 0.80),
		cand("high", 0.9, 0.80),
		cand("mid-dup-a", 0.5, 0.82),
		cand("mid-dup-b", 0.5, 0.81),
	}

	selected, err := SelectBest(pool, 3)
	require.NoError(t, err)
	require.Len(t, selected, 3)

	picked := map[string]bool{}
	for _, c := range selected {
		picked[c.GradeID] = true
	}
	// Slightly higher similarity on the duplicates cannot beat zero
	// diversity: the spread subset wins.
	assert.True(t, picked["low"])
	assert.True(t, picked["high"])
}

func TestSelectBestRefusesLargePools(t *testing.T) {
	pool := make([]Candidate, maxEnumerate+1)
	for i := range pool {
		pool[i] = cand(string(rune('a'+i)), float64(i)/float64(len(pool)), 0.5)
	}
	_, err := SelectBest(pool, 3)
	assert.Error(t, err)
}

func TestSelectBestSmallPool(t *testing.T) {
	pool := []Candidate{cand("a", 0.2, 0.9), cand("b", 0.8, 0.8)}
	selected, err := SelectBest(pool, 3)
	require.NoError(t, err)
	assert.Len(t, selected, 2)
}
