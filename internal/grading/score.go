package grading

// OverallScore converts per-category scores into one normalized grade in
// [0,1]. Each score contributes (score/maxScore)*weight; the sum is divided
// by the total weight of the matched categories.
//
// Scores naming a category absent from the rubric are skipped, not rejected.
// This lenience is deliberate: model output occasionally drifts on category
// names and a partial aggregate beats a hard failure. Out-of-range scores are
// not clamped here; reviser output is validated upstream.
func OverallScore(scores []CategoryScore, rubric Rubric) float64 {
	var weightedSum, totalWeight float64

	for _, s := range scores {
		cat, ok := rubric.Category(s.Name)
		if !ok {
			continue
		}
		maxScore := cat.MaxScore()
		if maxScore == 0 {
			continue
		}
		weightedSum += (float64(s.Score) / float64(maxScore)) * cat.Weight
		totalWeight += cat.Weight
	}

	if totalWeight <= 0 {
		return 0.0
	}
	return weightedSum / totalWeight
}
