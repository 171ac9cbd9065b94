package grading

import "fmt"

// GradeType tracks where a grade sits in the revision lifecycle.
type GradeType string

const (
	GradeInitial  GradeType = "initial"
	GradeRevision GradeType = "revision"
	GradeFinal    GradeType = "final"
)

// RevisionStatus is the critic's verdict and the sole driver of the cycle's
// control flow.
type RevisionStatus string

const (
	StatusPass          RevisionStatus = "PASS"
	StatusMinorRevision RevisionStatus = "MINOR_REVISION"
	StatusMajorRevision RevisionStatus = "MAJOR_REVISION"
)

// Valid reports whether s is one of the three known verdicts.
func (s RevisionStatus) Valid() bool {
	switch s {
	case StatusPass, StatusMinorRevision, StatusMajorRevision:
		return true
	}
	return false
}

// CategoryScore is one per-category judgment within a grade.
type CategoryScore struct {
	Name          string `json:"name"`
	Score         int    `json:"score"`
	Justification string `json:"justification"`
}

// GradeContent is the payload shape produced by the scorer and reviser:
// {"scores": [{"name", "score", "justification"}]}.
type GradeContent struct {
	Scores []CategoryScore `json:"scores"`
	// Error carries the fail-soft marker when model output contained no
	// parseable JSON. Such grades are never finalized as real judgments.
	Error string `json:"error,omitempty"`
}

// Validate checks the payload has a non-empty scores array and that every
// entry names a rubric category with a score inside [1, maxScore].
// Used on reviser output where a malformed revision is a hard error.
func (g GradeContent) Validate(rubric Rubric) error {
	if len(g.Scores) == 0 {
		return fmt.Errorf("grade has no scores")
	}
	for _, s := range g.Scores {
		cat, ok := rubric.Category(s.Name)
		if !ok {
			return fmt.Errorf("grade scores unknown category %q", s.Name)
		}
		if s.Score < 1 || s.Score > cat.MaxScore() {
			return fmt.Errorf("category %q: score %d out of range [1,%d]", s.Name, s.Score, cat.MaxScore())
		}
	}
	return nil
}

// CategoryCritique is the critic's per-category commentary.
type CategoryCritique struct {
	Category string `json:"category"`
	Critique string `json:"critique"`
}

// CritiqueContent is the critic's payload shape.
type CritiqueContent struct {
	OverallAssessment         string             `json:"overall_assessment"`
	CategoryCritiques         []CategoryCritique `json:"category_critiques"`
	PotentialBiases           []string           `json:"potential_biases"`
	SuggestionsForImprovement []string           `json:"suggestions_for_improvement"`
	RevisionStatus            RevisionStatus     `json:"revision_status"`
}
