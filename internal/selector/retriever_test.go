package selector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regai/internal/grading"
	"regai/internal/index"
	"regai/internal/logging"
	"regai/internal/store"
)

type flatEmbedder struct{}

func (flatEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (flatEmbedder) Dimensions() int { return 3 }

func retrieverFixture(t *testing.T) (*store.Store, *index.Index, *store.Assignment) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	idx, err := index.New(index.Config{Collection: "test"}, flatEmbedder{})
	require.NoError(t, err)

	rubric := grading.Rubric{Categories: []grading.Category{
		{Name: "Depth", Weight: 1, ScoringLevels: []grading.ScoringLevel{
			{Level: 1, Score: 1}, {Level: 2, Score: 2},
		}},
	}}
	assignment, err := st.CreateAssignment(context.Background(), "Essay", "write", rubric)
	require.NoError(t, err)
	return st, idx, assignment
}

func TestRetrieverJoinsIndexWithStore(t *testing.T) {
	ctx := context.Background()
	st, idx, assignment := retrieverFixture(t)

	sub, err := st.CreateSubmission(ctx, assignment.ID, "alice", "an essay about birds")
	require.NoError(t, err)

	var grade *store.Grade
	require.NoError(t, st.WithinUnit(ctx, func(u *store.Unit) error {
		grade, err = u.CreateGrade(assignment.ID, sub.ID, grading.GradeFinal, grading.GradeContent{
			Scores: []grading.CategoryScore{{Name: "Depth", Score: 2, Justification: "thorough"}},
		})
		return err
	}))

	require.NoError(t, idx.Upsert(ctx, index.DocSubmission, index.Document{
		ID:      "doc-1",
		Content: sub.Content,
		Metadata: map[string]string{
			"source_id": sub.ID,
			"grade_id":  grade.ID,
			"score":     "1.0000",
		},
	}))

	r := NewRetriever(idx, st, 10, logging.Nop())
	cands, err := r.Candidates(ctx, "another essay about birds")
	require.NoError(t, err)
	require.Len(t, cands, 1)

	assert.Equal(t, grade.ID, cands[0].GradeID)
	assert.Equal(t, sub.ID, cands[0].SubmissionID)
	assert.Equal(t, sub.Content, cands[0].SubmissionText)
	assert.Equal(t, 1.0, cands[0].Score)
	assert.Equal(t, grade.Content, cands[0].Content)
}

func TestRetrieverSkipsBrokenLinkage(t *testing.T) {
	ctx := context.Background()
	st, idx, _ := retrieverFixture(t)

	require.NoError(t, idx.Upsert(ctx, index.DocSubmission, index.Document{
		ID:       "orphan",
		Content:  "no grade metadata",
		Metadata: map[string]string{"score": "0.5000"},
	}))
	require.NoError(t, idx.Upsert(ctx, index.DocSubmission, index.Document{
		ID:      "dangling",
		Content: "grade id points nowhere",
		Metadata: map[string]string{
			"grade_id": "missing-grade",
			"score":    "0.5000",
		},
	}))

	r := NewRetriever(idx, st, 10, logging.Nop())
	cands, err := r.Candidates(ctx, "query")
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestRetrieverEmptyIndex(t *testing.T) {
	st, idx, _ := retrieverFixture(t)
	r := NewRetriever(idx, st, 10, logging.Nop())
	cands, err := r.Candidates(context.Background(), "query")
	require.NoError(t, err)
	assert.Empty(t, cands)
}
