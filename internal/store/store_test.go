package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regai/internal/grading"
)

func testRubric() grading.Rubric {
	return grading.Rubric{
		Title: "Essay",
		Categories: []grading.Category{
			{Name: "Clarity", Weight: 70, ScoringLevels: []grading.ScoringLevel{
				{Level: 1, Score: 1}, {Level: 2, Score: 2}, {Level: 3, Score: 3},
			}},
			{Name: "Grammar", Weight: 30, ScoringLevels: []grading.ScoringLevel{
				{Level: 1, Score: 1}, {Level: 2, Score: 2},
			}},
		},
	}
}

func fixture(t *testing.T) (*Store, *Assignment, *Submission) {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	assignment, err := st.CreateAssignment(ctx, "Essay", "write about birds", testRubric())
	require.NoError(t, err)
	sub, err := st.CreateSubmission(ctx, assignment.ID, "alice", "the essay text")
	require.NoError(t, err)
	return st, assignment, sub
}

func passingContent() grading.GradeContent {
	return grading.GradeContent{Scores: []grading.CategoryScore{
		{Name: "Clarity", Score: 3, Justification: "crisp"},
		{Name: "Grammar", Score: 2, Justification: "clean"},
	}}
}

func TestAssignmentRoundTrip(t *testing.T) {
	st, assignment, _ := fixture(t)

	loaded, err := st.GetAssignment(context.Background(), assignment.ID)
	require.NoError(t, err)
	assert.Equal(t, assignment.Title, loaded.Title)
	assert.Equal(t, testRubric(), loaded.Rubric)
}

func TestSubmissionLifecycle(t *testing.T) {
	st, _, sub := fixture(t)
	ctx := context.Background()

	assert.Equal(t, StatusQueued, sub.Status)

	require.NoError(t, st.UpdateSubmissionStatus(ctx, sub.ID, StatusGrading))
	loaded, err := st.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusGrading, loaded.Status)
	assert.False(t, loaded.OverallScore.Valid)
	assert.False(t, loaded.GradedAt.Valid)

	require.NoError(t, st.WithinUnit(ctx, func(u *Unit) error {
		return u.FinishSubmission(sub.ID, 0.85)
	}))
	loaded, err = st.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusGraded, loaded.Status)
	assert.Equal(t, 0.85, loaded.OverallScore.Float64)
	assert.True(t, loaded.GradedAt.Valid)
}

func TestUnitCommitsTogether(t *testing.T) {
	st, assignment, sub := fixture(t)
	ctx := context.Background()

	var gradeID string
	require.NoError(t, st.WithinUnit(ctx, func(u *Unit) error {
		grade, err := u.CreateGrade(assignment.ID, sub.ID, grading.GradeInitial, passingContent())
		if err != nil {
			return err
		}
		gradeID = grade.ID
		_, err = u.CreateCritique(assignment.ID, sub.ID, grade.ID, grading.CritiqueContent{
			OverallAssessment: "fair",
			RevisionStatus:    grading.StatusPass,
		})
		if err != nil {
			return err
		}
		return u.PromoteGrade(grade.ID, grading.GradeFinal)
	}))

	grade, err := st.GetGrade(ctx, gradeID)
	require.NoError(t, err)
	assert.Equal(t, grading.GradeFinal, grade.Type)
	assert.Equal(t, passingContent(), grade.Content)
}

func TestUnitRollsBackTogether(t *testing.T) {
	st, assignment, sub := fixture(t)
	ctx := context.Background()

	boom := errors.New("reviser produced garbage")
	err := st.WithinUnit(ctx, func(u *Unit) error {
		if _, err := u.CreateGrade(assignment.ID, sub.ID, grading.GradeInitial, passingContent()); err != nil {
			return err
		}
		if err := u.FinishSubmission(sub.ID, 0.9); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Nothing from the failed unit is visible.
	grades, err := st.GradesForSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Empty(t, grades)

	loaded, err := st.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, loaded.Status)
	assert.False(t, loaded.OverallScore.Valid)
}

func TestGradesForSubmissionOrdered(t *testing.T) {
	st, assignment, sub := fixture(t)
	ctx := context.Background()

	require.NoError(t, st.WithinUnit(ctx, func(u *Unit) error {
		for _, typ := range []grading.GradeType{grading.GradeInitial, grading.GradeRevision, grading.GradeFinal} {
			if _, err := u.CreateGrade(assignment.ID, sub.ID, typ, passingContent()); err != nil {
				return err
			}
		}
		return nil
	}))

	grades, err := st.GradesForSubmission(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, grades, 3)
	assert.Equal(t, grading.GradeInitial, grades[0].Type)
	assert.Equal(t, grading.GradeRevision, grades[1].Type)
	assert.Equal(t, grading.GradeFinal, grades[2].Type)
}

func TestApprovalIsMonotonic(t *testing.T) {
	st, assignment, sub := fixture(t)
	ctx := context.Background()

	var gradeID string
	require.NoError(t, st.WithinUnit(ctx, func(u *Unit) error {
		grade, err := u.CreateGrade(assignment.ID, sub.ID, grading.GradeFinal, passingContent())
		if err != nil {
			return err
		}
		gradeID = grade.ID
		return nil
	}))

	require.NoError(t, st.MarkGradeApproved(ctx, gradeID, "prof-smith"))
	// Second approval keeps the original approver.
	require.NoError(t, st.MarkGradeApproved(ctx, gradeID, "someone-else"))

	grade, err := st.GetGrade(ctx, gradeID)
	require.NoError(t, err)
	assert.True(t, grade.HumanApproved)
	assert.Equal(t, "prof-smith", grade.ApprovedBy.String)
	assert.True(t, grade.ApprovedAt.Valid)
}

func TestGetApprovedGrades(t *testing.T) {
	st, assignment, sub := fixture(t)
	ctx := context.Background()

	var approved, unapproved string
	require.NoError(t, st.WithinUnit(ctx, func(u *Unit) error {
		g1, err := u.CreateGrade(assignment.ID, sub.ID, grading.GradeFinal, passingContent())
		if err != nil {
			return err
		}
		approved = g1.ID
		g2, err := u.CreateGrade(assignment.ID, sub.ID, grading.GradeFinal, passingContent())
		if err != nil {
			return err
		}
		unapproved = g2.ID
		return nil
	}))
	require.NoError(t, st.MarkGradeApproved(ctx, approved, "prof-smith"))

	grades, err := st.GetApprovedGrades(ctx, assignment.ID)
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, approved, grades[0].ID)
	assert.NotEqual(t, unapproved, grades[0].ID)
}

func TestCreateApprovedRecords(t *testing.T) {
	st, assignment, sub := fixture(t)
	ctx := context.Background()

	var gradeID, critiqueID string
	require.NoError(t, st.WithinUnit(ctx, func(u *Unit) error {
		grade, err := u.CreateApprovedGrade(assignment.ID, sub.ID, grading.GradeFinal, passingContent(), "prof-smith")
		if err != nil {
			return err
		}
		gradeID = grade.ID
		critique, err := u.CreateApprovedCritique(assignment.ID, sub.ID, grade.ID, grading.CritiqueContent{
			OverallAssessment: "teacher decision",
			RevisionStatus:    grading.StatusPass,
		}, "prof-smith")
		if err != nil {
			return err
		}
		critiqueID = critique.ID
		return nil
	}))

	grade, err := st.GetGrade(ctx, gradeID)
	require.NoError(t, err)
	assert.True(t, grade.HumanApproved)
	assert.Equal(t, "prof-smith", grade.ApprovedBy.String)

	critique, err := st.GetCritique(ctx, critiqueID)
	require.NoError(t, err)
	assert.True(t, critique.HumanApproved)
	assert.Equal(t, grading.StatusPass, critique.RevisionStatus)

	approved, err := st.GetApprovedCritiques(ctx, assignment.ID)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, critiqueID, approved[0].ID)
}
