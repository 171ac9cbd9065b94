package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"regai/internal/grading"
	"regai/internal/index"
	"regai/internal/logging"
	"regai/internal/store"
)

// Service maintains the assignment's knowledge base: items a human has
// validated as exemplary. Approval is monotonic; only approved items are
// embedded and become retrievable as in-context calibration examples.
type Service struct {
	store  *store.Store
	index  *index.Index
	logger logging.Logger
}

// NewService creates a knowledge base service.
func NewService(st *store.Store, idx *index.Index, logger logging.Logger) *Service {
	return &Service{store: st, index: idx, logger: logging.OrNop(logger)}
}

// ApproveGrade marks a grade human-approved and embeds both the graded
// submission text (the selector's candidate source, carrying the grade link
// and overall score) and the grade payload itself into the index.
func (s *Service) ApproveGrade(ctx context.Context, gradeID, approver string) error {
	grade, err := s.store.GetGrade(ctx, gradeID)
	if err != nil {
		return fmt.Errorf("approve grade: %w", err)
	}
	if err := s.store.MarkGradeApproved(ctx, gradeID, approver); err != nil {
		return err
	}

	assignment, err := s.store.GetAssignment(ctx, grade.AssignmentID)
	if err != nil {
		return fmt.Errorf("approve grade: %w", err)
	}
	submission, err := s.store.GetSubmission(ctx, grade.SubmissionID)
	if err != nil {
		return fmt.Errorf("approve grade: %w", err)
	}

	return s.EmbedApprovedGrade(ctx, assignment.Rubric, grade, submission.Content)
}

// EmbedApprovedGrade indexes an already-approved grade and its submission
// text. Superseding documents get fresh IDs; prior versions are not deleted.
func (s *Service) EmbedApprovedGrade(ctx context.Context, rubric grading.Rubric, grade *store.Grade, submissionText string) error {
	overall := grading.OverallScore(grade.Content.Scores, rubric)
	scoreStr := strconv.FormatFloat(overall, 'f', 4, 64)

	err := s.index.Upsert(ctx, index.DocSubmission, index.Document{
		ID:      uuid.NewString(),
		Content: submissionText,
		Metadata: map[string]string{
			"source_id": grade.SubmissionID,
			"grade_id":  grade.ID,
			"score":     scoreStr,
		},
	})
	if err != nil {
		return fmt.Errorf("embed submission: %w", err)
	}

	gradeJSON, err := json.Marshal(grade.Content)
	if err != nil {
		return fmt.Errorf("marshal grade: %w", err)
	}
	err = s.index.Upsert(ctx, index.DocGrade, index.Document{
		ID:      uuid.NewString(),
		Content: string(gradeJSON),
		Metadata: map[string]string{
			"source_id": grade.ID,
			"score":     scoreStr,
		},
	})
	if err != nil {
		return fmt.Errorf("embed grade: %w", err)
	}

	s.logger.Info("approved grade %s embedded (overall score %.3f)", grade.ID, overall)
	return nil
}

// ApproveCritique marks a critique human-approved and embeds it.
func (s *Service) ApproveCritique(ctx context.Context, critiqueID, approver string) error {
	critique, err := s.store.GetCritique(ctx, critiqueID)
	if err != nil {
		return fmt.Errorf("approve critique: %w", err)
	}
	if err := s.store.MarkCritiqueApproved(ctx, critiqueID, approver); err != nil {
		return err
	}

	contentJSON, err := json.Marshal(critique.Content)
	if err != nil {
		return fmt.Errorf("marshal critique: %w", err)
	}
	err = s.index.Upsert(ctx, index.DocCritique, index.Document{
		ID:      uuid.NewString(),
		Content: string(contentJSON),
		Metadata: map[string]string{
			"source_id": critique.ID,
			"grade_id":  critique.GradeID,
		},
	})
	if err != nil {
		return fmt.Errorf("embed critique: %w", err)
	}

	s.logger.Info("approved critique %s embedded", critique.ID)
	return nil
}
