package pipeline

import (
	"context"
	"fmt"

	"regai/internal/grading"
	"regai/internal/jsonx"
	"regai/internal/llm"
	"regai/internal/store"
)

// OverrideResult carries the records produced by a reconciled override.
type OverrideResult struct {
	Grade        *store.Grade
	Critique     *store.Critique
	OverallScore float64
}

// Override reconciles a teacher's manual replacement of a machine grade. Two
// independent model calls produce a critique that argues in favor of the
// teacher's scores and a grade whose justifications support them. Both records
// are persisted pre-approved in one unit of work, then fed to the knowledge
// base. This flow never loops.
func (p *Pipeline) Override(ctx context.Context, gradeID string, replacement grading.GradeContent, approver string) (*OverrideResult, error) {
	if err := replacement.Validate(p.rubric); err != nil {
		return nil, fmt.Errorf("override scores rejected: %w", err)
	}
	original, err := p.store.GetGrade(ctx, gradeID)
	if err != nil {
		return nil, err
	}
	if original.AssignmentID != p.assignment.ID {
		return nil, fmt.Errorf("grade %s belongs to assignment %s, pipeline is for %s",
			gradeID, original.AssignmentID, p.assignment.ID)
	}
	submission, err := p.store.GetSubmission(ctx, original.SubmissionID)
	if err != nil {
		return nil, err
	}

	critiqueContent, err := p.overrideCritique(ctx, submission.Content, original.Content, replacement)
	if err != nil {
		return nil, err
	}
	gradeContent, err := p.overrideGrade(ctx, submission.Content, original.Content, replacement)
	if err != nil {
		return nil, err
	}

	result := &OverrideResult{}
	err = p.store.WithinUnit(ctx, func(u *store.Unit) error {
		grade, err := u.CreateApprovedGrade(p.assignment.ID, submission.ID, grading.GradeFinal, *gradeContent, approver)
		if err != nil {
			return err
		}
		critique, err := u.CreateApprovedCritique(p.assignment.ID, submission.ID, grade.ID, critiqueContent, approver)
		if err != nil {
			return err
		}
		result.Grade = grade
		result.Critique = critique
		result.OverallScore = grading.OverallScore(grade.Content.Scores, p.rubric)
		return u.FinishSubmission(submission.ID, result.OverallScore)
	})
	if err != nil {
		return nil, err
	}
	overridesTotal.Inc()

	// Both records carry human approval, so they enter the knowledge base
	// immediately. Embedding failures are logged, not fatal: the records are
	// already committed and a later re-approval can re-embed them.
	if p.knowledge != nil {
		if err := p.knowledge.EmbedApprovedGrade(ctx, p.rubric, result.Grade, submission.Content); err != nil {
			p.logger.Error("failed to embed override grade %s: %v", result.Grade.ID, err)
		}
		if err := p.knowledge.ApproveCritique(ctx, result.Critique.ID, approver); err != nil {
			p.logger.Error("failed to embed override critique %s: %v", result.Critique.ID, err)
		}
	}

	p.logger.Info("override reconciled for grade %s by %s: new final grade %s (score %.4f)",
		gradeID, approver, result.Grade.ID, result.OverallScore)
	return result, nil
}

// overrideCritique asks for a critique that rationalizes the teacher's scores.
// Opposite polarity to the cycle's critic: it defends the human decision
// instead of challenging the grade.
func (p *Pipeline) overrideCritique(ctx context.Context, submissionText string, original, replacement grading.GradeContent) (grading.CritiqueContent, error) {
	var content grading.CritiqueContent
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		System:    overrideCriticSystem,
		Prompt:    overrideCritiquePrompt(p.assignment.Description, p.rubric, submissionText, original, replacement),
		MaxTokens: p.cfg.MaxOutputTokens,
		JSONMode:  true,
	})
	if err != nil {
		return content, fmt.Errorf("override critique call: %w", err)
	}
	if !jsonx.ExtractInto(resp.Content, &content) {
		return content, fmt.Errorf("override critique reply contained no parseable JSON")
	}
	if !content.RevisionStatus.Valid() {
		// The verdict is a formality here; the human already decided.
		content.RevisionStatus = grading.StatusPass
	}
	return content, nil
}

// overrideGrade asks for a grade whose justifications defend the teacher's
// scores. The model's scores are discarded in favor of the replacement's: the
// human numbers are authoritative, only the prose is synthesized.
func (p *Pipeline) overrideGrade(ctx context.Context, submissionText string, original, replacement grading.GradeContent) (*grading.GradeContent, error) {
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		System:    overrideGradeSystem,
		Prompt:    overrideGradePrompt(p.assignment.Description, p.rubric, submissionText, original, replacement),
		MaxTokens: p.cfg.MaxOutputTokens,
		JSONMode:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("override grade call: %w", err)
	}
	var generated grading.GradeContent
	if !jsonx.ExtractInto(resp.Content, &generated) {
		return nil, fmt.Errorf("override grade reply contained no parseable JSON")
	}

	justifications := make(map[string]string, len(generated.Scores))
	for _, cs := range generated.Scores {
		justifications[cs.Name] = cs.Justification
	}
	merged := grading.GradeContent{Scores: make([]grading.CategoryScore, len(replacement.Scores))}
	for i, cs := range replacement.Scores {
		merged.Scores[i] = cs
		if cs.Justification == "" || sameJustification(original, cs) {
			if j, ok := justifications[cs.Name]; ok && j != "" {
				merged.Scores[i].Justification = j
			}
		}
	}
	if err := merged.Validate(p.rubric); err != nil {
		return nil, fmt.Errorf("reconciled grade failed validation: %w", err)
	}
	return &merged, nil
}

// sameJustification reports whether the replacement kept the original
// justification verbatim, meaning the teacher only changed the number.
func sameJustification(original grading.GradeContent, cs grading.CategoryScore) bool {
	for _, orig := range original.Scores {
		if orig.Name == cs.Name {
			return orig.Justification == cs.Justification
		}
	}
	return false
}
