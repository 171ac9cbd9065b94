package pipeline

import (
	"context"
	"errors"
	"fmt"

	"regai/internal/grading"
	"regai/internal/jsonx"
	"regai/internal/knowledge"
	"regai/internal/llm"
	"regai/internal/logging"
	"regai/internal/selector"
	"regai/internal/store"
)

// ErrUnscorable marks a cycle that could not produce a usable initial grade.
// The error grade and the submission's error status are still persisted.
var ErrUnscorable = errors.New("submission could not be scored")

// Config bounds one grading cycle.
type Config struct {
	// MaxIterations is the critique budget. After this many critiques the
	// current grade is finalized no matter what the critic says.
	MaxIterations int
	// TopK is the number of calibration examples attached to each prompt.
	TopK int
	// MaxOutputTokens caps each completion.
	MaxOutputTokens int
	// DefaultAnchor seeds example selection for the initial grade when the
	// assignment has no approved grades yet.
	DefaultAnchor float64
}

// DefaultConfig returns the standard cycle bounds.
func DefaultConfig() Config {
	return Config{
		MaxIterations:   3,
		TopK:            selector.DefaultTopK,
		MaxOutputTokens: 4096,
		DefaultAnchor:   0.5,
	}
}

// Deps are the collaborators a Pipeline needs. LLM and Store are required;
// the rest degrade gracefully when absent.
type Deps struct {
	LLM       llm.Client
	Store     *store.Store
	Retriever *selector.Retriever
	Knowledge *knowledge.Service
	Logger    logging.Logger
}

// Pipeline runs grade-critique-revise cycles for one assignment. Construct one
// per assignment; a single Pipeline may grade many submissions, concurrently.
type Pipeline struct {
	assignment *store.Assignment
	rubric     grading.Rubric
	llm        llm.Client
	store      *store.Store
	retriever  *selector.Retriever
	knowledge  *knowledge.Service
	cfg        Config
	logger     logging.Logger
}

// New builds a Pipeline for the given assignment.
func New(assignment *store.Assignment, deps Deps, cfg Config) (*Pipeline, error) {
	if assignment == nil {
		return nil, fmt.Errorf("pipeline: assignment is required")
	}
	if deps.LLM == nil || deps.Store == nil {
		return nil, fmt.Errorf("pipeline: llm client and store are required")
	}
	if err := assignment.Rubric.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: invalid rubric: %w", err)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	if cfg.TopK <= 0 {
		cfg.TopK = selector.DefaultTopK
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultConfig().MaxOutputTokens
	}
	if cfg.DefaultAnchor <= 0 {
		cfg.DefaultAnchor = DefaultConfig().DefaultAnchor
	}
	return &Pipeline{
		assignment: assignment,
		rubric:     assignment.Rubric,
		llm:        deps.LLM,
		store:      deps.Store,
		retriever:  deps.Retriever,
		knowledge:  deps.Knowledge,
		cfg:        cfg,
		logger:     logging.OrNop(deps.Logger),
	}, nil
}

// Result summarizes one completed cycle.
type Result struct {
	FinalGrade      *store.Grade
	Critiques       []*store.Critique
	OverallScore    float64
	Iterations      int
	BudgetExhausted bool
}

// Run grades one submission through the full cycle: initial grade, then up to
// MaxIterations critique rounds with revisions, then finalization. All grade
// and critique rows for the cycle land in a single unit of work; any fatal
// error rolls the whole cycle back and leaves the submission in error status.
func (p *Pipeline) Run(ctx context.Context, sub *store.Submission) (*Result, error) {
	if sub.AssignmentID != p.assignment.ID {
		return nil, fmt.Errorf("submission %s belongs to assignment %s, pipeline is for %s",
			sub.ID, sub.AssignmentID, p.assignment.ID)
	}
	if err := p.store.UpdateSubmissionStatus(ctx, sub.ID, store.StatusGrading); err != nil {
		return nil, err
	}

	candidates := p.fetchCandidates(ctx, sub)

	result, err := p.runCycle(ctx, sub, candidates)
	if err != nil {
		cyclesFailed.Inc()
		if errors.Is(err, ErrUnscorable) {
			// The cycle's unit rolled back; keep the error grade for audit in
			// its own unit.
			recordErr := p.store.WithinUnit(ctx, func(u *store.Unit) error {
				_, createErr := u.CreateGrade(p.assignment.ID, sub.ID, grading.GradeInitial,
					grading.GradeContent{Error: err.Error()})
				return createErr
			})
			if recordErr != nil {
				p.logger.Error("failed to record error grade for submission %s: %v", sub.ID, recordErr)
			}
		}
		if stErr := p.store.UpdateSubmissionStatus(ctx, sub.ID, store.StatusError); stErr != nil {
			p.logger.Error("failed to mark submission %s as errored: %v", sub.ID, stErr)
		}
		return nil, err
	}
	cyclesCompleted.Inc()
	p.logger.Info("graded submission %s: score %.4f after %d iteration(s)",
		sub.ID, result.OverallScore, result.Iterations)
	return result, nil
}

// fetchCandidates pulls the approved-grade pool near the submission. Retrieval
// failures degrade to grading without examples rather than failing the cycle.
func (p *Pipeline) fetchCandidates(ctx context.Context, sub *store.Submission) []selector.Candidate {
	if p.retriever == nil {
		return nil
	}
	cands, err := p.retriever.Candidates(ctx, sub.Content)
	if err != nil {
		p.logger.Warn("example retrieval failed for submission %s, grading without examples: %v", sub.ID, err)
		return nil
	}
	return cands
}

func (p *Pipeline) runCycle(ctx context.Context, sub *store.Submission, candidates []selector.Candidate) (*Result, error) {
	// Store reads must happen before the unit of work opens: the single
	// sqlite connection belongs to the transaction once it begins.
	anchor := p.initialAnchor(ctx)

	result := &Result{}
	err := p.store.WithinUnit(ctx, func(u *store.Unit) error {
		examples := selector.Select(candidates, anchor, p.cfg.TopK)

		content, scoreErr := p.scoreSubmission(ctx, sub, examples)
		if scoreErr != nil {
			return scoreErr
		}
		current, err := u.CreateGrade(p.assignment.ID, sub.ID, grading.GradeInitial, *content)
		if err != nil {
			return err
		}

		for iter := 1; iter <= p.cfg.MaxIterations; iter++ {
			result.Iterations = iter
			overall := grading.OverallScore(current.Content.Scores, p.rubric)
			examples := selector.Select(candidates, overall, p.cfg.TopK)

			critiqueContent, err := p.critiqueGrade(ctx, sub, current.Content, examples)
			if err != nil {
				return err
			}
			critique, err := u.CreateCritique(p.assignment.ID, sub.ID, current.ID, critiqueContent)
			if err != nil {
				return err
			}
			result.Critiques = append(result.Critiques, critique)

			switch critiqueContent.RevisionStatus {
			case grading.StatusPass:
				if err := u.PromoteGrade(current.ID, grading.GradeFinal); err != nil {
					return err
				}
				current.Type = grading.GradeFinal
				return p.finish(u, sub, result, current)

			case grading.StatusMinorRevision:
				// One revision pass closes the cycle: a minor fix does not
				// warrant another critique round.
				revised, err := p.reviseGrade(ctx, sub, current.Content, critiqueContent)
				if err != nil {
					return err
				}
				revisionsTotal.Inc()
				final, err := u.CreateGrade(p.assignment.ID, sub.ID, grading.GradeFinal, *revised)
				if err != nil {
					return err
				}
				return p.finish(u, sub, result, final)

			case grading.StatusMajorRevision:
				if iter == p.cfg.MaxIterations {
					budgetExhaustions.Inc()
					result.BudgetExhausted = true
					p.logger.Warn("critique budget exhausted for submission %s after %d iterations, finalizing current grade despite MAJOR_REVISION",
						sub.ID, iter)
					if err := u.PromoteGrade(current.ID, grading.GradeFinal); err != nil {
						return err
					}
					current.Type = grading.GradeFinal
					return p.finish(u, sub, result, current)
				}
				revised, err := p.reviseGrade(ctx, sub, current.Content, critiqueContent)
				if err != nil {
					return err
				}
				revisionsTotal.Inc()
				current, err = u.CreateGrade(p.assignment.ID, sub.ID, grading.GradeRevision, *revised)
				if err != nil {
					return err
				}

			default:
				return fmt.Errorf("critic returned unknown revision status %q", critiqueContent.RevisionStatus)
			}
		}
		return fmt.Errorf("grading cycle ended without finalizing submission %s", sub.ID)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// finish records the final grade and closes out the submission inside the
// unit of work.
func (p *Pipeline) finish(u *store.Unit, sub *store.Submission, result *Result, final *store.Grade) error {
	result.FinalGrade = final
	result.OverallScore = grading.OverallScore(final.Content.Scores, p.rubric)
	return u.FinishSubmission(sub.ID, result.OverallScore)
}

// initialAnchor picks the target score for the first example selection: the
// mean overall score of the assignment's approved grades, or the configured
// default when none exist yet.
func (p *Pipeline) initialAnchor(ctx context.Context) float64 {
	approved, err := p.store.GetApprovedGrades(ctx, p.assignment.ID)
	if err != nil {
		p.logger.Warn("could not load approved grades for anchor: %v", err)
		return p.cfg.DefaultAnchor
	}
	if len(approved) == 0 {
		return p.cfg.DefaultAnchor
	}
	var sum float64
	for _, g := range approved {
		sum += grading.OverallScore(g.Content.Scores, p.rubric)
	}
	return sum / float64(len(approved))
}

// scoreSubmission produces the initial grade. An unparseable or invalid reply
// is ErrUnscorable; transport errors pass through for the caller to surface.
func (p *Pipeline) scoreSubmission(ctx context.Context, sub *store.Submission, examples []selector.Candidate) (*grading.GradeContent, error) {
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		System:    graderSystem,
		Prompt:    graderPrompt(p.assignment.Description, p.rubric, sub.Content, examples),
		MaxTokens: p.cfg.MaxOutputTokens,
		JSONMode:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("grader call: %w", err)
	}
	var content grading.GradeContent
	if !jsonx.ExtractInto(resp.Content, &content) {
		p.logger.Error("grader reply for submission %s contained no parseable JSON", sub.ID)
		return nil, fmt.Errorf("%w: grader reply contained no parseable JSON", ErrUnscorable)
	}
	if err := content.Validate(p.rubric); err != nil {
		p.logger.Error("grader reply for submission %s failed validation: %v", sub.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrUnscorable, err)
	}
	return &content, nil
}

// critiqueGrade asks the critic to review a grade. A reply that cannot be
// parsed degrades to a sentinel PASS so a flaky critic never blocks
// finalization; transport errors pass through, like the grader and reviser.
func (p *Pipeline) critiqueGrade(ctx context.Context, sub *store.Submission, grade grading.GradeContent, examples []selector.Candidate) (grading.CritiqueContent, error) {
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		System:    criticSystem,
		Prompt:    criticPrompt(p.rubric, sub.Content, grade, examples),
		MaxTokens: p.cfg.MaxOutputTokens,
		JSONMode:  true,
	})
	if err != nil {
		return grading.CritiqueContent{}, fmt.Errorf("critic call: %w", err)
	}
	var content grading.CritiqueContent
	if !jsonx.ExtractInto(resp.Content, &content) || !content.RevisionStatus.Valid() {
		p.logger.Warn("critic reply for submission %s was not usable, accepting grade as-is", sub.ID)
		return sentinelPassCritique("critique generation failed, defaulting to PASS"), nil
	}
	return content, nil
}

func sentinelPassCritique(reason string) grading.CritiqueContent {
	return grading.CritiqueContent{
		OverallAssessment: reason,
		RevisionStatus:    grading.StatusPass,
	}
}

// reviseGrade asks the reviser to address a critique. Unlike critiquing, a
// malformed revision is fatal: silently keeping the old grade after the critic
// demanded changes would misrepresent the record.
func (p *Pipeline) reviseGrade(ctx context.Context, sub *store.Submission, original grading.GradeContent, critique grading.CritiqueContent) (*grading.GradeContent, error) {
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		System:    reviserSystem,
		Prompt:    reviserPrompt(p.rubric, sub.Content, original, critique),
		MaxTokens: p.cfg.MaxOutputTokens,
		JSONMode:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("reviser call: %w", err)
	}
	var content grading.GradeContent
	if !jsonx.ExtractInto(resp.Content, &content) {
		return nil, fmt.Errorf("reviser reply contained no parseable JSON")
	}
	if err := content.Validate(p.rubric); err != nil {
		return nil, fmt.Errorf("revised grade failed validation: %w", err)
	}
	return &content, nil
}
