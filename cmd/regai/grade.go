package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"regai/internal/store"
)

func newGradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade <submission-id> [submission-id...]",
		Short: "Run the grading cycle for one or more submissions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			// Submissions may span assignments; group them so each pipeline
			// is constructed once per assignment.
			byAssignment := map[string][]*store.Submission{}
			for _, id := range args {
				sub, err := a.store.GetSubmission(ctx, id)
				if err != nil {
					return err
				}
				byAssignment[sub.AssignmentID] = append(byAssignment[sub.AssignmentID], sub)
			}

			failed := 0
			for assignmentID, subs := range byAssignment {
				assignment, err := a.store.GetAssignment(ctx, assignmentID)
				if err != nil {
					return err
				}
				p, err := a.newPipeline(assignment)
				if err != nil {
					return err
				}
				for _, br := range p.RunBatch(ctx, subs, a.cfg.Worker.MaxConcurrent) {
					if br.Err != nil {
						failed++
						fmt.Printf("submission %s: FAILED: %v\n", br.SubmissionID, br.Err)
						continue
					}
					note := ""
					if br.Result.BudgetExhausted {
						note = " (critique budget exhausted)"
					}
					fmt.Printf("submission %s: score %.4f, final grade %s after %d iteration(s)%s\n",
						br.SubmissionID, br.Result.OverallScore, br.Result.FinalGrade.ID,
						br.Result.Iterations, note)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d submission(s) failed", failed)
			}
			return nil
		},
	}
	return cmd
}
