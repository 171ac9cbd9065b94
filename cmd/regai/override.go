package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"regai/internal/grading"
)

func newOverrideCmd() *cobra.Command {
	var scoresPath, approver string

	cmd := &cobra.Command{
		Use:   "override <grade-id>",
		Short: "Replace a machine grade with teacher-supplied scores",
		Long: `Reconciles a teacher's manual score override: generates a critique and a
grade that justify the teacher's scores, persists both pre-approved, and
embeds them into the knowledge base. The scores file uses the grade content
shape: {"scores": [{"name", "score", "justification"}]}; justifications may
be omitted to have them synthesized.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(scoresPath)
			if err != nil {
				return err
			}
			var replacement grading.GradeContent
			if err := json.Unmarshal(data, &replacement); err != nil {
				return fmt.Errorf("parse scores file %s: %w", scoresPath, err)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			grade, err := a.store.GetGrade(ctx, args[0])
			if err != nil {
				return err
			}
			assignment, err := a.store.GetAssignment(ctx, grade.AssignmentID)
			if err != nil {
				return err
			}
			p, err := a.newPipeline(assignment)
			if err != nil {
				return err
			}

			result, err := p.Override(ctx, args[0], replacement, approver)
			if err != nil {
				return err
			}
			fmt.Printf("override reconciled: grade %s, critique %s, overall score %.4f\n",
				result.Grade.ID, result.Critique.ID, result.OverallScore)
			return nil
		},
	}
	cmd.Flags().StringVar(&scoresPath, "scores", "", "path to the teacher's replacement scores (JSON)")
	cmd.Flags().StringVar(&approver, "by", "", "teacher identity recorded as approver")
	cmd.MarkFlagRequired("scores")
	cmd.MarkFlagRequired("by")
	return cmd
}
