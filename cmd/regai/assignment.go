package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"regai/internal/grading"
)

func newAssignmentCmd() *cobra.Command {
	var title, description, rubricPath string

	cmd := &cobra.Command{
		Use:   "assignment",
		Short: "Create an assignment from a rubric file",
		RunE: func(cmd *cobra.Command, args []string) error {
			rubric, err := grading.LoadRubric(rubricPath)
			if err != nil {
				return err
			}
			if err := rubric.Validate(); err != nil {
				return fmt.Errorf("rubric %s: %w", rubricPath, err)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			assignment, err := a.store.CreateAssignment(cmd.Context(), title, description, rubric)
			if err != nil {
				return err
			}
			fmt.Printf("created assignment %s (%q, %d rubric categories)\n",
				assignment.ID, assignment.Title, len(rubric.Categories))
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "assignment title")
	cmd.Flags().StringVar(&description, "description", "", "assignment description shown to the grader")
	cmd.Flags().StringVar(&rubricPath, "rubric", "", "path to rubric YAML or JSON")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("rubric")
	return cmd
}
