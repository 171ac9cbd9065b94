package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newSubmitCmd() *cobra.Command {
	var assignmentID, student, file string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue a submission for grading",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			if len(content) == 0 {
				return fmt.Errorf("submission file %s is empty", file)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.store.GetAssignment(cmd.Context(), assignmentID); err != nil {
				return err
			}
			sub, err := a.store.CreateSubmission(cmd.Context(), assignmentID, student, string(content))
			if err != nil {
				return err
			}
			fmt.Printf("queued submission %s for %s (%d bytes)\n", sub.ID, student, len(content))
			return nil
		},
	}
	cmd.Flags().StringVar(&assignmentID, "assignment", "", "assignment ID")
	cmd.Flags().StringVar(&student, "student", "", "student name")
	cmd.Flags().StringVar(&file, "file", "", "path to the submission text")
	cmd.MarkFlagRequired("assignment")
	cmd.MarkFlagRequired("student")
	cmd.MarkFlagRequired("file")
	return cmd
}
