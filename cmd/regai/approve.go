package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newApproveCmd() *cobra.Command {
	var approver string

	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve grades or critiques into the knowledge base",
	}
	cmd.PersistentFlags().StringVar(&approver, "by", "", "approver identity")
	cmd.MarkPersistentFlagRequired("by")

	gradeCmd := &cobra.Command{
		Use:   "grade <grade-id>",
		Short: "Approve a grade and embed it as a calibration example",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.knowledge.ApproveGrade(cmd.Context(), args[0], approver); err != nil {
				return err
			}
			fmt.Printf("grade %s approved by %s\n", args[0], approver)
			return nil
		},
	}

	critiqueCmd := &cobra.Command{
		Use:   "critique <critique-id>",
		Short: "Approve a critique and embed it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.knowledge.ApproveCritique(cmd.Context(), args[0], approver); err != nil {
				return err
			}
			fmt.Printf("critique %s approved by %s\n", args[0], approver)
			return nil
		},
	}

	cmd.AddCommand(gradeCmd, critiqueCmd)
	return cmd
}
