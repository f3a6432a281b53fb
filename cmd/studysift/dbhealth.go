package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newDBHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dbhealth",
		Short: "Ping the database and print row counts for the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			owner, err := ownerID()
			if err != nil {
				return err
			}
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.DB.HealthCheck(ctx, time.Second); err != nil {
				color.Red("DB health: FAIL (%v)", err)
				return err
			}
			color.Green("DB health: OK (%s)", a.DB.Dialect)

			counts, err := a.Courses.Counts(ctx, owner)
			if err != nil {
				return err
			}
			uploads, err := a.Uploads.List(ctx, owner)
			if err != nil {
				return err
			}
			fmt.Printf("owner %s\n", owner)
			fmt.Printf("- uploads: %d\n", len(uploads))
			fmt.Printf("- courses: %d\n", counts.Courses)
			fmt.Printf("- sessions: %d\n", counts.Sessions)
			fmt.Printf("- exam dates: %d\n", counts.ExamDates)
			fmt.Printf("- instructors: %d\n", counts.Instructors)
			return nil
		},
	}
}
