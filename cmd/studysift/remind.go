package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRemindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Send reminders for exam dates due tomorrow",
		Long:  "Send one e-mail per exam date falling tomorrow to the owner's configured recipient. Meant to run daily from cron.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.NewReminders()
			if err != nil {
				return err
			}
			rep, sendErr := svc.SendDueTomorrow(ctx)
			if rep.Found == 0 && sendErr == nil {
				color.Yellow("no dates due on %s", rep.Date)
				return nil
			}
			fmt.Printf("%s: %d found, %d sent, %d skipped, %d failed\n", rep.Date, rep.Found, rep.Sent, rep.Skipped, rep.Failed)
			return sendErr
		},
	}
}
