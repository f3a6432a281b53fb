package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newTextCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "text <file>",
		Short: "Register a PDF or PPTX and print its extracted text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			reg, err := a.Ingestor.IngestPath(ctx, owner, args[0])
			if err != nil {
				return err
			}
			res, err := a.Text.Run(ctx, owner, reg.UploadID)
			if err != nil {
				return err
			}
			if !quiet {
				color.Cyan("upload %s: %d pages via %s in %s", reg.UploadID, res.Pages, res.Method, res.Duration)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the text")
	return cmd
}
