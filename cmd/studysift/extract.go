package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/studysift/constants"
	"github.com/joseph-ayodele/studysift/internal/pipeline"
)

type extractFlags struct {
	mode         string
	summaryModel string
	jsonModel    string
	materialize  bool
}

func (f extractFlags) options() (pipeline.Options, error) {
	mode, ok := constants.ParseModelMode(f.mode)
	if !ok {
		return pipeline.Options{}, fmt.Errorf("--mode must be local or api, got %q", f.mode)
	}
	return pipeline.Options{Mode: mode, SummaryModel: f.summaryModel, JSONModel: f.jsonModel}, nil
}

func (f *extractFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "mode", "local", "generation path: local (two-stage) or api (single-stage)")
	cmd.Flags().StringVar(&f.summaryModel, "summary-model", "", "local model for the summary stage")
	cmd.Flags().StringVar(&f.jsonModel, "json-model", "", "local model for the structuring stage")
	cmd.Flags().BoolVar(&f.materialize, "materialize", true, "store courses, sessions, dates and instructors")
}

func newExtractCmd() *cobra.Command {
	var f extractFlags
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract the structured schedule from one document and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := f.options()
			if err != nil {
				return err
			}
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
			res, err := a.Processor.ProcessUploadWith(ctx, owner, reg.UploadID, opts)
			if err != nil {
				return err
			}
			if res.SchemaWarning != "" {
				color.Yellow("schema warning: %s", res.SchemaWarning)
			}

			var pretty any
			if err := json.Unmarshal(res.Data, &pretty); err != nil {
				return err
			}
			out, err := json.MarshalIndent(pretty, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if f.materialize {
				sum, err := a.Materializer.Materialize(ctx, owner, res.Data)
				if err != nil {
					return err
				}
				color.Green("stored %d course(s): %d sessions, %d dates, %d instructors created",
					len(sum.CourseIDs), sum.SessionsCreated, sum.ExamDatesCreated, sum.InstructorsCreated)
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
