package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/studysift/internal/calendar"
)

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return &t, nil
}

func newExportCmd() *cobra.Command {
	var (
		out     string
		fromStr string
		toStr   string
		ics     bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored courses to an XLSX workbook or an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			from, err := parseDate(fromStr)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			to, err := parseDate(toStr)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
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

			var data []byte
			if ics {
				cal, err := a.Courses.ListCalendar(ctx, owner)
				if err != nil {
					return err
				}
				data = []byte(calendar.BuildICS(cal, time.Now()))
				if out == "" {
					out = "fechas.ics"
				}
			} else {
				data, err = a.Export.ExportCoursesXLSX(ctx, owner, from, to)
				if err != nil {
					return err
				}
				if out == "" {
					out = "asignaturas.xlsx"
				}
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			color.Green("wrote %s (%d bytes)", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path")
	cmd.Flags().StringVar(&fromStr, "from", "", "only export dates on or after YYYY-MM-DD")
	cmd.Flags().StringVar(&toStr, "to", "", "only export dates on or before YYYY-MM-DD")
	cmd.Flags().BoolVar(&ics, "ics", false, "write an iCalendar file of exam dates instead of XLSX")
	return cmd
}
