package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func newBatchCmd() *cobra.Command {
	var (
		f          extractFlags
		workers    int
		out        string
		fromStr    string
		toStr      string
		skipHidden bool
	)
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Register every PDF and PPTX in a directory, extract them and export a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir := args[0]
			opts, err := f.options()
			if err != nil {
				return err
			}
			from, err := parseDate(fromStr)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			to, err := parseDate(toStr)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			if out == "" {
				out = filepath.Join(filepath.Dir(filepath.Clean(dir)), "asignaturas.xlsx")
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

			results, stats, err := a.Ingestor.IngestDirectory(ctx, owner, dir, skipHidden)
			if err != nil {
				return err
			}
			var ids []uuid.UUID
			for _, r := range results {
				if r.Err != "" {
					color.Red("skip %s: %s", r.SourcePath, r.Err)
					continue
				}
				ids = append(ids, r.UploadID)
			}
			color.Cyan("registered %d of %d matching files (%d already known)", stats.Succeeded, stats.Matched, stats.Deduplicated)

			bar := getProgressBar(len(ids), " Extracting")
			var processed, failed atomic.Int32
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(max(workers, 1))
			for _, id := range ids {
				g.Go(func() error {
					defer func() { _ = bar.Add(1) }()
					res, err := a.Processor.ProcessUploadWith(gctx, owner, id, opts)
					if err != nil {
						failed.Add(1)
						a.Logger.Error("batch.process.failed", "upload_id", id, "error", err)
						return nil
					}
					if f.materialize {
						if _, err := a.Materializer.Materialize(gctx, owner, res.Data); err != nil {
							failed.Add(1)
							a.Logger.Error("batch.materialize.failed", "upload_id", id, "error", err)
							return nil
						}
					}
					processed.Add(1)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			_ = bar.Finish()
			fmt.Fprintln(os.Stderr)

			xlsx, err := a.Export.ExportCoursesXLSX(ctx, owner, from, to)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, xlsx, 0o644); err != nil {
				return err
			}

			color.Green("Batch processing complete!")
			fmt.Printf("- Files registered: %d\n", len(ids))
			fmt.Printf("- Files processed: %d\n", processed.Load())
			fmt.Printf("- Failures: %d\n", failed.Load())
			fmt.Printf("- Output: %s\n", out)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().IntVarP(&workers, "workers", "w", 2, "documents processed in parallel")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output XLSX path (default: asignaturas.xlsx next to the directory)")
	cmd.Flags().StringVar(&fromStr, "from", "", "only export dates on or after YYYY-MM-DD")
	cmd.Flags().StringVar(&toStr, "to", "", "only export dates on or before YYYY-MM-DD")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "ignore dotfiles and dot-directories")
	return cmd
}
