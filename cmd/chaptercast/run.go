package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/chaptercast/internal/batch"
	"github.com/jackzampolin/chaptercast/internal/chapters"
	"github.com/jackzampolin/chaptercast/internal/outdir"
	"github.com/jackzampolin/chaptercast/internal/render"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Synthesize every chapter of the input book",
	Long: `Split the input file into chapters, start one speech synthesis task per
chapter, wait for all of them (up to polling.max_wait), then download the
finished audio into the output directory and delete the remote objects.

The output directory is removed and recreated before any task starts.
Failures of individual chapters are listed in the report; the command exits
non-zero only when nothing could be produced.

Examples:
  chaptercast run --config book.yaml
  CHAPTERCAST_INPUT_FILE=book.txt CHAPTERCAST_AWS_BUCKET=my-bucket chaptercast run
  chaptercast run -o json > report.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		splitter, err := chapters.NewSplitter(cfg.SplitterOptions(logger))
		if err != nil {
			return err
		}
		dir, err := outdir.New(cfg.OutputDir, cfg.InputFile)
		if err != nil {
			return err
		}
		be, err := newBackend(ctx, cfg, dir, logger)
		if err != nil {
			return err
		}

		runner, err := batch.NewRunner(batch.RunnerConfig{
			InputFile: cfg.InputFile,
			Splitter:  splitter,
			Dir:       dir,
			Service:   be.svc,
			Store:     be.store,
			Limiter:   be.limiter,
			Batch:     cfg.BatchConfig(logger),
		})
		if err != nil {
			return err
		}

		report, runErr := runner.Run(ctx)

		if err := render.Report(cmd.OutOrStdout(), format, report); err != nil {
			logger.Error("failed to print report", "error", err)
		}
		if cfg.Report.File != "" {
			if err := render.SaveReport(cfg.Report.File, report); err != nil {
				logger.Error("failed to save report", "path", cfg.Report.File, "error", err)
			} else {
				logger.Info("saved report", "path", cfg.Report.File)
			}
		}
		return runErr
	},
}
