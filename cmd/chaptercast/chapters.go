package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/chaptercast/internal/chapters"
	"github.com/jackzampolin/chaptercast/internal/config"
	"github.com/jackzampolin/chaptercast/internal/render"
)

var chaptersCmd = &cobra.Command{
	Use:   "chapters [file]",
	Short: "Show how the input splits into chapters without synthesizing",
	Long: `Split a book the same way "run" does and list the chapters found.
Nothing is sent to the speech service and the output directory is untouched.

The file argument overrides input_file from the configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger := config.SetupLogging(cfg.Logging, os.Stderr)

		input := cfg.InputFile
		if len(args) == 1 {
			input = args[0]
		}
		if input == "" {
			return fmt.Errorf("no input file: pass one or set input_file")
		}

		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}

		splitter, err := chapters.NewSplitter(cfg.SplitterOptions(logger))
		if err != nil {
			return err
		}
		chs, err := splitter.Split(string(data))
		if err != nil {
			return err
		}
		logger.Info("split input", "file", input, "marker", splitter.Marker(), "chapters", len(chs))
		return render.Chapters(cmd.OutOrStdout(), format, chs)
	},
}
