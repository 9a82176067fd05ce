package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/chaptercast/internal/render"
	"github.com/jackzampolin/chaptercast/version"
)

var (
	cfgFile      string
	outputFormat string

	format render.Format
)

var rootCmd = &cobra.Command{
	Use:   "chaptercast",
	Short: "Turn a book into per-chapter audio files with a cloud speech service",
	Long: `chaptercast splits a plain-text book into chapters, submits one
asynchronous speech synthesis task per chapter, waits for the tasks to
finish, then downloads each chapter's audio and removes the remote copy.

Run options come from the configuration file (see "chaptercast config init")
and CHAPTERCAST_* environment variables.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./chaptercast.yaml or ~/.chaptercast/chaptercast.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "text", "output format: text, yaml or json",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		f, err := render.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		format = f
		return nil
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chaptersCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
