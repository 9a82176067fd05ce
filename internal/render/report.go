package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/jackzampolin/chaptercast/internal/batch"
	"github.com/jackzampolin/chaptercast/internal/chapters"
)

// Report writes a run report in format.
func Report(w io.Writer, format Format, r *batch.Report) error {
	if IsStructured(format) {
		return Structured(w, format, r)
	}
	return reportText(w, r)
}

func reportText(w io.Writer, r *batch.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Run:\t%s (%s)\n", r.RunID, r.Backend)
	fmt.Fprintf(tw, "Input:\t%s\n", r.InputFile)
	fmt.Fprintf(tw, "Output:\t%s\n", r.OutputDir)
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		fmt.Fprintf(tw, "Elapsed:\t%s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	}
	fmt.Fprintln(tw)

	rows := []struct {
		label string
		value int
	}{
		{"Chapters found", r.ChaptersFound},
		{"Jobs submitted", r.JobsSubmitted},
		{"Submissions failed", r.SubmissionsFailed},
		{"Jobs completed", r.JobsCompleted},
		{"Jobs failed", r.JobsFailed},
		{"Jobs timed out", r.JobsTimedOut},
		{"Jobs with unknown status", r.JobsStatusUnknown},
		{"Status checks retried", r.StatusRetries},
		{"Downloads succeeded", r.DownloadsSucceeded},
		{"Downloads failed", r.DownloadsFailed},
		{"Deletions attempted", r.DeletionsAttempted},
		{"Deletions succeeded", r.DeletionsSucceeded},
		{"Deletions failed", r.DeletionsFailed},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s:\t%d\n", row.label, row.value)
	}

	if r.Pacing != nil {
		fmt.Fprintf(tw, "Paced calls:\t%d (waited %s)\n", r.Pacing.Calls, r.Pacing.Waited.Round(time.Millisecond))
	}

	for _, category := range r.Categories() {
		fmt.Fprintf(tw, "\n%s errors:\n", titleCase(category))
		for _, title := range r.Titles(category) {
			fmt.Fprintf(tw, "  %s\t%s\n", title, r.Errors[category][title])
		}
	}

	if r.Fatal != "" {
		fmt.Fprintf(tw, "\nFatal:\t%s\n", r.Fatal)
	}
	return tw.Flush()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ChapterSummary describes one chapter without its full text.
type ChapterSummary struct {
	Index   int    `json:"index" yaml:"index"`
	Title   string `json:"title" yaml:"title"`
	Chars   int    `json:"chars" yaml:"chars"`
	Preview string `json:"preview" yaml:"preview"`
}

const previewRunes = 60

// Summarize builds chapter summaries in order.
func Summarize(chs []chapters.Chapter) []ChapterSummary {
	out := make([]ChapterSummary, len(chs))
	for i, ch := range chs {
		out[i] = ChapterSummary{
			Index:   i + 1,
			Title:   ch.Title,
			Chars:   utf8.RuneCountInString(ch.Body),
			Preview: preview(ch.Body, previewRunes),
		}
	}
	return out
}

// Chapters writes the split result in format.
func Chapters(w io.Writer, format Format, chs []chapters.Chapter) error {
	summaries := Summarize(chs)
	if IsStructured(format) {
		return Structured(w, format, summaries)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTITLE\tCHARS\tPREVIEW")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", s.Index, s.Title, s.Chars, s.Preview)
	}
	fmt.Fprintf(tw, "\n%d chapters\n", len(summaries))
	return tw.Flush()
}

func preview(body string, n int) string {
	flat := strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(flat) <= n {
		return flat
	}
	runes := []rune(flat)
	return string(runes[:n-1]) + "…"
}
