package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/chaptercast/internal/batch"
)

const (
	sheetSummary = "Summary"
	sheetFiles   = "Files"
	sheetErrors  = "Errors"
)

// SaveReport writes r to path, choosing the format from the extension:
// .xlsx, .json, or .yaml/.yml.
func SaveReport(path string, r *batch.Report) error {
	var write func(io.Writer) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		write = func(w io.Writer) error { return XLSX(w, r) }
	case ".json":
		write = func(w io.Writer) error { return Structured(w, FormatJSON, r) }
	case ".yaml", ".yml":
		write = func(w io.Writer) error { return Structured(w, FormatYAML, r) }
	default:
		return fmt.Errorf("unsupported report file extension %q (want .xlsx, .json or .yaml)", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return f.Close()
}

// XLSX writes r as a workbook with Summary, Files and Errors sheets.
func XLSX(w io.Writer, r *batch.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return err
	}
	for _, name := range []string{sheetFiles, sheetErrors} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	summary := [][]any{
		{"Run ID", r.RunID},
		{"Backend", r.Backend},
		{"Input file", r.InputFile},
		{"Output directory", r.OutputDir},
		{"Started", r.StartedAt},
		{"Finished", r.FinishedAt},
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
	if r.Pacing != nil {
		summary = append(summary,
			[]any{"Paced calls", r.Pacing.Calls},
			[]any{"Pacing wait", r.Pacing.Waited.String()})
	}
	if r.Fatal != "" {
		summary = append(summary, []any{"Fatal", r.Fatal})
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return err
	}

	files := [][]any{{"Chapter", "File"}}
	titles := make([]string, 0, len(r.Files))
	for title := range r.Files {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	for _, title := range titles {
		files = append(files, []any{title, r.Files[title]})
	}
	if err := writeRows(f, sheetFiles, files); err != nil {
		return err
	}

	errs := [][]any{{"Category", "Chapter", "Detail"}}
	for _, category := range r.Categories() {
		for _, title := range r.Titles(category) {
			errs = append(errs, []any{category, title, r.Errors[category][title]})
		}
	}
	if err := writeRows(f, sheetErrors, errs); err != nil {
		return err
	}

	_ = f.SetColWidth(sheetSummary, "A", "A", 26)
	_ = f.SetColWidth(sheetSummary, "B", "B", 48)
	_ = f.SetColWidth(sheetFiles, "A", "A", 28)
	_ = f.SetColWidth(sheetFiles, "B", "B", 60)
	_ = f.SetColWidth(sheetErrors, "A", "B", 18)
	_ = f.SetColWidth(sheetErrors, "C", "C", 80)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}
