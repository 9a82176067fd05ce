package batch

import (
	"sort"
	"time"

	"github.com/jackzampolin/chaptercast/internal/synth"
)

// Report categories used as keys of Report.Errors.
const (
	CategorySubmission = "submission"
	CategoryTask       = "task"
	CategoryTimeout    = "timeout"
	CategoryTransient  = "transient"
	CategoryDownload   = "download"
	CategoryDeletion   = "deletion"
)

// Report summarizes a run. It is derived from the phase results and never
// edited on its own.
type Report struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Backend    string    `json:"backend" yaml:"backend"`
	InputFile  string    `json:"input_file" yaml:"input_file"`
	OutputDir  string    `json:"output_dir" yaml:"output_dir"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	ChaptersFound     int `json:"chapters_found" yaml:"chapters_found"`
	JobsSubmitted     int `json:"jobs_submitted" yaml:"jobs_submitted"`
	SubmissionsFailed int `json:"submissions_failed" yaml:"submissions_failed"`

	JobsCompleted     int `json:"jobs_completed" yaml:"jobs_completed"`
	JobsFailed        int `json:"jobs_failed" yaml:"jobs_failed"`
	JobsTimedOut      int `json:"jobs_timed_out" yaml:"jobs_timed_out"`
	JobsStatusUnknown int `json:"jobs_status_unknown" yaml:"jobs_status_unknown"`
	PollRounds        int `json:"poll_rounds" yaml:"poll_rounds"`
	StatusRetries     int `json:"status_retries" yaml:"status_retries"`

	DownloadsSucceeded int `json:"downloads_succeeded" yaml:"downloads_succeeded"`
	DownloadsFailed    int `json:"downloads_failed" yaml:"downloads_failed"`
	DeletionsAttempted int `json:"deletions_attempted" yaml:"deletions_attempted"`
	DeletionsSucceeded int `json:"deletions_succeeded" yaml:"deletions_succeeded"`
	DeletionsFailed    int `json:"deletions_failed" yaml:"deletions_failed"`

	// Files maps chapter title to downloaded file.
	Files map[string]string `json:"files,omitempty" yaml:"files,omitempty"`

	// Errors maps category to chapter title to error detail.
	Errors map[string]map[string]string `json:"errors,omitempty" yaml:"errors,omitempty"`

	// Pacing holds rate limiter counters when calls were paced.
	Pacing *synth.RateLimiterStats `json:"pacing,omitempty" yaml:"pacing,omitempty"`

	// Fatal is the error that ended the run early, if any.
	Fatal string `json:"fatal,omitempty" yaml:"fatal,omitempty"`
}

// ErrorCount returns the number of per-chapter errors across categories.
func (r *Report) ErrorCount() int {
	n := 0
	for _, byTitle := range r.Errors {
		n += len(byTitle)
	}
	return n
}

// Categories returns the error categories present, in phase order.
func (r *Report) Categories() []string {
	order := []string{CategorySubmission, CategoryTransient, CategoryTask, CategoryTimeout, CategoryDownload, CategoryDeletion}
	out := make([]string, 0, len(order))
	for _, c := range order {
		if len(r.Errors[c]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// Titles returns the chapter titles with errors in category, sorted.
func (r *Report) Titles(category string) []string {
	titles := make([]string, 0, len(r.Errors[category]))
	for t := range r.Errors[category] {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	return titles
}

func (r *Report) addError(category string, e *Error) {
	if e == nil {
		return
	}
	if r.Errors == nil {
		r.Errors = make(map[string]map[string]string)
	}
	if r.Errors[category] == nil {
		r.Errors[category] = make(map[string]string)
	}
	msg := e.Message()
	if e.JobID != "" {
		msg += " (job " + e.JobID + ")"
	}
	r.Errors[category][e.Chapter] = msg
}

func (r *Report) applySubmit(res *SubmitResult) {
	r.JobsSubmitted = len(res.Jobs)
	r.SubmissionsFailed = len(res.Failures)
	for _, e := range res.Failures {
		r.addError(CategorySubmission, e)
	}
}

func (r *Report) applyPoll(res *PollResult) {
	r.PollRounds = res.Rounds
	r.StatusRetries = res.Retried
	r.JobsCompleted = len(res.Completed)
	r.JobsFailed = len(res.Failed)
	for _, job := range res.Failed {
		r.addError(CategoryTask, job.Err)
	}
	for _, job := range res.Unresolved {
		if job.Status == StatusUnknown {
			r.JobsStatusUnknown++
		} else {
			r.JobsTimedOut++
		}
		r.addError(CategoryTimeout, job.Err)
	}
	for _, list := range [][]*Job{res.Completed, res.Failed, res.Unresolved} {
		for _, job := range list {
			r.addError(CategoryTransient, job.LastTransient)
		}
	}
}

func (r *Report) applyRetrieve(res *RetrieveResult) {
	r.DownloadsSucceeded = len(res.Files)
	r.DownloadsFailed = len(res.DownloadErrors)
	r.DeletionsAttempted = res.DeletionsAttempted()
	r.DeletionsSucceeded = res.Deleted
	r.DeletionsFailed = len(res.DeletionErrors)
	if len(res.Files) > 0 {
		r.Files = make(map[string]string, len(res.Files))
		for title, path := range res.Files {
			r.Files[title] = path
		}
	}
	for _, e := range res.DownloadErrors {
		r.addError(CategoryDownload, e)
	}
	for _, e := range res.DeletionErrors {
		r.addError(CategoryDeletion, e)
	}
}
