// Package batch orchestrates a chaptercast run: submit one synthesis job
// per chapter, poll all jobs to completion under a global deadline, then
// download finished audio and delete the remote copies.
//
// The three phases run strictly one after another. Failures are isolated
// per chapter and collected into a Report; only setup errors end a run
// early.
package batch

import (
	"log/slog"
	"time"

	"github.com/jackzampolin/chaptercast/internal/synth"
)

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	// StatusUnknown means the service reported a state we do not recognize.
	StatusUnknown Status = "status_unknown"
)

// Terminal reports whether the status is final as far as the service is concerned.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job tracks one chapter's synthesis task. Only the Poller changes it.
type Job struct {
	ID            string
	Chapter       string
	Status        Status
	OutputURI     string
	FailureReason string
	// LastState is the raw state string from the most recent status check.
	LastState string
	// Err is set when Status is Failed, TimedOut or StatusUnknown.
	Err *Error
	// Retried counts status checks that failed transiently. LastTransient
	// keeps the latest of them even after the job resolves.
	Retried       int
	LastTransient *Error

	lastErr error // transient error from the latest check, cleared on success
}

// Config is the immutable run configuration shared by every phase.
type Config struct {
	Bucket    string
	KeyPrefix string
	Voice     string
	Format    string
	Engine    string
	Language  string

	PollInterval time.Duration
	MaxWait      time.Duration

	Logger *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func statusFromState(s synth.State) Status {
	switch s {
	case synth.StateScheduled:
		return StatusPending
	case synth.StateInProgress:
		return StatusRunning
	case synth.StateCompleted:
		return StatusCompleted
	case synth.StateFailed:
		return StatusFailed
	default:
		return StatusUnknown
	}
}
