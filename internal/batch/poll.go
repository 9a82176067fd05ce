package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/chaptercast/internal/synth"
)

// ReasonMissingOutputLocation is the failure reason for a task that
// completed without reporting where its audio went.
const ReasonMissingOutputLocation = "missing output location"

var errStillPending = errors.New("tasks still pending")

// PollResult holds the outcome of the polling phase. Each job appears in
// exactly one list.
type PollResult struct {
	Completed []*Job
	Failed    []*Job
	// Unresolved jobs were still in the working set when polling stopped.
	// Their status is TimedOut, or StatusUnknown if the service last
	// reported a state we do not recognize.
	Unresolved []*Job
	Rounds     int
	// Retried is the number of status checks that failed transiently.
	Retried int
}

// Poller checks job status until every job is terminal or the deadline passes.
type Poller struct {
	svc    synth.Service
	cfg    Config
	logger *slog.Logger
}

// NewPoller creates a Poller.
func NewPoller(svc synth.Service, cfg Config) *Poller {
	return &Poller{svc: svc, cfg: cfg, logger: cfg.logger()}
}

// Poll runs poll rounds over jobs, sleeping cfg.PollInterval between
// rounds, until the working set is empty or deadline passes. A zero
// deadline means now plus cfg.MaxWait.
func (p *Poller) Poll(ctx context.Context, jobs []*Job, deadline time.Time) *PollResult {
	result := &PollResult{}
	if deadline.IsZero() {
		deadline = time.Now().Add(p.cfg.MaxWait)
	}

	pending := make([]*Job, 0, len(jobs))
	for _, job := range jobs {
		if !job.Status.Terminal() {
			pending = append(pending, job)
		}
	}
	if len(pending) == 0 {
		return result
	}

	p.logger.Info("waiting for synthesis tasks",
		"tasks", len(pending),
		"interval", p.cfg.PollInterval,
		"deadline", deadline.Format(time.RFC3339))

	pollCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	err := retry.Do(
		func() error {
			result.Rounds++
			p.logger.Info("checking task status", "round", result.Rounds, "remaining", len(pending))
			pending = p.round(ctx, pending, result)
			if len(pending) > 0 {
				return errStillPending
			}
			return nil
		},
		retry.Context(pollCtx),
		retry.Attempts(0),
		retry.Delay(p.cfg.PollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil && len(pending) == 0 {
		p.logger.Debug("poll loop ended with error after resolving all tasks", "error", err)
	}

	for _, job := range pending {
		p.markUnresolved(job, deadline)
		result.Unresolved = append(result.Unresolved, job)
	}
	if len(result.Unresolved) > 0 {
		p.logger.Error("synthesis tasks did not finish before the deadline",
			"unresolved", len(result.Unresolved), "max_wait", p.cfg.MaxWait)
	}

	return result
}

// round checks every pending job once and returns the jobs still pending.
func (p *Poller) round(ctx context.Context, pending []*Job, result *PollResult) []*Job {
	still := make([]*Job, 0, len(pending))

	for i, job := range pending {
		if ctx.Err() != nil {
			still = append(still, pending[i:]...)
			break
		}

		task, err := p.svc.Status(ctx, job.ID)
		if err != nil {
			if synth.IsTransient(err) {
				p.logger.Warn("error checking task status, retrying next round",
					"chapter", job.Chapter, "job_id", job.ID, "error", err)
				job.lastErr = err
				job.Retried++
				job.LastTransient = &Error{
					Kind:    KindTransientStatus,
					Chapter: job.Chapter,
					JobID:   job.ID,
					Detail:  fmt.Sprintf("status check retried %d time(s)", job.Retried),
					Err:     err,
				}
				result.Retried++
				still = append(still, job)
				continue
			}
			p.logger.Error("unexpected error checking task status",
				"chapter", job.Chapter, "job_id", job.ID, "error", err)
			p.fail(job, &Error{
				Kind:    KindUnexpectedStatus,
				Chapter: job.Chapter,
				JobID:   job.ID,
				Detail:  "unexpected error during status check",
				Err:     err,
			})
			result.Failed = append(result.Failed, job)
			continue
		}

		job.LastState = task.RawState
		if job.LastState == "" {
			job.LastState = string(task.State)
		}
		job.lastErr = nil

		switch task.State {
		case synth.StateCompleted:
			if task.OutputURI == "" {
				p.logger.Error("task completed without output location", "chapter", job.Chapter, "job_id", job.ID)
				p.fail(job, &Error{
					Kind:    KindOutputLocationMissing,
					Chapter: job.Chapter,
					JobID:   job.ID,
					Detail:  ReasonMissingOutputLocation,
				})
				result.Failed = append(result.Failed, job)
				continue
			}
			p.logger.Info("task completed", "chapter", job.Chapter, "job_id", job.ID)
			job.Status = StatusCompleted
			job.OutputURI = task.OutputURI
			result.Completed = append(result.Completed, job)

		case synth.StateFailed:
			reason := task.Reason
			if reason == "" {
				reason = "unknown reason"
			}
			p.logger.Error("task failed", "chapter", job.Chapter, "job_id", job.ID, "reason", reason)
			p.fail(job, &Error{
				Kind:    KindTaskFailed,
				Chapter: job.Chapter,
				JobID:   job.ID,
				Detail:  reason,
			})
			result.Failed = append(result.Failed, job)

		case synth.StateScheduled, synth.StateInProgress:
			job.Status = statusFromState(task.State)
			still = append(still, job)

		default:
			p.logger.Warn("unknown task status, still waiting",
				"chapter", job.Chapter, "job_id", job.ID, "status", job.LastState)
			job.Status = StatusUnknown
			still = append(still, job)
		}
	}

	return still
}

func (p *Poller) fail(job *Job, err *Error) {
	job.Status = StatusFailed
	job.FailureReason = err.Message()
	job.Err = err
}

func (p *Poller) markUnresolved(job *Job, deadline time.Time) {
	detail := fmt.Sprintf("not finished by %s", deadline.Format(time.RFC3339))
	if job.Status == StatusUnknown {
		detail += fmt.Sprintf(" (last reported status %q)", job.LastState)
	} else {
		job.Status = StatusTimedOut
	}
	job.Err = &Error{
		Kind:    KindTaskTimedOut,
		Chapter: job.Chapter,
		JobID:   job.ID,
		Detail:  detail,
		Err:     job.lastErr,
	}
}
