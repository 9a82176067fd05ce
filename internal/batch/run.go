package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/chaptercast/internal/chapters"
	"github.com/jackzampolin/chaptercast/internal/outdir"
	"github.com/jackzampolin/chaptercast/internal/storage"
	"github.com/jackzampolin/chaptercast/internal/synth"
)

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	InputFile string
	Splitter  *chapters.Splitter
	Dir       *outdir.Dir
	Service   synth.Service
	Store     storage.ObjectStore
	Batch     Config

	// Limiter, if set, is the limiter pacing Service; its counters are
	// copied into the report.
	Limiter *synth.RateLimiter

	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner executes one book-to-audio run.
type Runner struct {
	cfg    RunnerConfig
	runID  string
	now    func() time.Time
	logger *slog.Logger
}

// NewRunner validates cfg and creates a Runner with a fresh run id.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.InputFile == "" {
		return nil, fmt.Errorf("input file is required")
	}
	if cfg.Splitter == nil {
		return nil, fmt.Errorf("splitter is required")
	}
	if cfg.Dir == nil {
		return nil, fmt.Errorf("output directory is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("synthesis service is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cfg.Batch.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	runID := uuid.New().String()
	logger := cfg.Batch.logger().With("run_id", runID)
	cfg.Batch.Logger = logger

	return &Runner{cfg: cfg, runID: runID, now: now, logger: logger}, nil
}

// RunID returns the id stamped on this run's logs and report.
func (r *Runner) RunID() string {
	return r.runID
}

// Run executes the phases in order. The returned report is never nil and
// reflects everything done before a fatal error, which is always a
// KindSetup *Error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     r.runID,
		Backend:   r.cfg.Service.Name(),
		InputFile: r.cfg.InputFile,
		OutputDir: r.cfg.Dir.Path(),
		StartedAt: r.now(),
	}

	err := r.run(ctx, report)
	report.FinishedAt = r.now()
	if r.cfg.Limiter != nil {
		stats := r.cfg.Limiter.Stats()
		report.Pacing = &stats
	}
	if err != nil {
		report.Fatal = err.Error()
		r.logger.Error("run aborted", "error", err)
		return report, err
	}

	attrs := []any{
		"downloaded", report.DownloadsSucceeded,
		"errors", report.ErrorCount(),
		"elapsed", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	}
	if report.Pacing != nil {
		attrs = append(attrs, "paced_calls", report.Pacing.Calls, "pacing_wait", report.Pacing.Waited.Round(time.Millisecond))
	}
	r.logger.Info("run finished", attrs...)
	return report, nil
}

func (r *Runner) run(ctx context.Context, report *Report) error {
	text, err := r.readInput()
	if err != nil {
		return err
	}

	chs, err := r.cfg.Splitter.Split(text)
	if err != nil {
		return setupError("failed to split input into chapters", err)
	}
	report.ChaptersFound = len(chs)
	r.logger.Info("split input", "file", r.cfg.InputFile, "marker", r.cfg.Splitter.Marker(), "chapters", len(chs))

	if r.cfg.Dir.Exists() {
		r.logger.Warn("replacing existing output directory", "dir", r.cfg.Dir.Path())
	}
	if err := r.cfg.Dir.Prepare(); err != nil {
		return setupError("failed to prepare output directory", err)
	}
	r.logger.Info("prepared output directory", "dir", r.cfg.Dir.Path())

	deadline := r.now().Add(r.cfg.Batch.MaxWait)

	submitted := NewSubmitter(r.cfg.Service, r.cfg.Batch).Submit(ctx, chs)
	report.applySubmit(submitted)
	if len(submitted.Jobs) == 0 {
		return setupError("no synthesis tasks were started", nil)
	}

	polled := NewPoller(r.cfg.Service, r.cfg.Batch).Poll(ctx, submitted.Jobs, deadline)
	report.applyPoll(polled)
	if len(polled.Completed) == 0 {
		return setupError("no synthesis tasks completed successfully", nil)
	}

	retrieved := NewRetriever(r.cfg.Store, r.cfg.Dir, r.cfg.Batch).Retrieve(ctx, polled.Completed)
	report.applyRetrieve(retrieved)
	return nil
}

func (r *Runner) readInput() (string, error) {
	data, err := os.ReadFile(r.cfg.InputFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", setupError(fmt.Sprintf("input file %s not found", r.cfg.InputFile), err)
		}
		return "", setupError(fmt.Sprintf("failed to read input file %s", r.cfg.InputFile), err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", setupError(fmt.Sprintf("input file %s is empty", r.cfg.InputFile), chapters.ErrEmptyText)
	}
	return string(data), nil
}
