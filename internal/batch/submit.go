package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/chaptercast/internal/chapters"
	"github.com/jackzampolin/chaptercast/internal/synth"
)

// SubmitResult holds the outcome of the submission phase.
type SubmitResult struct {
	// Jobs has one entry per chapter that submitted, in chapter order.
	Jobs []*Job
	// Failures maps chapter title to its submission error.
	Failures map[string]*Error
}

// Submitter starts one synthesis task per chapter.
type Submitter struct {
	svc    synth.Service
	cfg    Config
	logger *slog.Logger
}

// NewSubmitter creates a Submitter.
func NewSubmitter(svc synth.Service, cfg Config) *Submitter {
	return &Submitter{svc: svc, cfg: cfg, logger: cfg.logger()}
}

// Submit calls the service once per chapter. A failed chapter is recorded
// and the remaining chapters are still submitted.
func (s *Submitter) Submit(ctx context.Context, chs []chapters.Chapter) *SubmitResult {
	result := &SubmitResult{
		Jobs:     make([]*Job, 0, len(chs)),
		Failures: make(map[string]*Error),
	}

	s.logger.Info("starting synthesis tasks",
		"chapters", len(chs),
		"backend", s.svc.Name(),
		"voice", s.cfg.Voice,
		"engine", s.cfg.Engine,
		"output", fmt.Sprintf("%s/%s", s.cfg.Bucket, s.cfg.KeyPrefix))

	for _, ch := range chs {
		id, err := s.svc.Submit(ctx, synth.SubmitRequest{
			Text:      ch.Markup,
			TextType:  synth.TextTypeSSML,
			Format:    s.cfg.Format,
			Voice:     s.cfg.Voice,
			Engine:    s.cfg.Engine,
			Language:  s.cfg.Language,
			Bucket:    s.cfg.Bucket,
			KeyPrefix: s.cfg.KeyPrefix,
		})
		if err == nil && id == "" {
			err = fmt.Errorf("service returned an empty task id")
		}
		if err != nil {
			s.logger.Error("failed to start synthesis task", "chapter", ch.Title, "error", err)
			result.Failures[ch.Title] = &Error{Kind: KindSubmission, Chapter: ch.Title, Err: err}
			continue
		}

		s.logger.Info("started synthesis task", "chapter", ch.Title, "job_id", id)
		result.Jobs = append(result.Jobs, &Job{
			ID:      id,
			Chapter: ch.Title,
			Status:  StatusPending,
		})
	}

	if len(result.Failures) > 0 {
		s.logger.Warn("some synthesis tasks failed to start",
			"started", len(result.Jobs), "failed", len(result.Failures))
	}
	return result
}
