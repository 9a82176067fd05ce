package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	pollysdk "github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jackzampolin/chaptercast/internal/config"
	"github.com/jackzampolin/chaptercast/internal/outdir"
	"github.com/jackzampolin/chaptercast/internal/storage"
	"github.com/jackzampolin/chaptercast/internal/storage/localfs"
	"github.com/jackzampolin/chaptercast/internal/storage/s3store"
	"github.com/jackzampolin/chaptercast/internal/synth"
	openaisynth "github.com/jackzampolin/chaptercast/internal/synth/openai"
	"github.com/jackzampolin/chaptercast/internal/synth/polly"
)

// loadConfig reads, normalizes and validates configuration, and installs
// the configured logger. Logs go to stderr so reports on stdout stay clean.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger := config.SetupLogging(cfg.Logging, os.Stderr)
	cfg.Normalize(logger)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, logger, nil
}

// backend is the synthesis service, the object store it writes to and the
// limiter pacing calls to the service. limiter is nil when pacing is off.
type backend struct {
	svc     synth.Service
	store   storage.ObjectStore
	limiter *synth.RateLimiter
}

// newBackend builds the configured backend.
func newBackend(ctx context.Context, cfg *config.Config, dir *outdir.Dir, logger *slog.Logger) (*backend, error) {
	var (
		svc   synth.Service
		store storage.ObjectStore
	)

	switch cfg.Backend {
	case config.BackendPolly:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		s3Store, err := s3store.New(s3store.Config{
			Client: s3.NewFromConfig(awsCfg),
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		svc = polly.New(pollysdk.NewFromConfig(awsCfg))
		store = s3Store

	case config.BackendOpenAI:
		staging := localfs.New(cfg.StagingDir(dir.Path()))
		logger.Info("staging synthesized audio locally", "dir", staging.Root())
		oa, err := openaisynth.New(openaisynth.Config{
			APIKey: cfg.OpenAI.APIKey,
			Model:  cfg.OpenAI.Model,
			Voice:  cfg.OpenAI.Voice,
			Store:  staging,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		svc = oa
		store = staging

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	limiter := synth.NewRateLimiter(cfg.Synthesis.RequestsPerMinute)
	return &backend{
		svc:     synth.WithRateLimit(svc, limiter),
		store:   store,
		limiter: limiter,
	}, nil
}
