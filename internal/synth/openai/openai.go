// Package openai implements synth.Service on the OpenAI speech API.
//
// OpenAI speech generation is synchronous, so Submit generates the audio
// immediately and stages it in a local object store under the requested
// bucket and key prefix. Status then reports the staged task, which keeps
// the submit/poll/download flow identical to the asynchronous backends.
package openai

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jackzampolin/chaptercast/internal/storage/localfs"
	"github.com/jackzampolin/chaptercast/internal/synth"
)

const (
	Name         = "openai"
	defaultModel = openai.SpeechModelTTS1HD
	defaultVoice = "onyx"
)

// Config holds configuration for the OpenAI speech backend.
type Config struct {
	APIKey     string
	Model      string        // "tts-1-hd" (default), "tts-1", "gpt-4o-mini-tts"
	Voice      string        // "onyx" (default); overrides SubmitRequest.Voice
	Speed      float64       // 0.25-4.0
	MaxRetries int           // SDK transport retries
	Timeout    time.Duration // HTTP timeout
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)

	// Store receives the generated audio.
	Store  *localfs.Store
	Logger *slog.Logger
}

// Service generates speech with OpenAI and stages it in a local store.
type Service struct {
	client openai.Client
	model  string
	voice  string
	speed  float64
	store  *localfs.Store
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[string]synth.Task
}

// New creates an OpenAI speech backend.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("staging store is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultVoice
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Service{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		voice:  cfg.Voice,
		speed:  cfg.Speed,
		store:  cfg.Store,
		logger: cfg.Logger,
		tasks:  make(map[string]synth.Task),
	}, nil
}

// Name returns the backend identifier.
func (s *Service) Name() string {
	return Name
}

// Submit generates audio for req and stages it as
// {Bucket}/{KeyPrefix}{taskID}.{ext}. Speech API failures produce a failed
// task rather than a submit error, mirroring how asynchronous backends
// report synthesis failures.
func (s *Service) Submit(ctx context.Context, req synth.SubmitRequest) (string, error) {
	text := req.Text
	if req.TextType == synth.TextTypeSSML {
		text = PlainText(text)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("text is required")
	}
	if req.Bucket == "" {
		return "", fmt.Errorf("bucket is required")
	}

	id := uuid.New().String()
	format := normalizeFormat(req.Format)

	audio, err := s.generate(ctx, text, format)
	if err != nil {
		s.logger.Warn("openai speech generation failed", "task_id", id, "error", err)
		s.record(synth.Task{ID: id, State: synth.StateFailed, RawState: string(synth.StateFailed), Reason: err.Error()})
		return id, nil
	}

	key := req.KeyPrefix + id + "." + resultExtension(format)
	if err := s.store.Put(req.Bucket, key, audio); err != nil {
		return "", fmt.Errorf("failed to stage audio: %w", err)
	}

	s.record(synth.Task{
		ID:        id,
		State:     synth.StateCompleted,
		RawState:  string(synth.StateCompleted),
		OutputURI: localfs.URI(req.Bucket, key),
	})
	return id, nil
}

// Status returns the staged task.
func (s *Service) Status(_ context.Context, taskID string) (*synth.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("unknown task %q", taskID)
	}
	return &task, nil
}

func (s *Service) record(task synth.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
}

func (s *Service) generate(ctx context.Context, text string, format openai.AudioSpeechNewParamsResponseFormat) ([]byte, error) {
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: format,
		Speed:          openai.Float(s.speed),
	})
	if err != nil {
		return nil, mapError(err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading openai audio response: %w", err)
	}
	return audio, nil
}

var (
	breakTag = regexp.MustCompile(`<break[^>]*/>`)
	anyTag   = regexp.MustCompile(`<[^>]+>`)
)

// PlainText converts chapter SSML to plain text: breaks become paragraph
// gaps, other tags are dropped and entities are unescaped.
func PlainText(ssml string) string {
	text := breakTag.ReplaceAllString(ssml, "\n\n")
	text = anyTag.ReplaceAllString(text, "")
	return html.UnescapeString(text)
}

func normalizeFormat(format string) openai.AudioSpeechNewParamsResponseFormat {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "mp3":
		return openai.AudioSpeechNewParamsResponseFormatMP3
	case "opus", "ogg_vorbis":
		return openai.AudioSpeechNewParamsResponseFormatOpus
	case "aac":
		return openai.AudioSpeechNewParamsResponseFormatAAC
	case "flac":
		return openai.AudioSpeechNewParamsResponseFormatFLAC
	case "wav":
		return openai.AudioSpeechNewParamsResponseFormatWAV
	case "pcm":
		return openai.AudioSpeechNewParamsResponseFormatPCM
	default:
		return openai.AudioSpeechNewParamsResponseFormatMP3
	}
}

func resultExtension(format openai.AudioSpeechNewParamsResponseFormat) string {
	switch format {
	case openai.AudioSpeechNewParamsResponseFormatOpus:
		return "opus"
	case openai.AudioSpeechNewParamsResponseFormatAAC:
		return "aac"
	case openai.AudioSpeechNewParamsResponseFormatFLAC:
		return "flac"
	case openai.AudioSpeechNewParamsResponseFormatWAV:
		return "wav"
	case openai.AudioSpeechNewParamsResponseFormatPCM:
		return "pcm"
	default:
		return "mp3"
	}
}

func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("OpenAI TTS error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("OpenAI TTS error (status %d)", apiErr.StatusCode)
	}
	return err
}

var _ synth.Service = (*Service)(nil)
