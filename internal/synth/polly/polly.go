// Package polly implements synth.Service on Amazon Polly asynchronous
// speech synthesis tasks. Polly writes finished audio to S3 under the
// requested key prefix and reports the object URI on the task.
package polly

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/jackzampolin/chaptercast/internal/synth"
)

// Name is the backend identifier.
const Name = "polly"

// API is the subset of the Polly client used by Service.
type API interface {
	StartSpeechSynthesisTask(ctx context.Context, params *polly.StartSpeechSynthesisTaskInput, optFns ...func(*polly.Options)) (*polly.StartSpeechSynthesisTaskOutput, error)
	GetSpeechSynthesisTask(ctx context.Context, params *polly.GetSpeechSynthesisTaskInput, optFns ...func(*polly.Options)) (*polly.GetSpeechSynthesisTaskOutput, error)
}

// Service submits and tracks Polly synthesis tasks.
type Service struct {
	client API
}

// New creates a Polly-backed synthesis service.
func New(client API) *Service {
	return &Service{client: client}
}

// Name returns the backend identifier.
func (s *Service) Name() string {
	return Name
}

// Submit starts an asynchronous synthesis task. Polly names the output
// object {KeyPrefix}{TaskId}.{format} itself.
func (s *Service) Submit(ctx context.Context, req synth.SubmitRequest) (string, error) {
	textType := types.TextTypeSsml
	if req.TextType == synth.TextTypeText {
		textType = types.TextTypeText
	}

	in := &polly.StartSpeechSynthesisTaskInput{
		Text:               aws.String(req.Text),
		TextType:           textType,
		OutputFormat:       types.OutputFormat(req.Format),
		OutputS3BucketName: aws.String(req.Bucket),
		VoiceId:            types.VoiceId(req.Voice),
	}
	if req.KeyPrefix != "" {
		in.OutputS3KeyPrefix = aws.String(req.KeyPrefix)
	}
	if req.Engine != "" {
		in.Engine = types.Engine(req.Engine)
	}
	if req.Language != "" {
		in.LanguageCode = types.LanguageCode(req.Language)
	}

	out, err := s.client.StartSpeechSynthesisTask(ctx, in)
	if err != nil {
		return "", describe("start speech synthesis task", err)
	}
	if out == nil || out.SynthesisTask == nil || aws.ToString(out.SynthesisTask.TaskId) == "" {
		return "", fmt.Errorf("polly returned no task id")
	}
	return aws.ToString(out.SynthesisTask.TaskId), nil
}

// Status returns the task snapshot. Service-side and transport errors are
// reported as transient so the task is checked again next round.
func (s *Service) Status(ctx context.Context, taskID string) (*synth.Task, error) {
	out, err := s.client.GetSpeechSynthesisTask(ctx, &polly.GetSpeechSynthesisTaskInput{
		TaskId: aws.String(taskID),
	})
	if err != nil {
		if isServiceError(err) {
			return nil, fmt.Errorf("%w: %w", synth.ErrTransient, describe("get speech synthesis task", err))
		}
		return nil, describe("get speech synthesis task", err)
	}
	if out == nil || out.SynthesisTask == nil {
		return nil, fmt.Errorf("polly returned no task for %s", taskID)
	}

	task := out.SynthesisTask
	raw := string(task.TaskStatus)
	return &synth.Task{
		ID:        taskID,
		State:     mapState(task.TaskStatus),
		RawState:  raw,
		OutputURI: aws.ToString(task.OutputUri),
		Reason:    aws.ToString(task.TaskStatusReason),
	}, nil
}

func mapState(s types.TaskStatus) synth.State {
	switch s {
	case types.TaskStatusScheduled:
		return synth.StateScheduled
	case types.TaskStatusInProgress:
		return synth.StateInProgress
	case types.TaskStatusCompleted:
		return synth.StateCompleted
	case types.TaskStatusFailed:
		return synth.StateFailed
	default:
		return synth.StateUnknown
	}
}

// isServiceError reports whether err came back from the Polly API or the
// transport rather than from the caller.
func isServiceError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return true
	}
	var sendErr *smithyhttp.RequestSendError
	return errors.As(err, &sendErr)
}

func describe(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("polly %s failed: %s - %s: %w", op, apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
	}
	return fmt.Errorf("polly %s failed: %w", op, err)
}

var _ synth.Service = (*Service)(nil)
