// Package synth defines the contract chaptercast uses to talk to an
// asynchronous text-to-speech service.
//
// A Service accepts one synthesis task per chapter and reports its state
// when asked. Implementations live in subpackages (polly, openai) and are
// chosen by configuration.
package synth

import (
	"context"
	"errors"
)

// ErrTransient marks a status-check error that should be retried on the
// next poll round. Implementations wrap vendor errors with it:
//
//	return nil, fmt.Errorf("%w: %w", synth.ErrTransient, err)
var ErrTransient = errors.New("transient status error")

// TextType values accepted by SubmitRequest.
const (
	TextTypeSSML = "ssml"
	TextTypeText = "text"
)

// State is the remote state of a synthesis task.
type State string

const (
	StateScheduled  State = "scheduled"
	StateInProgress State = "inProgress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	// StateUnknown is reported when the service returns a state this
	// package does not recognize. Task.RawState carries the original value.
	StateUnknown State = "unknown"
)

// Terminal reports whether no further state changes are expected.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// SubmitRequest describes one synthesis task.
type SubmitRequest struct {
	Text      string
	TextType  string // "ssml" or "text"
	Format    string // "mp3", "ogg_vorbis", "pcm", ...
	Voice     string
	Engine    string
	Language  string
	Bucket    string // output bucket
	KeyPrefix string // output key prefix, ends with "/"
}

// Task is a snapshot of a synthesis task.
type Task struct {
	ID        string
	State     State
	RawState  string
	OutputURI string
	Reason    string
}

// Service starts synthesis tasks and reports on them.
type Service interface {
	// Name returns the backend identifier (e.g., "polly").
	Name() string

	// Submit starts a task and returns its id.
	Submit(ctx context.Context, req SubmitRequest) (string, error)

	// Status returns the current task snapshot. Errors wrapping
	// ErrTransient may be retried; any other error is final for the task.
	Status(ctx context.Context, taskID string) (*Task, error)
}

// IsTransient reports whether err is a retryable status error.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
