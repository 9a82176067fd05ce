package batch

import (
	"errors"
	"fmt"
)

// Kind classifies run errors. Only KindSetup aborts a run; every other kind
// is recorded against a chapter and processing continues.
type Kind int

const (
	KindSetup Kind = iota + 1
	KindSubmission
	KindTransientStatus
	KindUnexpectedStatus
	KindTaskFailed
	KindTaskTimedOut
	KindOutputLocationMissing
	KindParse
	KindDownload
	KindDeletion
)

var kindNames = map[Kind]string{
	KindSetup:                 "setup",
	KindSubmission:            "submission",
	KindTransientStatus:       "transient_status",
	KindUnexpectedStatus:      "unexpected_status",
	KindTaskFailed:            "task_failed",
	KindTaskTimedOut:          "task_timed_out",
	KindOutputLocationMissing: "output_location_missing",
	KindParse:                 "parse",
	KindDownload:              "download",
	KindDeletion:              "deletion",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified run error with chapter context.
type Error struct {
	Kind    Kind
	Chapter string
	JobID   string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Chapter != "" {
		msg += fmt.Sprintf(" [%s]", e.Chapter)
	}
	if m := e.Message(); m != "" {
		msg += ": " + m
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the detail and cause without the kind and chapter prefix,
// for reports that already group by both.
func (e *Error) Message() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return e.Detail + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Detail
	}
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func setupError(detail string, err error) *Error {
	return &Error{Kind: KindSetup, Detail: detail, Err: err}
}
