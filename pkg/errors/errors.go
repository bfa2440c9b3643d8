package errors

import (
	"errors"
	"fmt"
)

var (
	ErrStorage         = errors.New("index storage unavailable")
	ErrMalformedRecord = errors.New("malformed document record")
	ErrUnknownModel    = errors.New("unknown ranking model")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrUndefinedRecall = errors.New("recall undefined: no relevant documents")
)

// Exit codes returned by the harness binary.
const (
	ExitOK       = 0
	ExitInternal = 1
	ExitConfig   = 2
	ExitInput    = 3
	ExitStorage  = 4
)

// RecordError identifies the input record that aborted an index build.
type RecordError struct {
	Position int
	Field    string
	Reason   string
}

func (e *RecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: record %d: %s", ErrMalformedRecord.Error(), e.Position, e.Reason)
	}
	return fmt.Sprintf("%s: record %d: %s: %s", ErrMalformedRecord.Error(), e.Position, e.Field, e.Reason)
}

func (e *RecordError) Unwrap() error {
	return ErrMalformedRecord
}

func NewRecordError(position int, field string, reason string) *RecordError {
	return &RecordError{
		Position: position,
		Field:    field,
		Reason:   reason,
	}
}

func Newf(position int, field string, format string, args ...any) *RecordError {
	return &RecordError{
		Position: position,
		Field:    field,
		Reason:   fmt.Sprintf(format, args...),
	}
}

func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch {
	case errors.Is(err, ErrMalformedRecord):
		return ExitInput
	case errors.Is(err, ErrStorage):
		return ExitStorage
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrUnknownModel):
		return ExitConfig
	default:
		return ExitInternal
	}
}
