package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEvent indicates a job log record failed validation.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrUnknownEvent indicates a record with an unsupported event discriminator.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrJobNotFound indicates the requested job has no feed.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidJob indicates an invalid job identifier.
	ErrInvalidJob = errors.New("invalid job")
	// ErrInvalidDisplayKey indicates an unknown display state key.
	ErrInvalidDisplayKey = errors.New("invalid display key")
	// ErrInvalidDisplayValue indicates a value that does not fit the key.
	ErrInvalidDisplayValue = errors.New("invalid display value")
	// ErrFeedTrimmed indicates the feed no longer retains the requested records.
	ErrFeedTrimmed = errors.New("feed trimmed")
	// ErrFetchRejected indicates the backend refused to serve the job log.
	ErrFetchRejected = errors.New("fetch rejected")
)

// DecodeError reports a record that could not be turned into an Event.
// Field names the missing or blank field.
type DecodeError struct {
	Event  EventKind
	Field  string
	Reason string
	err    error
}

// NewDecodeError constructs a DecodeError wrapping ErrInvalidEvent.
func NewDecodeError(kind EventKind, field, reason string) *DecodeError {
	return &DecodeError{Event: kind, Field: field, Reason: reason, err: ErrInvalidEvent}
}

// NewUnknownEventError constructs a DecodeError for an unsupported discriminator.
func NewUnknownEventError(kind EventKind) *DecodeError {
	return &DecodeError{Event: kind, Field: "event", Reason: "unsupported event", err: ErrUnknownEvent}
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "decode error"
	}
	kind := string(e.Event)
	if kind == "" {
		kind = "record"
	}
	if e.Reason == "" {
		return fmt.Sprintf("%s: field %q is invalid", kind, e.Field)
	}
	return fmt.Sprintf("%s: field %q %s", kind, e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	if e == nil || e.err == nil {
		return ErrInvalidEvent
	}
	return e.err
}
