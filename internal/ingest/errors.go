package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEventType is wrapped by the ValidationError for an
	// unrecognized "type" discriminator.
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMissingAlertID   = errors.New("alert_id is required")
)

// ValidationError rejects one raw event. Nothing was mutated.
type ValidationError struct {
	EventType string
	Reason    string
	Err       error
}

func (e *ValidationError) Error() string {
	if e.EventType == "" {
		return fmt.Sprintf("invalid event: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s event: %s", e.EventType, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(eventType, format string, args ...any) *ValidationError {
	return &ValidationError{EventType: eventType, Reason: fmt.Sprintf(format, args...)}
}

// rejectLabel maps err onto a bounded metric label.
func rejectLabel(err error) string {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrUnknownEventType):
		return "unknown_event_type"
	case errors.As(err, &ve) && ve.EventType != "":
		return "invalid_" + ve.EventType
	case errors.As(err, &ve):
		return "malformed"
	}
	return "internal"
}
