package remote

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a send failure.
type ErrorKind string

const (
	// ErrValidation rejects input before any network or state effect.
	ErrValidation ErrorKind = "validation"
	// ErrNetwork means the send was attempted but not confirmed.
	ErrNetwork ErrorKind = "network"
	// ErrTimeout means the send deadline elapsed without confirmation.
	ErrTimeout ErrorKind = "timeout"
	// ErrUnauthorized means the backend rejected the caller's identity.
	ErrUnauthorized ErrorKind = "unauthorized"
)

// Unauthorized is the sentinel transports wrap 401/403 responses with.
var Unauthorized = errors.New("unauthorized")

// SendError is returned by the send coordinator. Text carries the original
// message body so the caller can retry with the same content.
type SendError struct {
	Kind ErrorKind
	Text string
	Err  error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("send failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("send failed (%s)", e.Kind)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// NewValidationError builds a validation failure for the given text.
func NewValidationError(text, reason string) *SendError {
	return &SendError{Kind: ErrValidation, Text: text, Err: errors.New(reason)}
}

// ClassifySendError maps a raw remote failure onto the taxonomy, attaching
// the original text for retry. An error that is already a SendError passes
// through with its text filled in.
func ClassifySendError(err error, text string) *SendError {
	var se *SendError
	if errors.As(err, &se) {
		if se.Text == "" {
			se.Text = text
		}
		return se
	}
	kind := ErrNetwork
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	case errors.Is(err, Unauthorized):
		kind = ErrUnauthorized
	}
	return &SendError{Kind: kind, Text: text, Err: err}
}
