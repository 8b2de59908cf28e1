package llm

import (
	"fmt"

	"hermes/pkg/errors"
)

// TransientError is a retryable gateway failure: network errors, rate
// limits, timeouts, malformed JSON before the final attempt.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient llm error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is a non-retryable gateway failure: invalid credentials,
// cost cap exceeded, malformed JSON on the final attempt.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent llm error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	return &TransientError{Err: err}
}

// Transientf wraps a formatted message as retryable.
func Transientf(format string, args ...interface{}) error {
	return &TransientError{Err: errors.Newf(format, args...)}
}

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// Permanentf wraps a formatted message as non-retryable.
func Permanentf(format string, args ...interface{}) error {
	return &PermanentError{Err: errors.Newf(format, args...)}
}

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is classified as non-retryable.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
