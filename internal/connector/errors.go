package connector

import "fmt"

// TransientError marks a retryable fetch failure: network hiccups, rate
// limits, upstream 5xx. The connector retries these up to its attempt bound.
type TransientError struct {
	Source string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error from %s: %v", e.Source, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a non-retryable fetch failure: 4xx semantics,
// missing credentials, malformed source. Propagated immediately.
type PermanentError struct {
	Source string
	Err    error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent error from %s: %v", e.Source, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as retryable for the given source.
func Transient(source string, err error) error {
	return &TransientError{Source: source, Err: err}
}

// Permanent wraps err as non-retryable for the given source.
func Permanent(source string, err error) error {
	return &PermanentError{Source: source, Err: err}
}

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return asError(err, &te)
}

// IsPermanent reports whether err is classified as non-retryable.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return asError(err, &pe)
}
