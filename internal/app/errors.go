package service

import "errors"

// Sentinel kinds for pipeline errors.
var (
	// ErrValidation matches any ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrBackpressure reports a full dispatch queue.
	ErrBackpressure = errors.New("backpressure")
)

// ValidationError rejects a malformed or out-of-range sample with a
// specific reason. Always recoverable at the caller.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}
