package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates a waveform or input that cannot be analyzed
	ErrInvalidInput = errors.New("invalid input")

	// ErrSkipped marks batch inputs that never started because the batch
	// context was cancelled
	ErrSkipped = errors.New("analysis skipped")
)

// InputError describes why an input was rejected
type InputError struct {
	Name   string
	Reason string
	Cause  error
}

func (e *InputError) Error() string {
	msg := e.Reason
	if e.Name != "" {
		msg = e.Name + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("invalid input: %s: %v", msg, e.Cause)
	}
	return "invalid input: " + msg
}

func (e *InputError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrInvalidInput
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalidInput(name, reason string, cause error) error {
	return &InputError{Name: name, Reason: reason, Cause: cause}
}
