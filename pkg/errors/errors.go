package errors

import (
	"errors"
	"fmt"
)

// Failure kinds recognized by the orchestrator. Anything a pipeline step
// cannot classify is treated as transient so the item stays retryable.
var (
	ErrNotFound           = errors.New("not found")
	ErrTransient          = errors.New("transient external failure")
	ErrPermanent          = errors.New("permanent item failure")
	ErrConstraintUnmet    = errors.New("scheduling constraint unmet")
	ErrBackendUnavailable = errors.New("storage backend unavailable")
)

// Error carries a failure kind, a message and an optional wrapped cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// New creates a new error with a message.
func New(message string) error {
	return &Error{Message: message}
}

// Wrap wraps an error with an additional message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Message: message, Err: err}
}

// Transient marks err as a retryable external failure.
func Transient(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrTransient, Message: message, Err: err}
}

// Permanent marks err as a non-retryable item failure.
func Permanent(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrPermanent, Message: message, Err: err}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsPermanent returns true when err is classified as a permanent item failure.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// IsTransient returns true for transient failures and for anything
// unclassified, which gets the same treatment.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	return !errors.Is(err, ErrPermanent) && !errors.Is(err, ErrBackendUnavailable)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// GetMessage returns the error message.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
