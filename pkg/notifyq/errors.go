package notifyq

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrStoreNil is returned when a nil store is provided
	ErrStoreNil = errors.New("notifyq: store cannot be nil")

	// ErrValidation marks a malformed request. Never retried.
	ErrValidation = errors.New("notifyq: validation failed")

	// ErrStoreRead is returned when the store could not be read. The caller owns the retry.
	ErrStoreRead = errors.New("notifyq: store read failed")

	// ErrStoreWrite is returned when the store rejected a write. The caller owns the retry.
	ErrStoreWrite = errors.New("notifyq: store write failed")

	// ErrInvalidTransition is returned for state changes the state machine does not permit.
	ErrInvalidTransition = errors.New("notifyq: invalid status transition")

	// ErrNotFound is returned when no record matches the given id
	ErrNotFound = errors.New("notifyq: record not found")

	// ErrDuplicateID is returned by stores when a record id already exists
	ErrDuplicateID = errors.New("notifyq: record id already exists")
)

// ValidationError describes the first invalid field of an enqueue request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("notifyq: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// FieldErrors returns the failure keyed by field name.
func (e *ValidationError) FieldErrors() map[string]string {
	return map[string]string{e.Field: e.Reason}
}

// TransitionError reports a rejected state change. The record is left untouched.
type TransitionError struct {
	ID   uuid.UUID
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("notifyq: record %s cannot move from %q to %q", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// StatusConflictError is returned by Store.Apply when the row exists but its
// current status is not one of the expected source statuses, or its attempt
// counter moved since the caller read it.
type StatusConflictError struct {
	ID       uuid.UUID
	Current  Status
	Attempts int
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("notifyq: record %s is in status %q after %d attempts", e.ID, e.Current, e.Attempts)
}

// IsValidationError reports whether err is a request validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidTransition reports whether err is a rejected state change.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsStoreError reports whether err originates from store unavailability.
func IsStoreError(err error) bool {
	return errors.Is(err, ErrStoreRead) || errors.Is(err, ErrStoreWrite)
}
