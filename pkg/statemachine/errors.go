package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRule  = errors.New("statemachine: rule needs from, to and event")
	ErrInvalidEvent = errors.New("statemachine: event is nil")
	ErrNilState     = errors.New("statemachine: state is nil")
)

// NoTransitionError is returned when the table has no rule for the state and
// event pair.
type NoTransitionError struct {
	State string
	Event string
}

func (e *NoTransitionError) Error() string {
	return fmt.Sprintf("statemachine: no transition from %q on %q", e.State, e.Event)
}

// RejectedError is returned when rules exist for the pair but every one of
// them was vetoed by a guard.
type RejectedError struct {
	State string
	Event string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("statemachine: transition from %q on %q rejected by guards", e.State, e.Event)
}

// IsNoTransition reports whether err is or wraps a NoTransitionError.
func IsNoTransition(err error) bool {
	var e *NoTransitionError
	return errors.As(err, &e)
}

// IsRejected reports whether err is or wraps a RejectedError.
func IsRejected(err error) bool {
	var e *RejectedError
	return errors.As(err, &e)
}
