package notifyq

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifyq/pkg/statemachine"
)

// Lifecycle events applied to a record.
const (
	EventClaim   = statemachine.StringEvent("claim")
	EventDeliver = statemachine.StringEvent("deliver")
	EventFail    = statemachine.StringEvent("fail")
	EventCancel  = statemachine.StringEvent("cancel")
)

// retryBudgetLeft lets a failure go back to pending only while the decision says so.
func retryBudgetLeft(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	d, ok := data.(Decision)
	return ok && d.Retry
}

// lifecycle is the record state machine. Order matters for sending+fail:
// the guarded retry rule is evaluated before the terminal one.
var lifecycle = statemachine.MustCompile(
	statemachine.Rule{From: StatusPending, To: StatusSending, Event: EventClaim},
	statemachine.Rule{From: StatusSending, To: StatusSent, Event: EventDeliver},
	statemachine.Rule{From: StatusSending, To: StatusPending, Event: EventFail, Guards: []statemachine.Guard{retryBudgetLeft}},
	statemachine.Rule{From: StatusSending, To: StatusFailed, Event: EventFail},
	statemachine.Rule{From: StatusPending, To: StatusCancelled, Event: EventCancel},
	statemachine.Rule{From: StatusFailed, To: StatusCancelled, Event: EventCancel},
)

// sourcesOf returns the statuses from which ev is defined.
func sourcesOf(ev statemachine.Event) []Status {
	states := lifecycle.Sources(ev)
	from := make([]Status, 0, len(states))
	for _, s := range states {
		from = append(from, s.(Status))
	}
	return from
}

// Transition resolves the status a record in from moves to when ev fires.
// data is passed to guards; the fail event expects a Decision.
func Transition(ctx context.Context, id uuid.UUID, from Status, ev statemachine.Event, data any) (Status, error) {
	to, err := lifecycle.Resolve(ctx, from, ev, data)
	if err != nil {
		return from, &TransitionError{ID: id, From: from, To: intendedTarget(ev, data)}
	}
	return to.(Status), nil
}

// CanTransition reports whether ev is allowed from the given status.
func CanTransition(ctx context.Context, from Status, ev statemachine.Event, data any) bool {
	return lifecycle.Can(ctx, from, ev, data)
}

// intendedTarget names the status the caller was trying to reach, for error messages.
func intendedTarget(ev statemachine.Event, data any) Status {
	switch ev.Name() {
	case EventClaim.Name():
		return StatusSending
	case EventDeliver.Name():
		return StatusSent
	case EventCancel.Name():
		return StatusCancelled
	case EventFail.Name():
		if d, ok := data.(Decision); ok && d.Retry {
			return StatusPending
		}
		return StatusFailed
	}
	return ""
}
