package statemachine

import "context"

// State is a node of a transition table.
type State interface {
	Name() string
}

// Event moves a state along an edge of the table.
type Event interface {
	Name() string
}

// Guard decides at resolve time whether a rule applies. data is whatever the
// caller passed to Resolve.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Rule is one edge of a table: From moves to To when Event fires and every
// guard passes.
type Rule struct {
	From   State
	To     State
	Event  Event
	Guards []Guard
}

// StringState is a State backed by a string.
type StringState string

func (s StringState) Name() string { return string(s) }

// StringEvent is an Event backed by a string.
type StringEvent string

func (e StringEvent) Name() string { return string(e) }
