package statemachine

import (
	"context"
	"fmt"
	"slices"
)

// Table is a compiled, read-only set of rules. It holds no current state, so
// one Table can resolve transitions for any number of records concurrently.
type Table struct {
	// rules[from][event] in declaration order.
	rules map[string]map[string][]Rule
	// sources[event] lists the distinct from states, in declaration order.
	sources map[string][]State
}

// Compile validates rules and builds a Table. When several rules share a
// from state and event, the first one whose guards pass wins, so a guarded
// rule must be declared before its fallback.
func Compile(rules ...Rule) (*Table, error) {
	t := &Table{
		rules:   make(map[string]map[string][]Rule),
		sources: make(map[string][]State),
	}
	for i, r := range rules {
		if r.From == nil || r.To == nil || r.Event == nil {
			return nil, fmt.Errorf("rule %d: %w", i, ErrInvalidRule)
		}
		from, ev := r.From.Name(), r.Event.Name()
		if t.rules[from] == nil {
			t.rules[from] = make(map[string][]Rule)
		}
		t.rules[from][ev] = append(t.rules[from][ev], Rule{
			From:   r.From,
			To:     r.To,
			Event:  r.Event,
			Guards: slices.DeleteFunc(slices.Clone(r.Guards), func(g Guard) bool { return g == nil }),
		})
		if !slices.ContainsFunc(t.sources[ev], func(s State) bool { return s.Name() == from }) {
			t.sources[ev] = append(t.sources[ev], r.From)
		}
	}
	return t, nil
}

// MustCompile is Compile for package-level tables. It panics on an invalid rule.
func MustCompile(rules ...Rule) *Table {
	t, err := Compile(rules...)
	if err != nil {
		panic(err)
	}
	return t
}

// Resolve returns the state from moves to when event fires. The returned
// error is a *NoTransitionError or *RejectedError when the move is not allowed.
func (t *Table) Resolve(ctx context.Context, from State, event Event, data any) (State, error) {
	if from == nil {
		return nil, ErrNilState
	}
	if event == nil {
		return nil, ErrInvalidEvent
	}

	candidates := t.rules[from.Name()][event.Name()]
	if len(candidates) == 0 {
		return nil, &NoTransitionError{State: from.Name(), Event: event.Name()}
	}
	for _, r := range candidates {
		if passes(ctx, r, from, event, data) {
			return r.To, nil
		}
	}
	return nil, &RejectedError{State: from.Name(), Event: event.Name()}
}

// Can reports whether Resolve would succeed.
func (t *Table) Can(ctx context.Context, from State, event Event, data any) bool {
	_, err := t.Resolve(ctx, from, event, data)
	return err == nil
}

// Sources lists the states event is defined from, guards ignored.
func (t *Table) Sources(event Event) []State {
	if event == nil {
		return nil
	}
	return slices.Clone(t.sources[event.Name()])
}

func passes(ctx context.Context, r Rule, from State, event Event, data any) bool {
	for _, g := range r.Guards {
		if !g(ctx, from, event, data) {
			return false
		}
	}
	return true
}
