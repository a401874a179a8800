// Package statemachine resolves state transitions against a compiled table of
// rules.
//
// A Table is built once with Compile or MustCompile and never changes. It does
// not track a current state. Callers pass the state they loaded from storage
// and get back the state it moves to, which makes a single table usable by
// many goroutines and many records at once.
//
//	const (
//	    Pending = statemachine.StringState("pending")
//	    Sending = statemachine.StringState("sending")
//	    Claim   = statemachine.StringEvent("claim")
//	)
//
//	var table = statemachine.MustCompile(
//	    statemachine.Rule{From: Pending, To: Sending, Event: Claim},
//	)
//
//	next, err := table.Resolve(ctx, Pending, Claim, nil)
//
// # Guards
//
// Several rules may share a from state and event. They are tried in
// declaration order and the first one whose guards all pass wins, so a
// guarded retry rule goes before the unguarded terminal fallback:
//
//	budgetLeft := func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
//	    left, ok := data.(int)
//	    return ok && left > 0
//	}
//
// # Errors
//
// Resolve returns *NoTransitionError when no rule exists for the pair and
// *RejectedError when rules exist but every guard vetoed. IsNoTransition and
// IsRejected match either through wrapping.
package statemachine
