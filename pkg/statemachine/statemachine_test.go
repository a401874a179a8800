package statemachine_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyq/pkg/statemachine"
)

const (
	Queued    = statemachine.StringState("queued")
	InFlight  = statemachine.StringState("in_flight")
	Delivered = statemachine.StringState("delivered")
	Dropped   = statemachine.StringState("dropped")
	Voided    = statemachine.StringState("voided")

	Take     = statemachine.StringEvent("take")
	Ack      = statemachine.StringEvent("ack")
	Nack     = statemachine.StringEvent("nack")
	Withdraw = statemachine.StringEvent("withdraw")
)

func hasBudget(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	left, ok := data.(int)
	return ok && left > 0
}

var delivery = statemachine.MustCompile(
	statemachine.Rule{From: Queued, To: InFlight, Event: Take},
	statemachine.Rule{From: InFlight, To: Delivered, Event: Ack},
	statemachine.Rule{From: InFlight, To: Queued, Event: Nack, Guards: []statemachine.Guard{hasBudget}},
	statemachine.Rule{From: InFlight, To: Dropped, Event: Nack},
	statemachine.Rule{From: Queued, To: Voided, Event: Withdraw},
	statemachine.Rule{From: Dropped, To: Voided, Event: Withdraw},
)

func TestTable_Resolve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		from statemachine.State
		ev   statemachine.Event
		data any
		want statemachine.State
	}{
		{Queued, Take, nil, InFlight},
		{InFlight, Ack, nil, Delivered},
		{InFlight, Nack, 2, Queued},
		{InFlight, Nack, 0, Dropped},
		{InFlight, Nack, "not a budget", Dropped},
		{Queued, Withdraw, nil, Voided},
		{Dropped, Withdraw, nil, Voided},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s on %s", tt.from.Name(), tt.ev.Name()), func(t *testing.T) {
			t.Parallel()
			got, err := delivery.Resolve(ctx, tt.from, tt.ev, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, delivery.Can(ctx, tt.from, tt.ev, tt.data))
		})
	}
}

func TestTable_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := delivery.Resolve(ctx, Delivered, Withdraw, nil)
	assert.True(t, statemachine.IsNoTransition(err))
	assert.False(t, statemachine.IsRejected(err))
	assert.EqualError(t, err, `statemachine: no transition from "delivered" on "withdraw"`)
	assert.False(t, delivery.Can(ctx, Delivered, Withdraw, nil))

	guardedOnly := statemachine.MustCompile(
		statemachine.Rule{From: InFlight, To: Queued, Event: Nack, Guards: []statemachine.Guard{hasBudget}},
	)
	_, err = guardedOnly.Resolve(ctx, InFlight, Nack, 0)
	assert.True(t, statemachine.IsRejected(err))
	assert.True(t, statemachine.IsRejected(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, guardedOnly.Can(ctx, InFlight, Nack, 0))

	_, err = delivery.Resolve(ctx, nil, Take, nil)
	assert.ErrorIs(t, err, statemachine.ErrNilState)
	_, err = delivery.Resolve(ctx, Queued, nil, nil)
	assert.ErrorIs(t, err, statemachine.ErrInvalidEvent)
}

func TestCompile(t *testing.T) {
	t.Parallel()

	_, err := statemachine.Compile(
		statemachine.Rule{From: Queued, To: InFlight, Event: Take},
		statemachine.Rule{From: Queued, To: nil, Event: Take},
	)
	assert.ErrorIs(t, err, statemachine.ErrInvalidRule)
	assert.ErrorContains(t, err, "rule 1")

	assert.Panics(t, func() {
		statemachine.MustCompile(statemachine.Rule{From: Queued, To: InFlight})
	})

	withNilGuard, err := statemachine.Compile(
		statemachine.Rule{From: Queued, To: InFlight, Event: Take, Guards: []statemachine.Guard{nil}},
	)
	require.NoError(t, err)
	got, err := withNilGuard.Resolve(context.Background(), Queued, Take, nil)
	require.NoError(t, err)
	assert.Equal(t, InFlight, got)
}

func TestTable_Sources(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []statemachine.State{Queued, Dropped}, delivery.Sources(Withdraw))
	assert.Equal(t, []statemachine.State{InFlight}, delivery.Sources(Nack), "duplicate sources collapse")
	assert.Empty(t, delivery.Sources(statemachine.StringEvent("unknown")))
	assert.Nil(t, delivery.Sources(nil))

	src := delivery.Sources(Withdraw)
	src[0] = Voided
	assert.Equal(t, []statemachine.State{Queued, Dropped}, delivery.Sources(Withdraw), "callers get a copy")
}

func TestTable_ConcurrentResolve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := delivery.Resolve(ctx, InFlight, Nack, i%2)
			assert.NoError(t, err)
			if i%2 == 1 {
				assert.Equal(t, Queued, got)
			} else {
				assert.Equal(t, Dropped, got)
			}
		}()
	}
	wg.Wait()
}
