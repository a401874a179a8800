package notifyq

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence boundary of the queue. Every method is a single
// round-trip to the backing store and evaluates "now" on the store side.
//
// Implementations must return ErrNotFound for unknown ids and
// *StatusConflictError when a conditional update finds the row in a status
// other than the expected ones, or with a different attempt counter. Any
// other error is treated as unavailability.
type Store interface {
	// Create inserts a new pending record. CreatedAt, UpdatedAt and, when zero,
	// ScheduledFor are stamped by the store; a ScheduledFor earlier than the
	// creation time is clamped to it.
	Create(ctx context.Context, rec *Record) error

	// Get loads a record by id.
	Get(ctx context.Context, id uuid.UUID) (*Record, error)

	// ClaimDue atomically flips up to limit due pending records to sending and
	// returns exactly the rows it flipped, oldest scheduled_for first. Two
	// concurrent calls never return the same row. On error no row may be left
	// in sending: a store that claims row by row puts the rows it already
	// flipped back to pending, and rows it cannot put back wait for the lease
	// reaper, which counts the lost attempt.
	ClaimDue(ctx context.Context, limit int, filter ClaimFilter) ([]Record, error)

	// Apply performs a single-row conditional update and returns the updated row.
	Apply(ctx context.Context, id uuid.UUID, m Mutation) (*Record, error)

	// Stats aggregates records of a tenant created within the trailing window.
	Stats(ctx context.Context, tenantID uuid.UUID, window time.Duration) (*Stats, error)

	// DeleteTerminal removes sent and cancelled records created more than
	// olderThan ago and returns how many rows were deleted.
	DeleteTerminal(ctx context.Context, olderThan time.Duration) (int64, error)

	// ReleaseStale returns sending records not updated within leaseTimeout to
	// pending (or failed when their attempt budget is spent), counting the lost
	// attempt. It returns how many rows were released.
	ReleaseStale(ctx context.Context, leaseTimeout time.Duration, reason string) (int64, error)
}

// ClaimFilter narrows which due records a claim may take.
type ClaimFilter struct {
	Channels []Channel
	TenantID *uuid.UUID
}

// Mutation describes a conditional single-row update.
type Mutation struct {
	// From lists the statuses the row must currently be in.
	From []Status
	// ExpectAttempts, when set, also requires the attempt counter to equal it.
	// A lease release in between bumps the counter and fails the update.
	ExpectAttempts *int
	// To is the new status.
	To Status
	// Attempts, when set, replaces the attempt counter.
	Attempts *int
	// ErrorMessage, when set, replaces the last error. An empty string clears it.
	ErrorMessage *string
	// RescheduleIn, when set, moves scheduled_for to store now plus the delay.
	RescheduleIn *time.Duration
	// StampSent sets sent_at to store now.
	StampSent bool
}

// Matches reports whether a row in status s with the given attempt counter
// satisfies the From and ExpectAttempts conditions.
func (m Mutation) Matches(s Status, attempts int) bool {
	if m.ExpectAttempts != nil && *m.ExpectAttempts != attempts {
		return false
	}
	return slices.Contains(m.From, s)
}
