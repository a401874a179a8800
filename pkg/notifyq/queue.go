package notifyq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifyq/pkg/logger"
)

// LeaseExpiredMessage is recorded on records released by ReapStuck.
const LeaseExpiredMessage = "delivery lease expired"

// Queue is the producer and worker facing API over a Store.
// It holds no state besides configuration and is safe for concurrent use.
type Queue struct {
	store              Store
	defaultMaxAttempts int
	maxClaimBatch      int
	statsWindow        time.Duration
	retention          time.Duration
	leaseTimeout       time.Duration
	backoff            Backoff
	logger             *slog.Logger
}

// NewQueue creates a new Queue
func NewQueue(store Store, opts ...QueueOption) (*Queue, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	def := DefaultConfig()
	options := &queueOptions{
		defaultMaxAttempts: def.DefaultMaxAttempts,
		maxClaimBatch:      def.MaxClaimBatch,
		statsWindow:        def.StatsWindow,
		retention:          def.RetentionPeriod,
		leaseTimeout:       def.LeaseTimeout,
		backoff:            def.Backoff(),
		logger:             slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Queue{
		store:              store,
		defaultMaxAttempts: options.defaultMaxAttempts,
		maxClaimBatch:      options.maxClaimBatch,
		statsWindow:        options.statsWindow,
		retention:          options.retention,
		leaseTimeout:       options.leaseTimeout,
		backoff:            options.backoff,
		logger:             options.logger.With(logger.Component("notifyq")),
	}, nil
}

// Enqueue validates the request and persists a new pending record.
// No delivery is attempted.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (uuid.UUID, error) {
	if err := req.Validate(); err != nil {
		return uuid.Nil, err
	}

	rec := &Record{
		ID:           uuid.New(),
		TenantID:     req.TenantID,
		UserID:       req.UserID,
		Channel:      req.Channel,
		Recipient:    req.Recipient,
		Subject:      req.Subject,
		Body:         req.Body,
		TemplateID:   req.TemplateID,
		TemplateData: req.TemplateData,
		Priority:     PriorityDefault,
		Status:       StatusPending,
		MaxAttempts:  q.defaultMaxAttempts,
		Metadata:     req.Metadata,
	}
	if req.Priority != nil {
		rec.Priority = *req.Priority
	}
	if req.MaxAttempts > 0 {
		rec.MaxAttempts = req.MaxAttempts
	}
	if req.ScheduledFor != nil {
		rec.ScheduledFor = req.ScheduledFor.UTC()
	}

	if err := q.store.Create(ctx, rec); err != nil {
		return uuid.Nil, errors.Join(ErrStoreWrite, err)
	}

	q.logger.DebugContext(ctx, "notification enqueued",
		logger.NotificationID(rec.ID),
		logger.TenantID(rec.TenantID),
		logger.Channel(string(rec.Channel)),
	)

	return rec.ID, nil
}

// Get loads a record by id.
func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := q.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, errors.Join(ErrStoreRead, err)
	}
	return rec, nil
}

// ClaimDue atomically moves up to limit due pending records to sending and
// returns them oldest scheduled_for first, tie-broken by created_at.
func (q *Queue) ClaimDue(ctx context.Context, limit int, opts ...ClaimOption) ([]Record, error) {
	if limit <= 0 {
		return nil, &ValidationError{Field: "limit", Reason: "must be positive"}
	}
	if limit > q.maxClaimBatch {
		limit = q.maxClaimBatch
	}

	var filter ClaimFilter
	for _, opt := range opts {
		opt(&filter)
	}
	for _, ch := range filter.Channels {
		if !ch.Valid() {
			return nil, &ValidationError{Field: "channel", Reason: "unsupported channel " + string(ch)}
		}
	}

	records, err := q.store.ClaimDue(ctx, limit, filter)
	if err != nil {
		return nil, errors.Join(ErrStoreRead, err)
	}

	slices.SortStableFunc(records, func(a, b Record) int {
		if c := a.ScheduledFor.Compare(b.ScheduledFor); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return records, nil
}

// MarkSent records a successful delivery of a sending record.
func (q *Queue) MarkSent(ctx context.Context, id uuid.UUID) error {
	to, err := Transition(ctx, id, StatusSending, EventDeliver, nil)
	if err != nil {
		return err
	}

	empty := ""
	_, err = q.apply(ctx, id, Mutation{
		From:         sourcesOf(EventDeliver),
		To:           to,
		ErrorMessage: &empty,
		StampSent:    true,
	}, to)
	return err
}

// RecordFailureAndMaybeRetry counts a failed delivery attempt of a sending record.
// It reschedules the record with backoff while attempts remain, otherwise it marks
// it failed without touching scheduled_for. It reports whether a retry was scheduled.
//
// errorMessage always replaces the stored error, so an empty message clears it
// on both the retry and the final failure. The update only lands if the attempt
// counter is still the one read here: a report that arrives after the lease was
// reaped fails with an invalid transition instead of overwriting the newer attempt.
func (q *Queue) RecordFailureAndMaybeRetry(ctx context.Context, id uuid.UUID, errorMessage string) (bool, error) {
	rec, err := q.Get(ctx, id)
	if err != nil {
		return false, err
	}

	decision := NextAttempt(rec.Attempts, rec.MaxAttempts, q.backoff)
	to, err := Transition(ctx, id, rec.Status, EventFail, decision)
	if err != nil {
		return false, err
	}

	m := Mutation{
		From:           []Status{StatusSending},
		ExpectAttempts: &rec.Attempts,
		To:             to,
		Attempts:       &decision.Attempts,
		ErrorMessage:   &errorMessage,
	}
	if decision.Retry {
		m.RescheduleIn = &decision.Delay
	}

	if _, err := q.apply(ctx, id, m, to); err != nil {
		return false, err
	}

	log := q.logger.With(
		logger.NotificationID(id),
		logger.TenantID(rec.TenantID),
		logger.Channel(string(rec.Channel)),
		logger.Attempts(decision.Attempts),
	)
	if decision.Retry {
		log.InfoContext(ctx, "delivery failed, retry scheduled", logger.Duration(decision.Delay))
	} else {
		log.WarnContext(ctx, "delivery failed permanently", slog.String("reason", errorMessage))
	}

	return decision.Retry, nil
}

// Cancel stops future claims of a pending or failed record. Cancelling a sent or
// already cancelled record succeeds without change; cancelling a record in flight fails.
func (q *Queue) Cancel(ctx context.Context, id uuid.UUID) error {
	_, err := q.store.Apply(ctx, id, Mutation{
		From: sourcesOf(EventCancel),
		To:   StatusCancelled,
	})
	if err == nil {
		return nil
	}

	var conflict *StatusConflictError
	if errors.As(err, &conflict) {
		switch conflict.Current {
		case StatusSent, StatusCancelled:
			return nil
		}
		return &TransitionError{ID: id, From: conflict.Current, To: StatusCancelled}
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return errors.Join(ErrStoreWrite, err)
}

// GetStats returns counts of the tenant's records created within the stats window.
func (q *Queue) GetStats(ctx context.Context, tenantID uuid.UUID) (*Stats, error) {
	if tenantID == uuid.Nil {
		return nil, &ValidationError{Field: "tenant_id", Reason: "is required"}
	}

	stats, err := q.store.Stats(ctx, tenantID, q.statsWindow)
	if err != nil {
		return nil, errors.Join(ErrStoreRead, err)
	}
	return stats, nil
}

// Cleanup deletes sent and cancelled records older than the retention period.
func (q *Queue) Cleanup(ctx context.Context) (int64, error) {
	n, err := q.store.DeleteTerminal(ctx, q.retention)
	if err != nil {
		return 0, errors.Join(ErrStoreWrite, err)
	}
	if n > 0 {
		q.logger.InfoContext(ctx, "expired notifications removed", slog.Int64("count", n))
	}
	return n, nil
}

// ReapStuck releases records left in sending longer than the lease timeout,
// counting the lost attempt against their budget.
func (q *Queue) ReapStuck(ctx context.Context) (int64, error) {
	n, err := q.store.ReleaseStale(ctx, q.leaseTimeout, LeaseExpiredMessage)
	if err != nil {
		return 0, errors.Join(ErrStoreWrite, err)
	}
	if n > 0 {
		q.logger.WarnContext(ctx, "stuck notifications released",
			slog.Int64("count", n),
			logger.Duration(q.leaseTimeout),
		)
	}
	return n, nil
}

// apply runs a conditional update and classifies the store outcome.
func (q *Queue) apply(ctx context.Context, id uuid.UUID, m Mutation, to Status) (*Record, error) {
	rec, err := q.store.Apply(ctx, id, m)
	if err == nil {
		return rec, nil
	}

	var conflict *StatusConflictError
	switch {
	case errors.As(err, &conflict):
		return nil, &TransitionError{ID: id, From: conflict.Current, To: to}
	case errors.Is(err, ErrNotFound):
		return nil, err
	default:
		return nil, errors.Join(ErrStoreWrite, fmt.Errorf("apply %s: %w", to, err))
	}
}
