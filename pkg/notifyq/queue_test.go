package notifyq_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyq/pkg/notifyq"
)

func newQueue(t *testing.T, opts ...notifyq.QueueOption) (*notifyq.Queue, *notifyq.MemoryStorage, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store := notifyq.NewMemoryStorage(notifyq.WithClock(clock.Now))
	q, err := notifyq.NewQueue(store, opts...)
	require.NoError(t, err)
	return q, store, clock
}

func enqueue(t *testing.T, q *notifyq.Queue, tenant uuid.UUID, ch notifyq.Channel, mutate ...func(*notifyq.EnqueueRequest)) uuid.UUID {
	t.Helper()
	req := notifyq.EnqueueRequest{
		TenantID:  tenant,
		Channel:   ch,
		Recipient: "someone",
		Body:      "body",
	}
	for _, m := range mutate {
		m(&req)
	}
	id, err := q.Enqueue(context.Background(), req)
	require.NoError(t, err)
	return id
}

func claimOne(t *testing.T, q *notifyq.Queue, id uuid.UUID) {
	t.Helper()
	recs, err := q.ClaimDue(context.Background(), 100)
	require.NoError(t, err)
	for _, r := range recs {
		if r.ID == id {
			return
		}
	}
	t.Fatalf("record %s was not claimed", id)
}

func get(t *testing.T, q *notifyq.Queue, id uuid.UUID) *notifyq.Record {
	t.Helper()
	rec, err := q.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func assertInvariants(t *testing.T, rec *notifyq.Record) {
	t.Helper()
	assert.LessOrEqual(t, rec.Attempts, rec.MaxAttempts, "attempts never exceed max_attempts")
	assert.Equal(t, rec.Status == notifyq.StatusSent, rec.SentAt != nil, "sent_at is set iff status is sent")
}

func TestNewQueue(t *testing.T) {
	t.Parallel()

	_, err := notifyq.NewQueue(nil)
	assert.ErrorIs(t, err, notifyq.ErrStoreNil)

	q, err := notifyq.NewQueue(notifyq.NewMemoryStorage(), notifyq.WithConfig(notifyq.DefaultConfig()))
	require.NoError(t, err)
	assert.NotNil(t, q)
}

func TestQueue_Enqueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("applies defaults", func(t *testing.T) {
		t.Parallel()
		q, _, clock := newQueue(t)
		id := enqueue(t, q, uuid.New(), notifyq.ChannelEmail)

		rec := get(t, q, id)
		assert.Equal(t, notifyq.StatusPending, rec.Status)
		assert.Zero(t, rec.Attempts)
		assert.Equal(t, 3, rec.MaxAttempts)
		assert.Equal(t, notifyq.PriorityDefault, rec.Priority)
		assert.Equal(t, clock.Now(), rec.ScheduledFor)
		assert.Equal(t, rec.CreatedAt, rec.ScheduledFor)
		assertInvariants(t, rec)
	})

	t.Run("keeps optional fields", func(t *testing.T) {
		t.Parallel()
		q, _, clock := newQueue(t, notifyq.WithDefaultMaxAttempts(5))
		user := uuid.New()
		prio := notifyq.PriorityHigh
		at := clock.Now().Add(time.Hour)

		id := enqueue(t, q, uuid.New(), notifyq.ChannelPush, func(r *notifyq.EnqueueRequest) {
			r.UserID = &user
			r.Priority = &prio
			r.ScheduledFor = &at
			r.TemplateID = "reminder"
			r.TemplateData = map[string]any{"when": "tomorrow"}
			r.Metadata = map[string]any{"job": 7}
		})

		rec := get(t, q, id)
		assert.Equal(t, user, *rec.UserID)
		assert.Equal(t, prio, rec.Priority)
		assert.Equal(t, at, rec.ScheduledFor)
		assert.Equal(t, 5, rec.MaxAttempts)
		assert.Equal(t, "reminder", rec.TemplateID)
		assert.Equal(t, "tomorrow", rec.TemplateData["when"])
		assert.Equal(t, 7, rec.Metadata["job"])
	})

	t.Run("validation errors", func(t *testing.T) {
		t.Parallel()
		q, store, _ := newQueue(t)

		_, err := q.Enqueue(ctx, notifyq.EnqueueRequest{Channel: notifyq.ChannelEmail, Recipient: "a", Body: "b"})
		assert.True(t, notifyq.IsValidationError(err))
		assert.Equal(t, 0, store.Len(), "nothing persisted on validation failure")

		var verr *notifyq.ValidationError
		_, err = q.Enqueue(ctx, notifyq.EnqueueRequest{TenantID: uuid.New(), Channel: notifyq.ChannelEmail, Recipient: "a"})
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "body", verr.Field)
	})

	t.Run("store write failure", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		boom := errors.New("connection refused")
		store.On("Create", mock.Anything, mock.Anything).Return(boom)

		q, err := notifyq.NewQueue(store)
		require.NoError(t, err)

		_, err = q.Enqueue(ctx, notifyq.EnqueueRequest{
			TenantID: uuid.New(), Channel: notifyq.ChannelSMS, Recipient: "+100", Body: "hi",
		})
		assert.ErrorIs(t, err, notifyq.ErrStoreWrite)
		assert.ErrorIs(t, err, boom)
		assert.True(t, notifyq.IsStoreError(err))
		store.AssertNumberOfCalls(t, "Create", 1)
	})
}

func TestQueue_ClaimDue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rejects non-positive limit", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newQueue(t)
		_, err := q.ClaimDue(ctx, 0)
		assert.True(t, notifyq.IsValidationError(err))
	})

	t.Run("rejects unknown channel filter", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newQueue(t)
		_, err := q.ClaimDue(ctx, 1, notifyq.WithClaimChannels("fax"))
		assert.True(t, notifyq.IsValidationError(err))
	})

	t.Run("orders by schedule then creation and caps the batch", func(t *testing.T) {
		t.Parallel()
		q, _, clock := newQueue(t, notifyq.WithMaxClaimBatch(2))
		tenant := uuid.New()

		late := clock.Now().Add(time.Minute)
		a := enqueue(t, q, tenant, notifyq.ChannelEmail, func(r *notifyq.EnqueueRequest) { r.ScheduledFor = &late })
		clock.Advance(time.Second)
		b := enqueue(t, q, tenant, notifyq.ChannelEmail)
		clock.Advance(time.Second)
		c := enqueue(t, q, tenant, notifyq.ChannelEmail)
		clock.Advance(time.Minute)

		got, err := q.ClaimDue(ctx, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, b, got[0].ID)
		assert.Equal(t, c, got[1].ID)

		got, err = q.ClaimDue(ctx, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, a, got[0].ID)
	})

	t.Run("tenant and channel filters", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newQueue(t)
		t1, t2 := uuid.New(), uuid.New()
		enqueue(t, q, t1, notifyq.ChannelEmail)
		want := enqueue(t, q, t2, notifyq.ChannelInApp)
		enqueue(t, q, t2, notifyq.ChannelEmail)

		got, err := q.ClaimDue(ctx, 10,
			notifyq.WithClaimTenant(t2),
			notifyq.WithClaimChannels(notifyq.ChannelInApp, notifyq.ChannelPush),
		)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, want, got[0].ID)
	})

	t.Run("store read failure", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		store.On("ClaimDue", mock.Anything, 5, mock.Anything).Return(nil, errors.New("timeout"))
		q, err := notifyq.NewQueue(store)
		require.NoError(t, err)

		_, err = q.ClaimDue(ctx, 5)
		assert.ErrorIs(t, err, notifyq.ErrStoreRead)
	})
}

func TestQueue_ClaimDueConcurrent(t *testing.T) {
	t.Parallel()
	q, _, _ := newQueue(t)
	tenant := uuid.New()
	for range 100 {
		enqueue(t, q, tenant, notifyq.ChannelEmail)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uuid.UUID]int)
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recs, err := q.ClaimDue(context.Background(), 20)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			for _, r := range recs {
				seen[r.ID]++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 100)
	for id, n := range seen {
		assert.Equal(t, 1, n, "record %s claimed twice", id)
	}
}

func TestQueue_MarkSent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("from sending", func(t *testing.T) {
		t.Parallel()
		q, _, clock := newQueue(t)
		id := enqueue(t, q, uuid.New(), notifyq.ChannelEmail)
		claimOne(t, q, id)

		_, err := q.RecordFailureAndMaybeRetry(ctx, id, "smtp 451")
		require.NoError(t, err)
		clock.Advance(time.Hour)
		claimOne(t, q, id)

		clock.Advance(time.Second)
		require.NoError(t, q.MarkSent(ctx, id))

		rec := get(t, q, id)
		assert.Equal(t, notifyq.StatusSent, rec.Status)
		require.NotNil(t, rec.SentAt)
		assert.Equal(t, clock.Now(), *rec.SentAt)
		assert.Equal(t, clock.Now(), rec.UpdatedAt)
		assert.Nil(t, rec.ErrorMessage, "error cleared on success")
		assert.Equal(t, 1, rec.Attempts)
		assertInvariants(t, rec)
	})

	t.Run("rejected outside sending", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newQueue(t)
		id := enqueue(t, q, uuid.New(), notifyq.ChannelEmail)
		before := get(t, q, id)

		err := q.MarkSent(ctx, id)
		var terr *notifyq.TransitionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, notifyq.StatusPending, terr.From)
		assert.Equal(t, notifyq.StatusSent, terr.To)
		assert.Equal(t, before, get(t, q, id), "record untouched")
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newQueue(t)
		assert.ErrorIs(t, q.MarkSent(ctx, uuid.New()), notifyq.ErrNotFound)
	})
}

func TestQueue_RecordFailureAndMaybeRetry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("backoff schedule for three attempts", func(t *testing.T) {
		t.Parallel()
		q, _, clock := newQueue(t)
		id := enqueue(t, q, uuid.New(), notifyq.ChannelEmail)

		claimOne(t, q, id)
		retried, err := q.RecordFailureAndMaybeRetry(ctx, id, "first")
		require.NoError(t, err)
		assert.True(t, retried)
		rec := get(t, q, id)
		assert.Equal(t, notifyq.StatusPending, rec.Status)
		assert.Equal(t, 1, rec.Attempts)
		assert.Equal(t, clock.Now().Add(5*time.Minute), rec.ScheduledFor)
		assert.Equal(t, "first", *rec.ErrorMessage)

		clock.Advance(5 * time.Minute)
		claimOne(t, q, id)
		retried, err = q.RecordFailureAndMaybeRetry(ctx, id, "second")
		require.NoError(t, err)
		assert.True(t, retried)
		rec = get(t, q, id)
		assert.Equal(t, 2, rec.Attempts)
		assert.Equal(t, clock.Now().Add(15*time.Minute), rec.ScheduledFor)

		clock.Advance(15 * time.Minute)
		claimOne(t, q, id)
		scheduled := get(t, q, id).ScheduledFor
		clock.Advance(time.Minute)
		retried, err = q.RecordFailureAndMaybeRetry(ctx, id, "third")
		require.NoError(t, err)
		assert.False(t, retried)

		rec = get(t, q, id)
		assert.Equal(t, notifyq.StatusFailed, rec.Status)
		assert.Equal(t, 3, rec.Attempts)
		assert.Equal(t, scheduled, rec.ScheduledFor, "scheduled_for unchanged on final failure")
		assert.Equal(t, "third", *rec.ErrorMessage)
		assertInvariants(t, rec)
	})

	t.Run("sms with two attempts ends failed and is never claimed again", func(t *testing.T) {
		t.Parallel()
		q, _, clock := newQueue(t)
		id := enqueue(t, q, uuid.New(), notifyq.ChannelSMS, func(r *notifyq.EnqueueRequest) { r.MaxAttempts = 2 })

		claimOne(t, q, id)
		assert.Equal(t, notifyq.StatusSending, get(t, q, id).Status)
		_, err := q.RecordFailureAndMaybeRetry(ctx, id, "carrier rejected")
		require.NoError(t, err)

		clock.Advance(time.Hour)
		claimOne(t, q, id)
		retried, err := q.RecordFailureAndMaybeRetry(ctx, id, "carrier rejected")
		require.NoError(t, err)
		assert.False(t, retried)

		rec := get(t, q, id)
		assert.Equal(t, notifyq.StatusFailed, rec.Status)
		assert.Equal(t, 2, rec.Attempts)

		clock.Advance(24 * time.Hour)
		got, err := q.ClaimDue(ctx, 100)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("custom backoff", func(t *testing.T) {
		t.Parallel()
		q, _, clock := newQueue(t, notifyq.WithBackoff(notifyq.Backoff{Base: time.Second, Multiplier: 2}))
		id := enqueue(t, q, uuid.New(), notifyq.ChannelPush)
		claimOne(t, q, id)

		_, err := q.RecordFailureAndMaybeRetry(ctx, id, "")
		require.NoError(t, err)
		rec := get(t, q, id)
		assert.Equal(t, clock.Now().Add(time.Second), rec.ScheduledFor)
		assert.Nil(t, rec.ErrorMessage)
	})

	t.Run("rejected outside sending", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newQueue(t)
		id := enqueue(t, q, uuid.New(), notifyq.ChannelEmail)

		_, err := q.RecordFailureAndMaybeRetry(ctx, id, "nope")
		assert.True(t, notifyq.IsInvalidTransition(err))
		rec := get(t, q, id)
		assert.Zero(t, rec.Attempts)
		assert.Equal(t, notifyq.StatusPending, rec.Status)
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newQueue(t)
		_, err := q.RecordFailureAndMaybeRetry(ctx, uuid.New(), "x")
		assert.ErrorIs(t, err, notifyq.ErrNotFound)
	})

	t.Run("empty message clears the error on final failure", func(t *testing.T) {
		t.Parallel()
		q, _, clock := newQueue(t)
		id := enqueue(t, q, uuid.New(), notifyq.ChannelEmail, func(r *notifyq.EnqueueRequest) { r.MaxAttempts = 2 })

		claimOne(t, q, id)
		_, err := q.RecordFailureAndMaybeRetry(ctx, id, "mailbox full")
		require.NoError(t, err)
		require.NotNil(t, get(t, q, id).ErrorMessage)

		clock.Advance(time.Hour)
		claimOne(t, q, id)
		retried, err := q.RecordFailureAndMaybeRetry(ctx, id, "")
		require.NoError(t, err)
		assert.False(t, retried)

		rec := get(t, q, id)
		assert.Equal(t, notifyq.StatusFailed, rec.Status)
		assert.Nil(t, rec.ErrorMessage)
	})

	t.Run("late report after the lease was reaped and reclaimed", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		store := &reclaimingStore{MemoryStorage: notifyq.NewMemoryStorage(notifyq.WithClock(clock.Now)), clock: clock}
		q, err := notifyq.NewQueue(store)
		require.NoError(t, err)
		id := enqueue(t, q, uuid.New(), notifyq.ChannelPush)
		claimOne(t, q, id)

		retried, err := q.RecordFailureAndMaybeRetry(ctx, id, "gateway timeout")
		assert.False(t, retried)
		assert.True(t, notifyq.IsInvalidTransition(err))

		rec := get(t, q, id)
		assert.Equal(t, notifyq.StatusSending, rec.Status, "the second claim keeps its lease")
		assert.Equal(t, 1, rec.Attempts, "the expired lease stays counted")
		require.NotNil(t, rec.ErrorMessage)
		assert.Equal(t, notifyq.LeaseExpiredMessage, *rec.ErrorMessage)

		require.NoError(t, q.MarkSent(ctx, id), "the second worker can still report")
	})
}

// reclaimingStore expires every lease and lets another worker claim the
// released records right before the first conditional update lands.
type reclaimingStore struct {
	*notifyq.MemoryStorage
	clock *fakeClock
	once  sync.Once
}

func (s *reclaimingStore) Apply(ctx context.Context, id uuid.UUID, m notifyq.Mutation) (*notifyq.Record, error) {
	s.once.Do(func() {
		s.clock.Advance(time.Hour)
		_, _ = s.MemoryStorage.ReleaseStale(ctx, time.Minute, notifyq.LeaseExpiredMessage)
		_, _ = s.MemoryStorage.ClaimDue(ctx, 10, notifyq.ClaimFilter{})
	})
	return s.MemoryStorage.Apply(ctx, id, m)
}

func TestQueue_Cancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("pending is cancelled and counted", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newQueue(t)
		tenant := uuid.New()
		id := enqueue(t, q, tenant, notifyq.ChannelEmail)

		require.NoError(t, q.Cancel(ctx, id))
		assert.Equal(t, notifyq.StatusCancelled, get(t, q, id).Status)

		stats, err := q.GetStats(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.ByStatus[notifyq.StatusCancelled])
		assert.Equal(t, int64(0), stats.ByStatus[notifyq.StatusPending])

		got, err := q.ClaimDue(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("failed is cancelled", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newQueue(t)
		id := enqueue(t, q, uuid.New(), notifyq.ChannelSMS, func(r *notifyq.EnqueueRequest) { r.MaxAttempts = 1 })
		claimOne(t, q, id)
		_, err := q.RecordFailureAndMaybeRetry(ctx, id, "dead number")
		require.NoError(t, err)
		require.Equal(t, notifyq.StatusFailed, get(t, q, id).Status)

		require.NoError(t, q.Cancel(ctx, id))
		assert.Equal(t, notifyq.StatusCancelled, get(t, q, id).Status)
	})

	t.Run("sending is rejected", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newQueue(t)
		id := enqueue(t, q, uuid.New(), notifyq.ChannelEmail)
		claimOne(t, q, id)
		before := get(t, q, id)

		err := q.Cancel(ctx, id)
		assert.ErrorIs(t, err, notifyq.ErrInvalidTransition)
		assert.Equal(t, before, get(t, q, id))
	})

	t.Run("sent and cancelled are no-ops", func(t *testing.T) {
		t.Parallel()
		q, _, clock := newQueue(t)
		id := enqueue(t, q, uuid.New(), notifyq.ChannelEmail)
		claimOne(t, q, id)
		require.NoError(t, q.MarkSent(ctx, id))
		before := get(t, q, id)

		clock.Advance(time.Minute)
		require.NoError(t, q.Cancel(ctx, id))
		assert.Equal(t, before, get(t, q, id), "sent record unchanged")

		other := enqueue(t, q, uuid.New(), notifyq.ChannelEmail)
		require.NoError(t, q.Cancel(ctx, other))
		cancelled := get(t, q, other)
		clock.Advance(time.Minute)
		require.NoError(t, q.Cancel(ctx, other))
		assert.Equal(t, cancelled, get(t, q, other))
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newQueue(t)
		assert.ErrorIs(t, q.Cancel(ctx, uuid.New()), notifyq.ErrNotFound)
	})
}

func TestQueue_InvalidTransitionsLeaveRecordUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q, _, _ := newQueue(t)

	sent := enqueue(t, q, uuid.New(), notifyq.ChannelEmail)
	claimOne(t, q, sent)
	require.NoError(t, q.MarkSent(ctx, sent))
	snapshot := get(t, q, sent)

	_, err := q.RecordFailureAndMaybeRetry(ctx, sent, "late failure")
	assert.True(t, notifyq.IsInvalidTransition(err), "sent -> pending is not allowed")
	assert.True(t, notifyq.IsInvalidTransition(q.MarkSent(ctx, sent)), "sent -> sent is not allowed")
	assert.Equal(t, snapshot, get(t, q, sent))
}

func TestQueue_GetStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("mixed tenant activity", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newQueue(t)
		tenant := uuid.New()

		e1 := enqueue(t, q, tenant, notifyq.ChannelEmail)
		e2 := enqueue(t, q, tenant, notifyq.ChannelEmail)
		enqueue(t, q, tenant, notifyq.ChannelEmail)
		s1 := enqueue(t, q, tenant, notifyq.ChannelSMS, func(r *notifyq.EnqueueRequest) { r.MaxAttempts = 1 })
		enqueue(t, q, tenant, notifyq.ChannelSMS)
		enqueue(t, q, uuid.New(), notifyq.ChannelEmail)

		recs, err := q.ClaimDue(ctx, 100, notifyq.WithClaimTenant(tenant))
		require.NoError(t, err)
		require.Len(t, recs, 5)

		require.NoError(t, q.MarkSent(ctx, e1))
		require.NoError(t, q.MarkSent(ctx, e2))
		_, err = q.RecordFailureAndMaybeRetry(ctx, s1, "bounced")
		require.NoError(t, err)

		stats, err := q.GetStats(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, int64(5), stats.Total)
		assert.Equal(t, int64(2), stats.ByChannel[notifyq.ChannelEmail].Sent)
		assert.Equal(t, int64(0), stats.ByChannel[notifyq.ChannelEmail].Pending, "unfinished email is sending")
		assert.Equal(t, int64(1), stats.ByChannel[notifyq.ChannelSMS].Failed)
		assert.Equal(t, int64(0), stats.ByChannel[notifyq.ChannelSMS].Pending)
		assert.Equal(t, int64(2), stats.ByStatus[notifyq.StatusSending])
		assert.Equal(t, 24*time.Hour, stats.Window)
	})

	t.Run("pending counted per channel", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newQueue(t)
		tenant := uuid.New()
		e1 := enqueue(t, q, tenant, notifyq.ChannelEmail)
		e2 := enqueue(t, q, tenant, notifyq.ChannelEmail)
		enqueue(t, q, tenant, notifyq.ChannelEmail)
		s1 := enqueue(t, q, tenant, notifyq.ChannelSMS, func(r *notifyq.EnqueueRequest) { r.MaxAttempts = 1 })
		enqueue(t, q, tenant, notifyq.ChannelSMS)

		recs, err := q.ClaimDue(ctx, 100, notifyq.WithClaimTenant(tenant))
		require.NoError(t, err)
		for _, r := range recs {
			switch r.ID {
			case e1, e2:
				require.NoError(t, q.MarkSent(ctx, r.ID))
			case s1:
				_, err := q.RecordFailureAndMaybeRetry(ctx, r.ID, "bounced")
				require.NoError(t, err)
			default:
				_, err := q.RecordFailureAndMaybeRetry(ctx, r.ID, "try later")
				require.NoError(t, err)
			}
		}

		stats, err := q.GetStats(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, int64(5), stats.Total)
		assert.Equal(t, notifyq.ChannelStats{Total: 3, Sent: 2, Pending: 1}, stats.ByChannel[notifyq.ChannelEmail])
		assert.Equal(t, notifyq.ChannelStats{Total: 2, Failed: 1, Pending: 1}, stats.ByChannel[notifyq.ChannelSMS])
	})

	t.Run("empty tenant", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newQueue(t)
		stats, err := q.GetStats(ctx, uuid.New())
		require.NoError(t, err)
		assert.Zero(t, stats.Total)
		for _, ch := range notifyq.Channels {
			assert.Equal(t, notifyq.ChannelStats{}, stats.ByChannel[ch])
		}
	})

	t.Run("nil tenant", func(t *testing.T) {
		t.Parallel()
		q, _, _ := newQueue(t)
		_, err := q.GetStats(ctx, uuid.Nil)
		assert.True(t, notifyq.IsValidationError(err))
	})

	t.Run("window excludes old records", func(t *testing.T) {
		t.Parallel()
		q, _, clock := newQueue(t, notifyq.WithStatsWindow(time.Hour))
		tenant := uuid.New()
		enqueue(t, q, tenant, notifyq.ChannelEmail)
		clock.Advance(2 * time.Hour)
		enqueue(t, q, tenant, notifyq.ChannelEmail)

		stats, err := q.GetStats(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Total)
	})
}

func TestQueue_Cleanup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q, store, clock := newQueue(t)
	tenant := uuid.New()

	sent := enqueue(t, q, tenant, notifyq.ChannelEmail)
	claimOne(t, q, sent)
	require.NoError(t, q.MarkSent(ctx, sent))
	cancelled := enqueue(t, q, tenant, notifyq.ChannelEmail)
	require.NoError(t, q.Cancel(ctx, cancelled))
	failed := enqueue(t, q, tenant, notifyq.ChannelSMS, func(r *notifyq.EnqueueRequest) { r.MaxAttempts = 1 })
	claimOne(t, q, failed)
	_, err := q.RecordFailureAndMaybeRetry(ctx, failed, "x")
	require.NoError(t, err)

	n, err := q.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "records inside retention are kept")

	clock.Advance(31 * 24 * time.Hour)
	n, err = q.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = q.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second run deletes nothing")

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, notifyq.StatusFailed, get(t, q, failed).Status)
}

func TestQueue_ReapStuck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q, _, clock := newQueue(t, notifyq.WithLeaseTimeout(10*time.Minute))

	retry := enqueue(t, q, uuid.New(), notifyq.ChannelPush)
	last := enqueue(t, q, uuid.New(), notifyq.ChannelPush, func(r *notifyq.EnqueueRequest) { r.MaxAttempts = 1 })
	claimOne(t, q, retry)

	clock.Advance(5 * time.Minute)
	n, err := q.ReapStuck(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(6 * time.Minute)
	n, err = q.ReapStuck(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rec := get(t, q, retry)
	assert.Equal(t, notifyq.StatusPending, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, notifyq.LeaseExpiredMessage, *rec.ErrorMessage)
	assert.Equal(t, clock.Now(), rec.ScheduledFor)

	rec = get(t, q, last)
	assert.Equal(t, notifyq.StatusFailed, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
	assertInvariants(t, rec)
}
