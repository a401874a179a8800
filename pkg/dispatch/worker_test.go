package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyq/pkg/dispatch"
	"github.com/dmitrymomot/notifyq/pkg/notifyq"
)

func newQueue(t *testing.T) *notifyq.Queue {
	t.Helper()
	q, err := notifyq.NewQueue(notifyq.NewMemoryStorage())
	require.NoError(t, err)
	return q
}

func enqueue(t *testing.T, q *notifyq.Queue, tenant uuid.UUID, ch notifyq.Channel) uuid.UUID {
	t.Helper()
	id, err := q.Enqueue(context.Background(), notifyq.EnqueueRequest{
		TenantID:  tenant,
		Channel:   ch,
		Recipient: "someone",
		Subject:   "Hi",
		Body:      "hello",
	})
	require.NoError(t, err)
	return id
}

func status(t *testing.T, q *notifyq.Queue, id uuid.UUID) notifyq.Status {
	t.Helper()
	rec, err := q.Get(context.Background(), id)
	require.NoError(t, err)
	return rec.Status
}

func startWorker(t *testing.T, q dispatch.Queue, senders []dispatch.Sender, opts ...dispatch.Option) *dispatch.Worker {
	t.Helper()
	opts = append([]dispatch.Option{dispatch.WithPollInterval(5 * time.Millisecond)}, opts...)
	w, err := dispatch.NewWorker(q, opts...)
	require.NoError(t, err)
	require.NoError(t, w.RegisterSender(senders...))
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestNewWorker(t *testing.T) {
	t.Parallel()

	_, err := dispatch.NewWorker(nil)
	assert.ErrorIs(t, err, dispatch.ErrQueueNil)

	w, err := dispatch.NewWorker(newQueue(t), dispatch.WithConfig(dispatch.DefaultConfig()))
	require.NoError(t, err)

	assert.ErrorIs(t, w.Start(context.Background()), dispatch.ErrNoSenders)
	assert.ErrorIs(t, w.Stop(), dispatch.ErrNotStarted)

	bad := dispatch.SenderFunc("fax", func(context.Context, notifyq.Record) error { return nil })
	assert.ErrorIs(t, w.RegisterSender(bad), dispatch.ErrInvalidSender)

	id, host, pid := w.WorkerInfo()
	assert.NotEmpty(t, id)
	assert.NotEmpty(t, host)
	assert.Positive(t, pid)
}

func TestWorker_Lifecycle(t *testing.T) {
	t.Parallel()

	w, err := dispatch.NewWorker(newQueue(t))
	require.NoError(t, err)
	require.NoError(t, w.RegisterSender(
		dispatch.SenderFunc(notifyq.ChannelPush, func(context.Context, notifyq.Record) error { return nil }),
		dispatch.SenderFunc(notifyq.ChannelEmail, func(context.Context, notifyq.Record) error { return nil }),
	))
	assert.Equal(t, []notifyq.Channel{notifyq.ChannelEmail, notifyq.ChannelPush}, w.Channels())

	require.NoError(t, w.Start(context.Background()))
	assert.ErrorIs(t, w.Start(context.Background()), dispatch.ErrAlreadyStarted)
	assert.ErrorIs(t, w.RegisterSender(dispatch.SenderFunc(notifyq.ChannelSMS, nil)), dispatch.ErrAlreadyStarted)
	require.NoError(t, w.Stop())
	assert.ErrorIs(t, w.Stop(), dispatch.ErrNotStarted)
}

func TestWorker_DeliversOnlyServedChannels(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	tenant := uuid.New()

	var emails []uuid.UUID
	for range 5 {
		emails = append(emails, enqueue(t, q, tenant, notifyq.ChannelEmail))
	}
	sms := enqueue(t, q, tenant, notifyq.ChannelSMS)

	var sent sync.Map
	startWorker(t, q, []dispatch.Sender{
		dispatch.SenderFunc(notifyq.ChannelEmail, func(_ context.Context, rec notifyq.Record) error {
			sent.Store(rec.ID, rec.Recipient)
			return nil
		}),
	})

	assert.Eventually(t, func() bool {
		for _, id := range emails {
			if status(t, q, id) != notifyq.StatusSent {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	for _, id := range emails {
		_, ok := sent.Load(id)
		assert.True(t, ok)
	}
	assert.Equal(t, notifyq.StatusPending, status(t, q, sms), "no sender for sms, record is never claimed")
}

func TestWorker_FailureSchedulesRetry(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	id := enqueue(t, q, uuid.New(), notifyq.ChannelSMS)

	var calls atomic.Int32
	startWorker(t, q, []dispatch.Sender{
		dispatch.SenderFunc(notifyq.ChannelSMS, func(context.Context, notifyq.Record) error {
			calls.Add(1)
			return errors.New("carrier rejected: 503")
		}),
	})

	assert.Eventually(t, func() bool {
		rec, err := q.Get(context.Background(), id)
		return err == nil && rec.Status == notifyq.StatusPending && rec.Attempts == 1
	}, time.Second, 5*time.Millisecond)

	rec, err := q.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec.ErrorMessage)
	assert.Equal(t, "carrier rejected: 503", *rec.ErrorMessage)
	assert.WithinDuration(t, rec.UpdatedAt.Add(5*time.Minute), rec.ScheduledFor, time.Second)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "retry waits for its backoff")
}

func TestWorker_RecoversSenderPanic(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	id := enqueue(t, q, uuid.New(), notifyq.ChannelPush)

	startWorker(t, q, []dispatch.Sender{
		dispatch.SenderFunc(notifyq.ChannelPush, func(context.Context, notifyq.Record) error {
			panic("device token table missing")
		}),
	})

	assert.Eventually(t, func() bool {
		rec, err := q.Get(context.Background(), id)
		return err == nil && rec.Attempts == 1
	}, time.Second, 5*time.Millisecond)

	rec, err := q.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec.ErrorMessage)
	assert.Contains(t, *rec.ErrorMessage, "panicked")
	assert.Contains(t, *rec.ErrorMessage, "device token table missing")
}

func TestWorker_BoundsConcurrency(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	tenant := uuid.New()
	for range 10 {
		enqueue(t, q, tenant, notifyq.ChannelInApp)
	}

	var inFlight, peak, done atomic.Int32
	startWorker(t, q, []dispatch.Sender{
		dispatch.SenderFunc(notifyq.ChannelInApp, func(context.Context, notifyq.Record) error {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			done.Add(1)
			return nil
		}),
	}, dispatch.WithMaxConcurrent(2), dispatch.WithBatchSize(5))

	assert.Eventually(t, func() bool { return done.Load() == 10 }, 2*time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestWorker_StopWaitsForInFlightSends(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	id := enqueue(t, q, uuid.New(), notifyq.ChannelEmail)

	started := make(chan struct{})
	release := make(chan struct{})
	w, err := dispatch.NewWorker(q, dispatch.WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.RegisterSender(dispatch.SenderFunc(notifyq.ChannelEmail, func(ctx context.Context, _ notifyq.Record) error {
		close(started)
		<-release
		return ctx.Err()
	})))

	ctx, cancel := context.WithCancel(context.Background())
	run := w.Run(ctx)
	runErr := make(chan error, 1)
	go func() { runErr <- run() }()

	<-started
	cancel()

	select {
	case <-runErr:
		t.Fatal("worker stopped before the in-flight send finished")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	assert.Equal(t, notifyq.StatusSent, status(t, q, id), "send context survives shutdown and the outcome is reported")
}

type failingQueue struct {
	claims atomic.Int32
}

func (f *failingQueue) ClaimDue(context.Context, int, ...notifyq.ClaimOption) ([]notifyq.Record, error) {
	f.claims.Add(1)
	return nil, notifyq.ErrStoreRead
}

func (f *failingQueue) MarkSent(context.Context, uuid.UUID) error { return nil }

func (f *failingQueue) RecordFailureAndMaybeRetry(context.Context, uuid.UUID, string) (bool, error) {
	return false, nil
}

func TestWorker_BacksOffOnClaimErrors(t *testing.T) {
	t.Parallel()
	q := &failingQueue{}

	w := startWorker(t, q, []dispatch.Sender{
		dispatch.SenderFunc(notifyq.ChannelEmail, func(context.Context, notifyq.Record) error { return nil }),
	}, dispatch.WithPollInterval(10*time.Millisecond), dispatch.WithMaxClaimBackoff(40*time.Millisecond))

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, w.Stop())

	// Without backoff a 10ms poll would claim about 20 times.
	claims := q.claims.Load()
	assert.GreaterOrEqual(t, claims, int32(3))
	assert.LessOrEqual(t, claims, int32(10))
}
