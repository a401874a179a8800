// Package storetest holds the behavioural suite every notifyq.Store must pass.
//
// Each case works on its own tenant and filters claims by it, so the suite can
// run against a shared database. Cases run sequentially because retention and
// lease cases touch rows across tenants.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyq/pkg/notifyq"
)

// Factory returns a ready store. It is called once per case.
type Factory func(t *testing.T) notifyq.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s notifyq.Store)
	}{
		{"create and get", testCreateAndGet},
		{"create clamps past schedule", testCreateClampsSchedule},
		{"create rejects duplicate id", testCreateDuplicate},
		{"get unknown id", testGetNotFound},
		{"claim due only", testClaimDueOnly},
		{"claim ordering and limit", testClaimOrderingAndLimit},
		{"claim channel filter", testClaimChannelFilter},
		{"claim is exclusive under concurrency", testClaimConcurrent},
		{"apply conditional update", testApply},
		{"apply conflict and missing", testApplyConflict},
		{"apply expected attempts", testApplyExpectAttempts},
		{"stats", testStats},
		{"stats empty", testStatsEmpty},
		{"delete terminal", testDeleteTerminal},
		{"release stale", testReleaseStale},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

// NewRecord builds a pending record for tenant with sensible defaults.
func NewRecord(tenant uuid.UUID, ch notifyq.Channel) *notifyq.Record {
	return &notifyq.Record{
		ID:          uuid.New(),
		TenantID:    tenant,
		Channel:     ch,
		Recipient:   "recipient-" + uuid.NewString()[:8],
		Body:        "hello",
		Priority:    notifyq.PriorityDefault,
		Status:      notifyq.StatusPending,
		MaxAttempts: notifyq.DefaultMaxAttempts,
	}
}

func create(t *testing.T, s notifyq.Store, rec *notifyq.Record) *notifyq.Record {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), rec))
	return rec
}

func claimAll(t *testing.T, s notifyq.Store, tenant uuid.UUID) []notifyq.Record {
	t.Helper()
	got, err := s.ClaimDue(context.Background(), 500, notifyq.ClaimFilter{TenantID: &tenant})
	require.NoError(t, err)
	return got
}

func ids(records []notifyq.Record) []uuid.UUID {
	out := make([]uuid.UUID, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

// settle makes sure the store clock has moved past previously written timestamps.
func settle() {
	time.Sleep(5 * time.Millisecond)
}

func testCreateAndGet(t *testing.T, s notifyq.Store) {
	ctx := context.Background()
	tenant := uuid.New()
	user := uuid.New()

	rec := NewRecord(tenant, notifyq.ChannelEmail)
	rec.UserID = &user
	rec.Subject = "Welcome"
	rec.TemplateID = "welcome"
	rec.TemplateData = map[string]any{"name": "Ann"}
	rec.Metadata = map[string]any{"source": "signup"}
	rec.Priority = notifyq.PriorityHigh

	before := time.Now().Add(-time.Second)
	create(t, s, rec)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, tenant, got.TenantID)
	require.NotNil(t, got.UserID)
	assert.Equal(t, user, *got.UserID)
	assert.Equal(t, notifyq.ChannelEmail, got.Channel)
	assert.Equal(t, rec.Recipient, got.Recipient)
	assert.Equal(t, "Welcome", got.Subject)
	assert.Equal(t, "hello", got.Body)
	assert.Equal(t, "welcome", got.TemplateID)
	assert.Equal(t, "Ann", got.TemplateData["name"])
	assert.Equal(t, "signup", got.Metadata["source"])
	assert.Equal(t, notifyq.PriorityHigh, got.Priority)
	assert.Equal(t, notifyq.StatusPending, got.Status)
	assert.Zero(t, got.Attempts)
	assert.Equal(t, notifyq.DefaultMaxAttempts, got.MaxAttempts)
	assert.Nil(t, got.ErrorMessage)
	assert.Nil(t, got.SentAt)
	assert.True(t, got.CreatedAt.After(before), "created_at is stamped by the store")
	assert.False(t, got.ScheduledFor.Before(got.CreatedAt))
	assert.WithinDuration(t, got.CreatedAt, got.UpdatedAt, time.Second)
}

func testCreateClampsSchedule(t *testing.T, s notifyq.Store) {
	tenant := uuid.New()

	past := create(t, s, func() *notifyq.Record {
		r := NewRecord(tenant, notifyq.ChannelSMS)
		r.ScheduledFor = time.Now().Add(-48 * time.Hour)
		return r
	}())
	future := create(t, s, func() *notifyq.Record {
		r := NewRecord(tenant, notifyq.ChannelSMS)
		r.ScheduledFor = time.Now().Add(time.Hour)
		return r
	}())

	got, err := s.Get(context.Background(), past.ID)
	require.NoError(t, err)
	assert.False(t, got.ScheduledFor.Before(got.CreatedAt))

	got, err = s.Get(context.Background(), future.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), got.ScheduledFor, 5*time.Second)
}

func testCreateDuplicate(t *testing.T, s notifyq.Store) {
	rec := create(t, s, NewRecord(uuid.New(), notifyq.ChannelPush))
	dup := NewRecord(rec.TenantID, notifyq.ChannelPush)
	dup.ID = rec.ID

	err := s.Create(context.Background(), dup)
	assert.ErrorIs(t, err, notifyq.ErrDuplicateID)
}

func testGetNotFound(t *testing.T, s notifyq.Store) {
	_, err := s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, notifyq.ErrNotFound)
}

func testClaimDueOnly(t *testing.T, s notifyq.Store) {
	tenant := uuid.New()
	due := create(t, s, NewRecord(tenant, notifyq.ChannelEmail))
	later := NewRecord(tenant, notifyq.ChannelEmail)
	later.ScheduledFor = time.Now().Add(time.Hour)
	create(t, s, later)

	claimed := claimAll(t, s, tenant)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)
	assert.Equal(t, notifyq.StatusSending, claimed[0].Status)

	got, err := s.Get(context.Background(), due.ID)
	require.NoError(t, err)
	assert.Equal(t, notifyq.StatusSending, got.Status)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	assert.Empty(t, claimAll(t, s, tenant), "claimed rows are not claimable again")
}

func testClaimOrderingAndLimit(t *testing.T, s notifyq.Store) {
	tenant := uuid.New()
	var want []uuid.UUID
	for range 5 {
		rec := create(t, s, NewRecord(tenant, notifyq.ChannelInApp))
		want = append(want, rec.ID)
		settle()
	}

	first, err := s.ClaimDue(context.Background(), 3, notifyq.ClaimFilter{TenantID: &tenant})
	require.NoError(t, err)
	require.Len(t, first, 3)

	rest := claimAll(t, s, tenant)
	require.Len(t, rest, 2)

	assert.ElementsMatch(t, want[:3], ids(first), "oldest due records are claimed first")
	assert.ElementsMatch(t, want[3:], ids(rest))
}

func testClaimChannelFilter(t *testing.T, s notifyq.Store) {
	tenant := uuid.New()
	email := create(t, s, NewRecord(tenant, notifyq.ChannelEmail))
	sms := create(t, s, NewRecord(tenant, notifyq.ChannelSMS))

	got, err := s.ClaimDue(context.Background(), 10, notifyq.ClaimFilter{
		TenantID: &tenant,
		Channels: []notifyq.Channel{notifyq.ChannelSMS},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sms.ID, got[0].ID)

	rec, err := s.Get(context.Background(), email.ID)
	require.NoError(t, err)
	assert.Equal(t, notifyq.StatusPending, rec.Status)
}

func testClaimConcurrent(t *testing.T, s notifyq.Store) {
	const (
		total     = 100
		claimers  = 10
		batchSize = 20
	)
	tenant := uuid.New()
	for range total {
		create(t, s, NewRecord(tenant, notifyq.ChannelEmail))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uuid.UUID]int, total)
		errs []error
	)
	for range claimers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.ClaimDue(context.Background(), batchSize, notifyq.ClaimFilter{TenantID: &tenant})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			for _, r := range got {
				seen[r.ID]++
			}
		}()
	}
	wg.Wait()

	require.NoError(t, errors.Join(errs...))
	assert.Len(t, seen, total, "every record is claimed")
	for id, n := range seen {
		assert.Equal(t, 1, n, "record %s claimed more than once", id)
	}
}

func testApply(t *testing.T, s notifyq.Store) {
	ctx := context.Background()
	tenant := uuid.New()
	rec := create(t, s, NewRecord(tenant, notifyq.ChannelSMS))
	require.Len(t, claimAll(t, s, tenant), 1)

	attempts := 1
	msg := "carrier timeout"
	delay := 5 * time.Minute
	settle()
	got, err := s.Apply(ctx, rec.ID, notifyq.Mutation{
		From:         []notifyq.Status{notifyq.StatusSending},
		To:           notifyq.StatusPending,
		Attempts:     &attempts,
		ErrorMessage: &msg,
		RescheduleIn: &delay,
	})
	require.NoError(t, err)
	assert.Equal(t, notifyq.StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msg, *got.ErrorMessage)
	assert.WithinDuration(t, got.UpdatedAt.Add(delay), got.ScheduledFor, time.Second)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	assert.Empty(t, claimAll(t, s, tenant), "rescheduled record is not due yet")

	// Make it due again, claim it and deliver.
	zero := time.Duration(0)
	_, err = s.Apply(ctx, rec.ID, notifyq.Mutation{
		From:         []notifyq.Status{notifyq.StatusPending},
		To:           notifyq.StatusPending,
		RescheduleIn: &zero,
	})
	require.NoError(t, err)
	require.Len(t, claimAll(t, s, tenant), 1)

	empty := ""
	got, err = s.Apply(ctx, rec.ID, notifyq.Mutation{
		From:         []notifyq.Status{notifyq.StatusSending},
		To:           notifyq.StatusSent,
		ErrorMessage: &empty,
		StampSent:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, notifyq.StatusSent, got.Status)
	assert.Nil(t, got.ErrorMessage)
	require.NotNil(t, got.SentAt)
	assert.Equal(t, 1, got.Attempts, "attempts untouched when not set")
}

func testApplyConflict(t *testing.T, s notifyq.Store) {
	ctx := context.Background()
	rec := create(t, s, NewRecord(uuid.New(), notifyq.ChannelPush))

	_, err := s.Apply(ctx, rec.ID, notifyq.Mutation{
		From: []notifyq.Status{notifyq.StatusSending},
		To:   notifyq.StatusSent,
	})
	var conflict *notifyq.StatusConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, notifyq.StatusPending, conflict.Current)
	assert.Equal(t, rec.ID, conflict.ID)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, notifyq.StatusPending, got.Status, "record untouched on conflict")

	_, err = s.Apply(ctx, uuid.New(), notifyq.Mutation{
		From: []notifyq.Status{notifyq.StatusPending},
		To:   notifyq.StatusCancelled,
	})
	assert.ErrorIs(t, err, notifyq.ErrNotFound)
}

func testStats(t *testing.T, s notifyq.Store) {
	ctx := context.Background()
	tenant := uuid.New()
	other := uuid.New()

	emails := []*notifyq.Record{
		create(t, s, NewRecord(tenant, notifyq.ChannelEmail)),
		create(t, s, NewRecord(tenant, notifyq.ChannelEmail)),
		create(t, s, NewRecord(tenant, notifyq.ChannelEmail)),
	}
	smses := []*notifyq.Record{
		create(t, s, NewRecord(tenant, notifyq.ChannelSMS)),
		create(t, s, NewRecord(tenant, notifyq.ChannelSMS)),
	}
	create(t, s, NewRecord(other, notifyq.ChannelEmail))

	for _, r := range []*notifyq.Record{emails[0], emails[1], smses[0]} {
		_, err := s.Apply(ctx, r.ID, notifyq.Mutation{
			From: []notifyq.Status{notifyq.StatusPending},
			To:   notifyq.StatusSending,
		})
		require.NoError(t, err)
	}
	for _, r := range emails[:2] {
		_, err := s.Apply(ctx, r.ID, notifyq.Mutation{
			From:      []notifyq.Status{notifyq.StatusSending},
			To:        notifyq.StatusSent,
			StampSent: true,
		})
		require.NoError(t, err)
	}
	_, err := s.Apply(ctx, smses[0].ID, notifyq.Mutation{
		From: []notifyq.Status{notifyq.StatusSending},
		To:   notifyq.StatusFailed,
	})
	require.NoError(t, err)

	stats, err := s.Stats(ctx, tenant, 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, tenant, stats.TenantID)
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(2), stats.ByStatus[notifyq.StatusSent])
	assert.Equal(t, int64(1), stats.ByStatus[notifyq.StatusFailed])
	assert.Equal(t, int64(2), stats.ByStatus[notifyq.StatusPending])
	assert.Equal(t, int64(0), stats.ByStatus[notifyq.StatusSending])

	assert.Equal(t, notifyq.ChannelStats{Total: 3, Sent: 2, Pending: 1}, stats.ByChannel[notifyq.ChannelEmail])
	assert.Equal(t, notifyq.ChannelStats{Total: 2, Failed: 1, Pending: 1}, stats.ByChannel[notifyq.ChannelSMS])
	assert.Equal(t, notifyq.ChannelStats{}, stats.ByChannel[notifyq.ChannelPush])
}

func testStatsEmpty(t *testing.T, s notifyq.Store) {
	stats, err := s.Stats(context.Background(), uuid.New(), 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Len(t, stats.ByStatus, len(notifyq.Statuses))
	assert.Len(t, stats.ByChannel, len(notifyq.Channels))
	for _, n := range stats.ByStatus {
		assert.Zero(t, n)
	}
}

func testDeleteTerminal(t *testing.T, s notifyq.Store) {
	ctx := context.Background()
	tenant := uuid.New()

	sent := create(t, s, NewRecord(tenant, notifyq.ChannelEmail))
	cancelled := create(t, s, NewRecord(tenant, notifyq.ChannelEmail))
	failed := create(t, s, NewRecord(tenant, notifyq.ChannelEmail))
	pending := create(t, s, NewRecord(tenant, notifyq.ChannelEmail))

	move := func(id uuid.UUID, to notifyq.Status) {
		_, err := s.Apply(ctx, id, notifyq.Mutation{
			From:      []notifyq.Status{notifyq.StatusPending},
			To:        to,
			StampSent: to == notifyq.StatusSent,
		})
		require.NoError(t, err)
	}
	move(sent.ID, notifyq.StatusSent)
	move(cancelled.ID, notifyq.StatusCancelled)
	move(failed.ID, notifyq.StatusFailed)

	_, err := s.DeleteTerminal(ctx, time.Hour)
	require.NoError(t, err)
	_, err = s.Get(ctx, sent.ID)
	require.NoError(t, err, "recent records are kept")

	settle()
	n, err := s.DeleteTerminal(ctx, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(2))

	for _, id := range []uuid.UUID{sent.ID, cancelled.ID} {
		_, err := s.Get(ctx, id)
		assert.ErrorIs(t, err, notifyq.ErrNotFound)
	}
	for _, id := range []uuid.UUID{failed.ID, pending.ID} {
		_, err := s.Get(ctx, id)
		assert.NoError(t, err)
	}

	n, err = s.DeleteTerminal(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n, "cleanup is idempotent")
}

func testApplyExpectAttempts(t *testing.T, s notifyq.Store) {
	ctx := context.Background()
	tenant := uuid.New()
	rec := create(t, s, NewRecord(tenant, notifyq.ChannelSMS))
	require.Len(t, claimAll(t, s, tenant), 1)

	// The lease expires and another worker claims the record again.
	settle()
	_, err := s.ReleaseStale(ctx, 0, "lease expired")
	require.NoError(t, err)
	require.Len(t, claimAll(t, s, tenant), 1)

	stale, next := 0, 1
	_, err = s.Apply(ctx, rec.ID, notifyq.Mutation{
		From:           []notifyq.Status{notifyq.StatusSending},
		ExpectAttempts: &stale,
		To:             notifyq.StatusPending,
		Attempts:       &next,
	})
	var conflict *notifyq.StatusConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, notifyq.StatusSending, conflict.Current)
	assert.Equal(t, 1, conflict.Attempts)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, notifyq.StatusSending, got.Status, "record untouched on conflict")
	assert.Equal(t, 1, got.Attempts)

	current, after := 1, 2
	got, err = s.Apply(ctx, rec.ID, notifyq.Mutation{
		From:           []notifyq.Status{notifyq.StatusSending},
		ExpectAttempts: &current,
		To:             notifyq.StatusPending,
		Attempts:       &after,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
}

func testReleaseStale(t *testing.T, s notifyq.Store) {
	ctx := context.Background()
	tenant := uuid.New()

	fresh := create(t, s, NewRecord(tenant, notifyq.ChannelPush))
	lastTry := NewRecord(tenant, notifyq.ChannelPush)
	lastTry.Attempts = lastTry.MaxAttempts - 1
	create(t, s, lastTry)
	require.Len(t, claimAll(t, s, tenant), 2)

	n, err := s.ReleaseStale(ctx, time.Hour, "lease expired")
	require.NoError(t, err)
	assert.Zero(t, n, "leases within timeout are kept")

	settle()
	n, err = s.ReleaseStale(ctx, 0, "lease expired")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(2))

	got, err := s.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, notifyq.StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "lease expired", *got.ErrorMessage)

	got, err = s.Get(ctx, lastTry.ID)
	require.NoError(t, err)
	assert.Equal(t, notifyq.StatusFailed, got.Status)
	assert.Equal(t, got.MaxAttempts, got.Attempts)

	require.Len(t, claimAll(t, s, tenant), 1, "released record is claimable again")
}
