package notifyq_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/notifyq/pkg/notifyq"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context, rec *notifyq.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *mockStore) Get(ctx context.Context, id uuid.UUID) (*notifyq.Record, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*notifyq.Record)
	return rec, args.Error(1)
}

func (m *mockStore) ClaimDue(ctx context.Context, limit int, filter notifyq.ClaimFilter) ([]notifyq.Record, error) {
	args := m.Called(ctx, limit, filter)
	recs, _ := args.Get(0).([]notifyq.Record)
	return recs, args.Error(1)
}

func (m *mockStore) Apply(ctx context.Context, id uuid.UUID, mut notifyq.Mutation) (*notifyq.Record, error) {
	args := m.Called(ctx, id, mut)
	rec, _ := args.Get(0).(*notifyq.Record)
	return rec, args.Error(1)
}

func (m *mockStore) Stats(ctx context.Context, tenantID uuid.UUID, window time.Duration) (*notifyq.Stats, error) {
	args := m.Called(ctx, tenantID, window)
	stats, _ := args.Get(0).(*notifyq.Stats)
	return stats, args.Error(1)
}

func (m *mockStore) DeleteTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ReleaseStale(ctx context.Context, leaseTimeout time.Duration, reason string) (int64, error) {
	args := m.Called(ctx, leaseTimeout, reason)
	return args.Get(0).(int64), args.Error(1)
}
