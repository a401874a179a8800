package notifyq

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Store in process memory for tests and local development
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*Record
	now     func() time.Time

	// Index of pending records, claim candidates
	pending map[uuid.UUID]struct{}
}

// MemoryStorageOption configures a MemoryStorage
type MemoryStorageOption func(*MemoryStorage)

// WithClock replaces the time source. Tests use it to travel through backoff delays.
func WithClock(now func() time.Time) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	ms := &MemoryStorage{
		records: make(map[uuid.UUID]*Record),
		pending: make(map[uuid.UUID]struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

// Create implements Store
func (ms *MemoryStorage) Create(_ context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("record cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.records[rec.ID]; exists {
		return ErrDuplicateID
	}

	now := ms.now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.ScheduledFor.IsZero() || rec.ScheduledFor.Before(now) {
		rec.ScheduledFor = now
	}

	ms.records[rec.ID] = cloneRecord(rec)
	if rec.Status == StatusPending {
		ms.pending[rec.ID] = struct{}{}
	}
	return nil
}

// Get implements Store
func (ms *MemoryStorage) Get(_ context.Context, id uuid.UUID) (*Record, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rec, ok := ms.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// ClaimDue implements Store. Selection and the status flip happen under one lock.
func (ms *MemoryStorage) ClaimDue(_ context.Context, limit int, filter ClaimFilter) ([]Record, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now().UTC()
	due := make([]*Record, 0, len(ms.pending))
	for id := range ms.pending {
		rec := ms.records[id]
		if rec.ScheduledFor.After(now) {
			continue
		}
		if len(filter.Channels) > 0 && !slices.Contains(filter.Channels, rec.Channel) {
			continue
		}
		if filter.TenantID != nil && rec.TenantID != *filter.TenantID {
			continue
		}
		due = append(due, rec)
	}

	slices.SortFunc(due, func(a, b *Record) int {
		if c := a.ScheduledFor.Compare(b.ScheduledFor); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]Record, 0, len(due))
	for _, rec := range due {
		rec.Status = StatusSending
		rec.UpdatedAt = now
		delete(ms.pending, rec.ID)
		claimed = append(claimed, *cloneRecord(rec))
	}
	return claimed, nil
}

// Apply implements Store
func (ms *MemoryStorage) Apply(_ context.Context, id uuid.UUID, m Mutation) (*Record, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	rec, ok := ms.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !m.Matches(rec.Status, rec.Attempts) {
		return nil, &StatusConflictError{ID: id, Current: rec.Status, Attempts: rec.Attempts}
	}

	now := ms.now().UTC()
	rec.Status = m.To
	rec.UpdatedAt = now
	if m.Attempts != nil {
		rec.Attempts = *m.Attempts
	}
	if m.ErrorMessage != nil {
		if *m.ErrorMessage == "" {
			rec.ErrorMessage = nil
		} else {
			msg := *m.ErrorMessage
			rec.ErrorMessage = &msg
		}
	}
	if m.RescheduleIn != nil {
		rec.ScheduledFor = now.Add(*m.RescheduleIn)
	}
	if m.StampSent {
		rec.SentAt = &now
	}

	if rec.Status == StatusPending {
		ms.pending[id] = struct{}{}
	} else {
		delete(ms.pending, id)
	}

	return cloneRecord(rec), nil
}

// Stats implements Store
func (ms *MemoryStorage) Stats(_ context.Context, tenantID uuid.UUID, window time.Duration) (*Stats, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	since := ms.now().UTC().Add(-window)
	stats := NewStats(tenantID, window)
	for _, rec := range ms.records {
		if rec.TenantID != tenantID || rec.CreatedAt.Before(since) {
			continue
		}
		stats.Add(rec.Channel, rec.Status, 1)
	}
	return stats, nil
}

// DeleteTerminal implements Store
func (ms *MemoryStorage) DeleteTerminal(_ context.Context, olderThan time.Duration) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cutoff := ms.now().UTC().Add(-olderThan)
	var deleted int64
	for id, rec := range ms.records {
		if rec.Status.Purgeable() && rec.CreatedAt.Before(cutoff) {
			delete(ms.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// ReleaseStale implements Store
func (ms *MemoryStorage) ReleaseStale(_ context.Context, leaseTimeout time.Duration, reason string) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now().UTC()
	cutoff := now.Add(-leaseTimeout)
	var released int64
	for id, rec := range ms.records {
		if rec.Status != StatusSending || !rec.UpdatedAt.Before(cutoff) {
			continue
		}

		rec.Attempts++
		if rec.Attempts > rec.MaxAttempts {
			rec.Attempts = rec.MaxAttempts
		}
		msg := reason
		rec.ErrorMessage = &msg
		rec.UpdatedAt = now
		if rec.Attempts < rec.MaxAttempts {
			rec.Status = StatusPending
			rec.ScheduledFor = now
			ms.pending[id] = struct{}{}
		} else {
			rec.Status = StatusFailed
		}
		released++
	}
	return released, nil
}

// Len returns the number of stored records.
func (ms *MemoryStorage) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.records)
}

func cloneRecord(rec *Record) *Record {
	c := *rec
	c.TemplateData = maps.Clone(rec.TemplateData)
	c.Metadata = maps.Clone(rec.Metadata)
	if rec.UserID != nil {
		id := *rec.UserID
		c.UserID = &id
	}
	if rec.ErrorMessage != nil {
		msg := *rec.ErrorMessage
		c.ErrorMessage = &msg
	}
	if rec.SentAt != nil {
		t := *rec.SentAt
		c.SentAt = &t
	}
	return &c
}
