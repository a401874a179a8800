// Package pgstore implements notifyq.Store on PostgreSQL with pgx.
//
// Claiming uses a single UPDATE over a FOR UPDATE SKIP LOCKED subselect, so
// concurrent workers never receive the same row. Every timestamp comes from
// the database clock. The schema lives in internal/db/migrations.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/notifyq/pkg/notifyq"
	"github.com/dmitrymomot/notifyq/pkg/pg"
)

// DB is the subset of *pgxpool.Pool the store needs. A pgx.Tx satisfies it too.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL backed notifyq.Store.
type Store struct {
	db DB
}

var _ notifyq.Store = (*Store)(nil)

// New creates a Store over db.
func New(db DB) (*Store, error) {
	if db == nil {
		return nil, notifyq.ErrStoreNil
	}
	return &Store{db: db}, nil
}

const columns = `id, tenant_id, user_id, channel, recipient, subject, body, template_id, template_data,
	priority, status, attempts, max_attempts, error_message, scheduled_for, sent_at,
	created_at, updated_at, metadata`

const claimedColumns = `n.id, n.tenant_id, n.user_id, n.channel, n.recipient, n.subject, n.body, n.template_id, n.template_data,
	n.priority, n.status, n.attempts, n.max_attempts, n.error_message, n.scheduled_for, n.sent_at,
	n.created_at, n.updated_at, n.metadata`

const insertQuery = `
INSERT INTO notifications (
	id, tenant_id, user_id, channel, recipient, subject, body, template_id, template_data,
	priority, status, attempts, max_attempts, error_message, scheduled_for, metadata
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9,
	$10, $11, $12, $13, $14, GREATEST(COALESCE($15::timestamptz, now()), now()), $16
)
RETURNING scheduled_for, created_at, updated_at`

// Create implements notifyq.Store
func (s *Store) Create(ctx context.Context, rec *notifyq.Record) error {
	if rec == nil {
		return errors.New("record cannot be nil")
	}

	templateData, err := encodeJSON(rec.TemplateData)
	if err != nil {
		return fmt.Errorf("encode template data: %w", err)
	}
	metadata, err := encodeJSON(rec.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	var scheduledFor *time.Time
	if !rec.ScheduledFor.IsZero() {
		scheduledFor = &rec.ScheduledFor
	}

	err = s.db.QueryRow(ctx, insertQuery,
		rec.ID, rec.TenantID, rec.UserID, string(rec.Channel), rec.Recipient, rec.Subject, rec.Body,
		rec.TemplateID, templateData, int16(rec.Priority), string(rec.Status), rec.Attempts, rec.MaxAttempts,
		rec.ErrorMessage, scheduledFor, metadata,
	).Scan(&rec.ScheduledFor, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return notifyq.ErrDuplicateID
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// Get implements notifyq.Store
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*notifyq.Record, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx, `SELECT `+columns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, notifyq.ErrNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return rec, nil
}

const claimQuery = `
UPDATE notifications n
SET status = 'sending', updated_at = now()
FROM (
	SELECT id FROM notifications
	WHERE status = 'pending'
		AND scheduled_for <= now()
		AND ($2::text[] IS NULL OR channel = ANY($2::text[]))
		AND ($3::uuid IS NULL OR tenant_id = $3::uuid)
	ORDER BY scheduled_for, created_at
	LIMIT $1
	FOR UPDATE SKIP LOCKED
) due
WHERE n.id = due.id AND n.status = 'pending'
RETURNING ` + claimedColumns

// ClaimDue implements notifyq.Store. RETURNING does not preserve the subselect
// order; the queue sorts the batch.
func (s *Store) ClaimDue(ctx context.Context, limit int, filter notifyq.ClaimFilter) ([]notifyq.Record, error) {
	var channels []string
	for _, ch := range filter.Channels {
		channels = append(channels, string(ch))
	}

	rows, err := s.db.Query(ctx, claimQuery, limit, channels, filter.TenantID)
	if err != nil {
		return nil, fmt.Errorf("claim notifications: %w", err)
	}
	defer rows.Close()

	var claimed []notifyq.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed notification: %w", err)
		}
		claimed = append(claimed, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim notifications: %w", err)
	}
	return claimed, nil
}

const applyQuery = `
UPDATE notifications SET
	status = $2,
	updated_at = now(),
	attempts = COALESCE($3::int, attempts),
	error_message = CASE WHEN $4::text IS NULL THEN error_message ELSE NULLIF($4::text, '') END,
	scheduled_for = CASE WHEN $5::float8 IS NULL THEN scheduled_for ELSE now() + make_interval(secs => $5::float8) END,
	sent_at = CASE WHEN $6::bool THEN now() ELSE sent_at END
WHERE id = $1 AND status = ANY($7::text[]) AND ($8::int IS NULL OR attempts = $8::int)
RETURNING ` + columns

// Apply implements notifyq.Store
func (s *Store) Apply(ctx context.Context, id uuid.UUID, m notifyq.Mutation) (*notifyq.Record, error) {
	from := make([]string, 0, len(m.From))
	for _, st := range m.From {
		from = append(from, string(st))
	}

	var reschedule *float64
	if m.RescheduleIn != nil {
		secs := m.RescheduleIn.Seconds()
		reschedule = &secs
	}

	rec, err := scanRecord(s.db.QueryRow(ctx, applyQuery,
		id, string(m.To), m.Attempts, m.ErrorMessage, reschedule, m.StampSent, from, m.ExpectAttempts,
	))
	if err == nil {
		return rec, nil
	}
	if !pg.IsNotFoundError(err) {
		return nil, fmt.Errorf("update notification: %w", err)
	}

	var (
		current  string
		attempts int
	)
	err = s.db.QueryRow(ctx, `SELECT status, attempts FROM notifications WHERE id = $1`, id).Scan(&current, &attempts)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, notifyq.ErrNotFound
		}
		return nil, fmt.Errorf("read notification status: %w", err)
	}
	return nil, &notifyq.StatusConflictError{ID: id, Current: notifyq.Status(current), Attempts: attempts}
}

const statsQuery = `
SELECT channel, status, count(*)
FROM notifications
WHERE tenant_id = $1 AND created_at >= now() - make_interval(secs => $2::float8)
GROUP BY channel, status`

// Stats implements notifyq.Store
func (s *Store) Stats(ctx context.Context, tenantID uuid.UUID, window time.Duration) (*notifyq.Stats, error) {
	rows, err := s.db.Query(ctx, statsQuery, tenantID, window.Seconds())
	if err != nil {
		return nil, fmt.Errorf("aggregate notifications: %w", err)
	}
	defer rows.Close()

	stats := notifyq.NewStats(tenantID, window)
	for rows.Next() {
		var (
			channel, status string
			n               int64
		)
		if err := rows.Scan(&channel, &status, &n); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats.Add(notifyq.Channel(channel), notifyq.Status(status), n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregate notifications: %w", err)
	}
	return stats, nil
}

// DeleteTerminal implements notifyq.Store
func (s *Store) DeleteTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `
DELETE FROM notifications
WHERE status IN ('sent', 'cancelled')
	AND created_at < now() - make_interval(secs => $1::float8)`, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("delete expired notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

const releaseQuery = `
UPDATE notifications SET
	attempts = LEAST(attempts + 1, max_attempts),
	status = CASE WHEN attempts + 1 < max_attempts THEN 'pending' ELSE 'failed' END,
	scheduled_for = CASE WHEN attempts + 1 < max_attempts THEN now() ELSE scheduled_for END,
	error_message = $2,
	updated_at = now()
WHERE status = 'sending'
	AND updated_at < now() - make_interval(secs => $1::float8)`

// ReleaseStale implements notifyq.Store
func (s *Store) ReleaseStale(ctx context.Context, leaseTimeout time.Duration, reason string) (int64, error) {
	tag, err := s.db.Exec(ctx, releaseQuery, leaseTimeout.Seconds(), reason)
	if err != nil {
		return 0, fmt.Errorf("release stale notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (*notifyq.Record, error) {
	var (
		rec                    notifyq.Record
		channel, status        string
		priority               int16
		templateData, metadata []byte
	)
	err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.UserID, &channel, &rec.Recipient, &rec.Subject, &rec.Body,
		&rec.TemplateID, &templateData, &priority, &status, &rec.Attempts, &rec.MaxAttempts,
		&rec.ErrorMessage, &rec.ScheduledFor, &rec.SentAt, &rec.CreatedAt, &rec.UpdatedAt, &metadata,
	)
	if err != nil {
		return nil, err
	}

	rec.Channel = notifyq.Channel(channel)
	rec.Status = notifyq.Status(status)
	rec.Priority = notifyq.Priority(priority)
	if rec.TemplateData, err = decodeJSON(templateData); err != nil {
		return nil, fmt.Errorf("decode template data: %w", err)
	}
	if rec.Metadata, err = decodeJSON(metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &rec, nil
}

func encodeJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func decodeJSON(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
