// Package mongostore implements notifyq.Store on a MongoDB collection.
//
// Claiming repeats FindOneAndUpdate sorted by scheduled_for, each call flipping
// a single pending document to sending, so two workers can never take the same
// document. Timestamps come from the store clock (the application clock by
// default) truncated to the millisecond precision of BSON dates.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/notifyq/pkg/notifyq"
)

// DefaultCollection is where records live unless WithCollection says otherwise.
const DefaultCollection = "notifications"

const unclaimTimeout = 5 * time.Second

// Store is a MongoDB backed notifyq.Store.
type Store struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ notifyq.Store = (*Store)(nil)

type config struct {
	collection string
	now        func() time.Time
}

// Option configures a Store.
type Option func(*config)

// WithCollection overrides the collection name.
func WithCollection(name string) Option {
	return func(c *config) {
		if name != "" {
			c.collection = name
		}
	}
}

// WithClock replaces the time source. Tests use it to move time forward.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Store over db.
func New(db *mongo.Database, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, notifyq.ErrStoreNil
	}

	cfg := config{collection: DefaultCollection, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store{
		coll: db.Collection(cfg.collection),
		now:  cfg.now,
	}, nil
}

// EnsureIndexes creates the indexes the claim, stats, retention and lease
// queries rely on. It is safe to call on every start.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "scheduled_for", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("notifications_claim"),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("notifications_tenant_created"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("notifications_retention"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}},
			Options: options.Index().SetName("notifications_lease"),
		},
	})
	if err != nil {
		return fmt.Errorf("create notification indexes: %w", err)
	}
	return nil
}

func (s *Store) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Create implements notifyq.Store
func (s *Store) Create(ctx context.Context, rec *notifyq.Record) error {
	if rec == nil {
		return errors.New("record cannot be nil")
	}

	now := s.clock()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.ScheduledFor.Before(now) {
		rec.ScheduledFor = now
	}
	rec.ScheduledFor = rec.ScheduledFor.UTC().Truncate(time.Millisecond)

	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return notifyq.ErrDuplicateID
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// Get implements notifyq.Store
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*notifyq.Record, error) {
	var rec notifyq.Record
	if err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notifyq.ErrNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &rec, nil
}

// ClaimDue implements notifyq.Store
func (s *Store) ClaimDue(ctx context.Context, limit int, filter notifyq.ClaimFilter) ([]notifyq.Record, error) {
	now := s.clock()

	query := bson.D{
		{Key: "status", Value: notifyq.StatusPending},
		{Key: "scheduled_for", Value: bson.D{{Key: "$lte", Value: now}}},
	}
	if len(filter.Channels) > 0 {
		query = append(query, bson.E{Key: "channel", Value: bson.D{{Key: "$in", Value: filter.Channels}}})
	}
	if filter.TenantID != nil {
		query = append(query, bson.E{Key: "tenant_id", Value: *filter.TenantID})
	}

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: notifyq.StatusSending},
		{Key: "updated_at", Value: now},
	}}}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "scheduled_for", Value: 1}, {Key: "created_at", Value: 1}}).
		SetReturnDocument(options.After)

	claimed := make([]notifyq.Record, 0, limit)
	for len(claimed) < limit {
		var rec notifyq.Record
		err := s.coll.FindOneAndUpdate(ctx, query, update, opts).Decode(&rec)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			err = fmt.Errorf("claim notification: %w", err)
			if len(claimed) == 0 {
				return nil, err
			}
			return nil, errors.Join(err, s.unclaim(ctx, claimed, now))
		}
		claimed = append(claimed, rec)
	}
	return claimed, nil
}

// unclaim returns documents flipped by an aborted claim to pending. It matches
// on the claim timestamp so a document already moved on is left alone.
func (s *Store) unclaim(ctx context.Context, claimed []notifyq.Record, claimedAt time.Time) error {
	ids := make([]uuid.UUID, 0, len(claimed))
	for _, rec := range claimed {
		ids = append(ids, rec.ID)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unclaimTimeout)
	defer cancel()

	_, err := s.coll.UpdateMany(ctx,
		bson.D{
			{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}},
			{Key: "status", Value: notifyq.StatusSending},
			{Key: "updated_at", Value: claimedAt},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: notifyq.StatusPending},
			{Key: "updated_at", Value: s.clock()},
		}}},
	)
	if err != nil {
		return fmt.Errorf("release partial claim of %d notifications: %w", len(ids), err)
	}
	return nil
}

// Apply implements notifyq.Store
func (s *Store) Apply(ctx context.Context, id uuid.UUID, m notifyq.Mutation) (*notifyq.Record, error) {
	now := s.clock()

	set := bson.D{
		{Key: "status", Value: m.To},
		{Key: "updated_at", Value: now},
	}
	var unset bson.D
	if m.Attempts != nil {
		set = append(set, bson.E{Key: "attempts", Value: *m.Attempts})
	}
	if m.ErrorMessage != nil {
		if *m.ErrorMessage == "" {
			unset = append(unset, bson.E{Key: "error_message", Value: ""})
		} else {
			set = append(set, bson.E{Key: "error_message", Value: *m.ErrorMessage})
		}
	}
	if m.RescheduleIn != nil {
		set = append(set, bson.E{Key: "scheduled_for", Value: now.Add(*m.RescheduleIn)})
	}
	if m.StampSent {
		set = append(set, bson.E{Key: "sent_at", Value: now})
	}

	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "status", Value: bson.D{{Key: "$in", Value: m.From}}},
	}
	if m.ExpectAttempts != nil {
		filter = append(filter, bson.E{Key: "attempts", Value: *m.ExpectAttempts})
	}

	var rec notifyq.Record
	err := s.coll.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&rec)
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("update notification: %w", err)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, &notifyq.StatusConflictError{ID: id, Current: current.Status, Attempts: current.Attempts}
}

type statsRow struct {
	Key struct {
		Channel notifyq.Channel `bson:"channel"`
		Status  notifyq.Status  `bson:"status"`
	} `bson:"_id"`
	Count int64 `bson:"count"`
}

// Stats implements notifyq.Store
func (s *Store) Stats(ctx context.Context, tenantID uuid.UUID, window time.Duration) (*notifyq.Stats, error) {
	since := s.clock().Add(-window)

	cursor, err := s.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "tenant_id", Value: tenantID},
			{Key: "created_at", Value: bson.D{{Key: "$gte", Value: since}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "channel", Value: "$channel"}, {Key: "status", Value: "$status"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate notifications: %w", err)
	}

	var rows []statsRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("aggregate notifications: %w", err)
	}

	stats := notifyq.NewStats(tenantID, window)
	for _, row := range rows {
		stats.Add(row.Key.Channel, row.Key.Status, row.Count)
	}
	return stats, nil
}

// DeleteTerminal implements notifyq.Store
func (s *Store) DeleteTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.clock().Add(-olderThan)

	res, err := s.coll.DeleteMany(ctx, bson.D{
		{Key: "status", Value: bson.D{{Key: "$in", Value: []notifyq.Status{notifyq.StatusSent, notifyq.StatusCancelled}}}},
		{Key: "created_at", Value: bson.D{{Key: "$lt", Value: cutoff}}},
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired notifications: %w", err)
	}
	return res.DeletedCount, nil
}

// ReleaseStale implements notifyq.Store
func (s *Store) ReleaseStale(ctx context.Context, leaseTimeout time.Duration, reason string) (int64, error) {
	now := s.clock()
	next := bson.D{{Key: "$add", Value: bson.A{"$attempts", 1}}}
	retry := bson.D{{Key: "$lt", Value: bson.A{next, "$max_attempts"}}}

	res, err := s.coll.UpdateMany(ctx,
		bson.D{
			{Key: "status", Value: notifyq.StatusSending},
			{Key: "updated_at", Value: bson.D{{Key: "$lt", Value: now.Add(-leaseTimeout)}}},
		},
		mongo.Pipeline{
			{{Key: "$set", Value: bson.D{
				{Key: "attempts", Value: bson.D{{Key: "$min", Value: bson.A{next, "$max_attempts"}}}},
				{Key: "status", Value: bson.D{{Key: "$cond", Value: bson.A{retry, notifyq.StatusPending, notifyq.StatusFailed}}}},
				{Key: "scheduled_for", Value: bson.D{{Key: "$cond", Value: bson.A{retry, now, "$scheduled_for"}}}},
				{Key: "error_message", Value: reason},
				{Key: "updated_at", Value: now},
			}}},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("release stale notifications: %w", err)
	}
	return res.ModifiedCount, nil
}
