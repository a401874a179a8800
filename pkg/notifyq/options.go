package notifyq

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// QueueOption is a functional option for configuring a Queue
type QueueOption func(*queueOptions)

type queueOptions struct {
	defaultMaxAttempts int
	maxClaimBatch      int
	statsWindow        time.Duration
	retention          time.Duration
	leaseTimeout       time.Duration
	backoff            Backoff
	logger             *slog.Logger
}

// WithConfig applies every policy value from cfg. Zero values keep the defaults.
func WithConfig(cfg Config) QueueOption {
	return func(o *queueOptions) {
		WithDefaultMaxAttempts(cfg.DefaultMaxAttempts)(o)
		WithMaxClaimBatch(cfg.MaxClaimBatch)(o)
		WithStatsWindow(cfg.StatsWindow)(o)
		WithRetentionPeriod(cfg.RetentionPeriod)(o)
		WithLeaseTimeout(cfg.LeaseTimeout)(o)
		WithBackoff(cfg.Backoff())(o)
	}
}

// WithDefaultMaxAttempts sets max_attempts for requests that do not carry one
func WithDefaultMaxAttempts(n int) QueueOption {
	return func(o *queueOptions) {
		if n > 0 && n <= MaxAttemptsLimit {
			o.defaultMaxAttempts = n
		}
	}
}

// WithMaxClaimBatch caps the limit accepted by ClaimDue
func WithMaxClaimBatch(n int) QueueOption {
	return func(o *queueOptions) {
		if n > 0 {
			o.maxClaimBatch = n
		}
	}
}

// WithStatsWindow sets the trailing window used by GetStats
func WithStatsWindow(d time.Duration) QueueOption {
	return func(o *queueOptions) {
		if d > 0 {
			o.statsWindow = d
		}
	}
}

// WithRetentionPeriod sets how long sent and cancelled records are kept
func WithRetentionPeriod(d time.Duration) QueueOption {
	return func(o *queueOptions) {
		if d > 0 {
			o.retention = d
		}
	}
}

// WithLeaseTimeout sets how long a record may stay in sending before ReapStuck releases it
func WithLeaseTimeout(d time.Duration) QueueOption {
	return func(o *queueOptions) {
		if d > 0 {
			o.leaseTimeout = d
		}
	}
}

// WithBackoff sets the retry delay policy
func WithBackoff(b Backoff) QueueOption {
	return func(o *queueOptions) {
		if b.Base > 0 {
			o.backoff = b
		}
	}
}

// WithLogger sets the logger for the queue
func WithLogger(logger *slog.Logger) QueueOption {
	return func(o *queueOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// ClaimOption narrows a single ClaimDue call
type ClaimOption func(*ClaimFilter)

// WithClaimChannels restricts the claim to records on the given channels
func WithClaimChannels(channels ...Channel) ClaimOption {
	return func(f *ClaimFilter) {
		f.Channels = append(f.Channels, channels...)
	}
}

// WithClaimTenant restricts the claim to one tenant
func WithClaimTenant(tenantID uuid.UUID) ClaimOption {
	return func(f *ClaimFilter) {
		if tenantID != uuid.Nil {
			f.TenantID = &tenantID
		}
	}
}
