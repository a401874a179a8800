package notifyq

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifyq/pkg/logger"
)

// Maintainer is the subset of Queue the janitor drives.
type Maintainer interface {
	Cleanup(ctx context.Context) (int64, error)
	ReapStuck(ctx context.Context) (int64, error)
}

// Janitor runs retention cleanup and the stuck-record reaper on timers.
type Janitor struct {
	target          Maintainer
	cleanupInterval time.Duration
	reapInterval    time.Duration
	logger          *slog.Logger
}

// JanitorOption is a functional option for configuring a Janitor
type JanitorOption func(*Janitor)

// WithCleanupInterval sets how often Cleanup runs
func WithCleanupInterval(d time.Duration) JanitorOption {
	return func(j *Janitor) {
		if d > 0 {
			j.cleanupInterval = d
		}
	}
}

// WithReapInterval sets how often ReapStuck runs
func WithReapInterval(d time.Duration) JanitorOption {
	return func(j *Janitor) {
		if d > 0 {
			j.reapInterval = d
		}
	}
}

// WithJanitorLogger sets the logger for the janitor
func WithJanitorLogger(l *slog.Logger) JanitorOption {
	return func(j *Janitor) {
		if l != nil {
			j.logger = l
		}
	}
}

// NewJanitor creates a new Janitor
func NewJanitor(target Maintainer, opts ...JanitorOption) (*Janitor, error) {
	if target == nil {
		return nil, ErrStoreNil
	}

	j := &Janitor{
		target:          target,
		cleanupInterval: time.Hour,
		reapInterval:    time.Minute,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = j.logger.With(logger.Component("notifyq.janitor"))

	return j, nil
}

// Start blocks running maintenance until ctx is cancelled.
// Both jobs run once immediately. Errors are logged and the loop continues.
func (j *Janitor) Start(ctx context.Context) error {
	cleanup := time.NewTicker(j.cleanupInterval)
	defer cleanup.Stop()
	reap := time.NewTicker(j.reapInterval)
	defer reap.Stop()

	j.logger.InfoContext(ctx, "janitor started",
		slog.Duration("cleanup_interval", j.cleanupInterval),
		slog.Duration("reap_interval", j.reapInterval))

	j.reap(ctx)
	j.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.InfoContext(ctx, "janitor stopped")
			return nil
		case <-reap.C:
			j.reap(ctx)
		case <-cleanup.C:
			j.cleanup(ctx)
		}
	}
}

// Run returns a function suitable for errgroup
func (j *Janitor) Run(ctx context.Context) func() error {
	return func() error {
		return j.Start(ctx)
	}
}

func (j *Janitor) cleanup(ctx context.Context) {
	if _, err := j.target.Cleanup(ctx); err != nil && ctx.Err() == nil {
		j.logger.ErrorContext(ctx, "cleanup failed", logger.Error(err))
	}
}

func (j *Janitor) reap(ctx context.Context) {
	if _, err := j.target.ReapStuck(ctx); err != nil && ctx.Err() == nil {
		j.logger.ErrorContext(ctx, "reaping stuck notifications failed", logger.Error(err))
	}
}
