package dispatch

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Worker
type Option func(*Worker)

// WithConfig replaces every setting at once. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(w *Worker) {
		WithPollInterval(cfg.PollInterval)(w)
		WithBatchSize(cfg.BatchSize)(w)
		WithMaxConcurrent(cfg.MaxConcurrent)(w)
		WithSendTimeout(cfg.SendTimeout)(w)
		WithMaxClaimBackoff(cfg.MaxClaimBackoff)(w)
	}
}

// WithPollInterval sets how often the worker claims when the queue is idle
func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.cfg.PollInterval = d
		}
	}
}

// WithBatchSize sets the maximum number of records per claim
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.cfg.BatchSize = n
		}
	}
}

// WithMaxConcurrent sets the maximum number of concurrent sends
func WithMaxConcurrent(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.cfg.MaxConcurrent = n
		}
	}
}

// WithSendTimeout bounds each Send call
func WithSendTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.cfg.SendTimeout = d
		}
	}
}

// WithMaxClaimBackoff caps the pause after consecutive claim failures
func WithMaxClaimBackoff(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.cfg.MaxClaimBackoff = d
		}
	}
}

// WithLogger sets the logger for the worker
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}
