package notifyq

import "time"

// Config holds the queue policy knobs.
type Config struct {
	DefaultMaxAttempts int           `env:"NOTIFYQ_DEFAULT_MAX_ATTEMPTS" envDefault:"3"`
	MaxClaimBatch      int           `env:"NOTIFYQ_MAX_CLAIM_BATCH" envDefault:"500"`
	StatsWindow        time.Duration `env:"NOTIFYQ_STATS_WINDOW" envDefault:"24h"`
	RetentionPeriod    time.Duration `env:"NOTIFYQ_RETENTION_PERIOD" envDefault:"720h"`
	LeaseTimeout       time.Duration `env:"NOTIFYQ_LEASE_TIMEOUT" envDefault:"15m"`
	BackoffBase        time.Duration `env:"NOTIFYQ_BACKOFF_BASE" envDefault:"5m"`
	BackoffMultiplier  float64       `env:"NOTIFYQ_BACKOFF_MULTIPLIER" envDefault:"3"`
	BackoffMax         time.Duration `env:"NOTIFYQ_BACKOFF_MAX" envDefault:"0"`
	CleanupInterval    time.Duration `env:"NOTIFYQ_CLEANUP_INTERVAL" envDefault:"1h"`
	ReapInterval       time.Duration `env:"NOTIFYQ_REAP_INTERVAL" envDefault:"1m"`
}

// DefaultConfig mirrors the envDefault values for callers that skip env parsing.
func DefaultConfig() Config {
	return Config{
		DefaultMaxAttempts: DefaultMaxAttempts,
		MaxClaimBatch:      500,
		StatsWindow:        24 * time.Hour,
		RetentionPeriod:    30 * 24 * time.Hour,
		LeaseTimeout:       15 * time.Minute,
		BackoffBase:        5 * time.Minute,
		BackoffMultiplier:  3,
		CleanupInterval:    time.Hour,
		ReapInterval:       time.Minute,
	}
}

// Backoff returns the retry policy described by the config.
func (c Config) Backoff() Backoff {
	return Backoff{
		Base:       c.BackoffBase,
		Multiplier: c.BackoffMultiplier,
		Max:        c.BackoffMax,
	}
}
