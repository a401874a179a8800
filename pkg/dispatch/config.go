package dispatch

import "time"

// Config holds the delivery worker settings.
type Config struct {
	PollInterval    time.Duration `env:"DISPATCH_POLL_INTERVAL" envDefault:"1s"`      // PollInterval is the pause between claims when the queue is idle.
	BatchSize       int           `env:"DISPATCH_BATCH_SIZE" envDefault:"20"`         // BatchSize caps how many records one claim takes.
	MaxConcurrent   int           `env:"DISPATCH_MAX_CONCURRENT" envDefault:"10"`     // MaxConcurrent caps in-flight sends.
	SendTimeout     time.Duration `env:"DISPATCH_SEND_TIMEOUT" envDefault:"30s"`      // SendTimeout bounds a single Sender.Send call.
	MaxClaimBackoff time.Duration `env:"DISPATCH_MAX_CLAIM_BACKOFF" envDefault:"1m"` // MaxClaimBackoff caps the pause after failed claims.
}

// DefaultConfig returns the defaults used when no Config is supplied.
func DefaultConfig() Config {
	return Config{
		PollInterval:    time.Second,
		BatchSize:       20,
		MaxConcurrent:   10,
		SendTimeout:     30 * time.Second,
		MaxClaimBackoff: time.Minute,
	}
}
