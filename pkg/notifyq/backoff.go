package notifyq

import (
	"math"
	"time"
)

// Backoff computes the delay before the n-th retry of a failed delivery.
// Delay(n) = Base * Multiplier^(n-1), capped at Max when Max is positive.
type Backoff struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
}

// DefaultBackoff yields 5m, 15m, 45m, ...
func DefaultBackoff() Backoff {
	return Backoff{
		Base:       5 * time.Minute,
		Multiplier: 3,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := b.Base
	if base <= 0 {
		base = 5 * time.Minute
	}
	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = 3
	}

	d := time.Duration(math.MaxInt64)
	if interval := float64(base) * math.Pow(multiplier, float64(attempt-1)); interval < float64(math.MaxInt64) {
		d = time.Duration(interval)
	}

	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// Decision is the outcome of a failed delivery attempt.
type Decision struct {
	// Attempts is the new attempt count to persist.
	Attempts int
	// Retry is true when the record goes back to pending.
	Retry bool
	// Delay is how far in the future the retry is scheduled. Zero when Retry is false.
	Delay time.Duration
}

// NextAttempt decides what happens after a failed attempt. It is a pure function
// of the current counters and the backoff policy.
func NextAttempt(attempts, maxAttempts int, b Backoff) Decision {
	next := attempts + 1
	if maxAttempts > 0 && next > maxAttempts {
		next = maxAttempts
	}
	if next < maxAttempts {
		return Decision{Attempts: next, Retry: true, Delay: b.Delay(next)}
	}
	return Decision{Attempts: next}
}
