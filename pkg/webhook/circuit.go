package webhook

import (
	"sync"
	"time"
)

// CircuitState is the breaker position.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // requests pass
	CircuitOpen                         // requests fail fast with ErrCircuitOpen
	CircuitHalfOpen                     // trial requests pass
)

var circuitStateNames = [...]string{
	CircuitClosed:   "closed",
	CircuitOpen:     "open",
	CircuitHalfOpen: "half-open",
}

func (s CircuitState) String() string {
	if s < 0 || int(s) >= len(circuitStateNames) {
		return "unknown"
	}
	return circuitStateNames[s]
}

// CircuitBreaker stops calls to a gateway after consecutive failures. While
// open, sends fail fast with ErrCircuitOpen and the queue counts them as
// failed attempts. Share one instance per endpoint.
type CircuitBreaker struct {
	maxFailures int
	minTrials   int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    CircuitState
	streak   int // consecutive failures while closed, successes while half-open
	openedAt time.Time
}

// NewCircuitBreaker opens after failureThreshold consecutive failures, stays
// open for recoveryTimeout, then closes after successThreshold successful
// trials. Non-positive values become 5, 2 and 30s.
func NewCircuitBreaker(failureThreshold, successThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	cb := &CircuitBreaker{
		maxFailures: failureThreshold,
		minTrials:   successThreshold,
		cooldown:    recoveryTimeout,
		now:         time.Now,
	}
	if cb.maxFailures <= 0 {
		cb.maxFailures = 5
	}
	if cb.minTrials <= 0 {
		cb.minTrials = 2
	}
	if cb.cooldown <= 0 {
		cb.cooldown = 30 * time.Second
	}
	return cb
}

// Allow reports whether a request may go out.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.advance() != CircuitOpen
}

// State returns the current position, moving open to half-open once the
// cooldown has elapsed.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.advance()
}

// RecordSuccess records a delivered request.
func (cb *CircuitBreaker) RecordSuccess() { cb.observe(true) }

// RecordFailure records a failed request. A failed trial reopens at once.
func (cb *CircuitBreaker) RecordFailure() { cb.observe(false) }

// Reset closes the breaker.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.moveTo(CircuitClosed)
}

func (cb *CircuitBreaker) observe(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch st := cb.advance(); {
	case st == CircuitClosed && ok:
		cb.streak = 0
	case st == CircuitClosed:
		if cb.streak++; cb.streak >= cb.maxFailures {
			cb.moveTo(CircuitOpen)
		}
	case st == CircuitHalfOpen && ok:
		if cb.streak++; cb.streak >= cb.minTrials {
			cb.moveTo(CircuitClosed)
		}
	case st == CircuitHalfOpen:
		cb.moveTo(CircuitOpen)
	}
}

// advance applies the cooldown. Callers hold mu.
func (cb *CircuitBreaker) advance() CircuitState {
	if cb.state == CircuitOpen && cb.now().Sub(cb.openedAt) > cb.cooldown {
		cb.moveTo(CircuitHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) moveTo(s CircuitState) {
	cb.state = s
	cb.streak = 0
	if s == CircuitOpen {
		cb.openedAt = cb.now()
	}
}
