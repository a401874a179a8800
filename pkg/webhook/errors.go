package webhook

import "errors"

// Delivery errors are classified so callers can tell a rejected request
// (permanent) from an endpoint that may recover (temporary).
var (
	ErrInvalidConfiguration = errors.New("webhook: invalid configuration")
	ErrInvalidURL           = errors.New("webhook: invalid url")
	ErrInvalidPayload       = errors.New("webhook: invalid payload")
	ErrPermanentFailure     = errors.New("webhook: permanent failure")
	ErrTemporaryFailure     = errors.New("webhook: temporary failure")
	ErrTimeout              = errors.New("webhook: request timeout")
	ErrCircuitOpen          = errors.New("webhook: circuit breaker is open")
	ErrUnsupportedChannel   = errors.New("webhook: unsupported channel")
)

// IsCircuitOpen checks if an error indicates the circuit breaker is open
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// IsPermanent reports whether retrying the same request cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanentFailure)
}
