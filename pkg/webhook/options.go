package webhook

import "time"

// DeliveryResult describes one request to an endpoint.
type DeliveryResult struct {
	Success    bool
	StatusCode int
	Duration   time.Duration
	Error      error
}

// DeliveryHook is called after every request, successful or not.
type DeliveryHook func(result DeliveryResult)

// SendOption adjusts a single Post call.
type SendOption func(*sendOptions)

type sendOptions struct {
	timeout    time.Duration
	headers    map[string]string
	secret     string
	breaker    *CircuitBreaker
	onDelivery DeliveryHook
}

func newSendOptions(opts []SendOption) *sendOptions {
	o := &sendOptions{timeout: 10 * time.Second, headers: map[string]string{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithTimeout bounds the request. Non-positive values keep the 10s default.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		o.timeout = positiveOr(timeout, o.timeout)
	}
}

// WithHeader sets a request header. Empty keys or values are ignored.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if key == "" || value == "" {
			return
		}
		o.headers[key] = value
	}
}

// WithHeaders sets several request headers.
func WithHeaders(headers map[string]string) SendOption {
	return func(o *sendOptions) {
		for k, v := range headers {
			WithHeader(k, v)(o)
		}
	}
}

// WithSignature signs the body with HMAC-SHA256 using secret.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) { o.secret = secret }
}

// WithCircuitBreaker guards the endpoint with cb.
func WithCircuitBreaker(cb *CircuitBreaker) SendOption {
	return func(o *sendOptions) { o.breaker = cb }
}

// WithOnDelivery sets a callback invoked after each request.
func WithOnDelivery(hook DeliveryHook) SendOption {
	return func(o *sendOptions) { o.onDelivery = hook }
}

func positiveOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
