package httpserver

import (
	"log/slog"
	"time"
)

// Option configures the HTTP server. Zero values are ignored, so a partly
// filled Config keeps the remaining defaults.
type Option func(*config)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(c *config) {
		if addr != "" {
			c.addr = addr
		}
	}
}

// WithReadHeaderTimeout bounds reading request headers.
func WithReadHeaderTimeout(d time.Duration) Option {
	return setDuration(d, func(c *config) *time.Duration { return &c.readHeaderTimeout })
}

// WithReadTimeout bounds reading the whole request.
func WithReadTimeout(d time.Duration) Option {
	return setDuration(d, func(c *config) *time.Duration { return &c.readTimeout })
}

// WithWriteTimeout bounds writing the response.
func WithWriteTimeout(d time.Duration) Option {
	return setDuration(d, func(c *config) *time.Duration { return &c.writeTimeout })
}

// WithIdleTimeout bounds how long a keep-alive connection waits for the next request.
func WithIdleTimeout(d time.Duration) Option {
	return setDuration(d, func(c *config) *time.Duration { return &c.idleTimeout })
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return setDuration(d, func(c *config) *time.Duration { return &c.shutdownTimeout })
}

// WithLogger sets the logger. Without it the server logs nothing.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStartHook runs h with the bound address once the listener is open.
func WithStartHook(h func(addr string)) Option {
	return func(c *config) {
		if h != nil {
			c.startHooks = append(c.startHooks, h)
		}
	}
}

// WithStopHook runs h after the server has shut down.
func WithStopHook(h func()) Option {
	return func(c *config) {
		if h != nil {
			c.stopHooks = append(c.stopHooks, h)
		}
	}
}

func setDuration(d time.Duration, field func(*config) *time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			*field(c) = d
		}
	}
}
