package redis

import "time"

// Config holds the connection settings. Fields are populated from the
// environment via github.com/caarlos0/env.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`                                 // ConnectionURL in the form "redis://:password@localhost:6379/0". Empty disables the in_app channel.
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`       // RetryAttempts is the number of connection attempts.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`      // RetryInterval is the pause between attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`    // ConnectTimeout bounds all attempts together.
	ChannelPrefix  string        `env:"REDIS_CHANNEL_PREFIX" envDefault:"notifyq"` // ChannelPrefix starts every in_app pub/sub channel name.
}
