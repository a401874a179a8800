package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready within the given time period")
	ErrEmptyConnectionURL           = errors.New("empty redis connection URL")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
	ErrClientNil                    = errors.New("redis client is nil")
	ErrNoSubscribers                = errors.New("no subscribers for in_app notification")
	ErrUnsupportedChannel           = errors.New("publisher only delivers in_app notifications")
)
