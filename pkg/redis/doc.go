// Package redis connects to Redis and delivers in_app notifications over
// pub/sub.
//
// Connect retries the initial ping according to Config. Healthcheck wraps a
// ping for the /healthz endpoint.
//
// Publisher implements the dispatch sender contract for the in_app channel.
// Each record is published as JSON to
//
//	{prefix}:{tenant_id}:{user_id}
//
// falling back to the recipient when the record has no user. Pub/sub does not
// store messages, so a record published while nobody listens is lost unless
// WithRequireSubscriber is set, in which case the send fails and the queue
// schedules a retry.
//
//	client, err := redis.Connect(ctx, cfg)
//	pub, err := redis.NewPublisher(client, redis.WithChannelPrefix(cfg.ChannelPrefix))
package redis
