// Package httpserver runs the ops HTTP endpoint with graceful shutdown.
//
// Run blocks until its context is cancelled, then stops accepting
// connections and drains in-flight requests within the shutdown timeout. The
// binary runs it inside an errgroup next to the dispatch worker and the
// janitor, so there is no signal handling here.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// HealthCheckHandler turns named dependency checks (store, redis) into a
// readiness endpoint that answers 200 or 503 with a JSON body listing each
// check.
//
// Start failures are wrapped in ErrStart and shutdown failures in
// ErrShutdown.
package httpserver
