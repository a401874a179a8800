// Package requestid tags every HTTP request with a correlation id.
//
// Middleware reuses a valid X-Request-ID header from the client or generates
// a UUID, stores it in the request context and echoes it in the response.
// FromContext reads it back; LoggerExtractor plugs it into the logger's
// context extractors so every log line written with the request context
// carries request_id.
//
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware)
package requestid
