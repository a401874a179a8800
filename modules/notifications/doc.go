// Package notifications exposes the queue over a small JSON API for
// producers and operators.
//
// Router returns a chi router that the binary mounts next to /healthz.
// Responses use the handler envelope: {"data": ...} on success and
// {"error": {"code": ..., "message": ...}} on failure. MapError fixes the
// status codes:
//
//	validation failure         422 validation_error
//	unknown record             404 not_found
//	cancel of a sending record 409 invalid_transition
//	store unavailable          503 service_unavailable
//	malformed body or path     400 bad_request
//
// The API has no authentication of its own; it is meant to sit behind the
// deployment's internal network or gateway.
package notifications
