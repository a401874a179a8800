// Package binder fills request structs from HTTP requests.
//
// JSON decodes the body strictly: application/json only, unknown fields
// rejected, a single value per body and a 1MB default size limit. Path binds
// router parameters by `path` struct tags and understands
// encoding.TextUnmarshaler, so uuid.UUID fields parse directly.
//
// Binders have the signature func(*http.Request, any) error and are passed to
// handler.Wrap with handler.WithBinders. Every error wraps one of the package
// sentinels (ErrFailedToParseJSON, ErrUnsupportedMediaType and so on), which
// the handler error mapping turns into 4xx responses.
package binder
