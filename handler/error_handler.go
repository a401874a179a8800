package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/notifyq/pkg/logger"
	"github.com/dmitrymomot/notifyq/pkg/requestid"
)

// ErrorMapper translates a domain error into an HTTP error. It returns false
// for errors it does not know.
type ErrorMapper func(err error) (HTTPError, bool)

// NewErrorHandler creates a JSON error handler. Errors are translated by the
// first mapper that recognizes them, then by HTTPError, and fall back to 500.
// Client errors are logged at warn level and server errors at error level.
func NewErrorHandler(log *slog.Logger, mappers ...ErrorMapper) ErrorHandler {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx Context, err error) {
		httpErr := classifyError(err, mappers)

		level := slog.LevelWarn
		if httpErr.Code >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		r := ctx.Request()
		log.LogAttrs(r.Context(), level, "request failed",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", httpErr.Code),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		detail := ErrorDetail{Code: httpErr.Key, Message: http.StatusText(httpErr.Code)}
		if httpErr.Code < http.StatusInternalServerError {
			detail.Message = err.Error()
		}
		var fieldErr interface{ FieldErrors() map[string]string }
		if errors.As(err, &fieldErr) {
			detail.Details = fieldErr.FieldErrors()
		}

		if renderErr := JSONError(httpErr.Code, detail).Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.ErrorContext(r.Context(), "failed to render error response", logger.Error(renderErr))
		}
	}
}

func classifyError(err error, mappers []ErrorMapper) HTTPError {
	for _, m := range mappers {
		if httpErr, ok := m(err); ok {
			return httpErr
		}
	}
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return ErrInternalServerError
}
