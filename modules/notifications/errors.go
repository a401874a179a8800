package notifications

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/notifyq/handler"
	"github.com/dmitrymomot/notifyq/pkg/binder"
	"github.com/dmitrymomot/notifyq/pkg/notifyq"
)

// MapError translates queue and binder errors into HTTP errors.
func MapError(err error) (handler.HTTPError, bool) {
	switch {
	case errors.Is(err, notifyq.ErrValidation):
		return handler.ErrUnprocessableEntity, true
	case errors.Is(err, notifyq.ErrNotFound):
		return handler.ErrNotFound, true
	case errors.Is(err, notifyq.ErrInvalidTransition):
		return handler.NewHTTPError(http.StatusConflict, "invalid_transition"), true
	case notifyq.IsStoreError(err):
		return handler.ErrServiceUnavailable, true
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		return handler.ErrUnsupportedMediaType, true
	case errors.Is(err, binder.ErrRequestTooLarge):
		return handler.ErrRequestTooLarge, true
	case errors.Is(err, binder.ErrFailedToParseJSON), errors.Is(err, binder.ErrFailedToParsePath):
		return handler.ErrBadRequest, true
	}
	return handler.HTTPError{}, false
}
