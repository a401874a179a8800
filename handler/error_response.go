package handler

import "net/http"

type errorResponse struct {
	err error
}

// Render hands the error back to Wrap, which passes it to the ErrorHandler.
func (e errorResponse) Render(http.ResponseWriter, *http.Request) error {
	return e.err
}

// Error returns a Response that is rendered by the configured ErrorHandler.
func Error(err error) Response {
	if err == nil {
		err = ErrInternalServerError
	}
	return errorResponse{err: err}
}
