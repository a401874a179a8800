package handler

import "net/http"

// statusResponse writes a bare status line.
type statusResponse int

func (s statusResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(int(s))
	return nil
}

// Empty is a 204 No Content response.
func Empty() Response { return statusResponse(http.StatusNoContent) }

// EmptyWithStatus is a body-less response with the given status, e.g. 202.
func EmptyWithStatus(status int) Response { return statusResponse(status) }
