// Package handler is a small typed layer over net/http for JSON APIs.
//
// A HandlerFunc receives a Context and a request value already filled by
// binders, and returns a Response:
//
//	func (h *Handler) get(ctx handler.Context, req GetRequest) handler.Response {
//		rec, err := h.queue.Get(ctx, req.ID)
//		if err != nil {
//			return handler.Error(err)
//		}
//		return handler.JSON(rec)
//	}
//
// Wrap turns it into an http.HandlerFunc. Bind and render failures, and
// responses built with Error, go to the ErrorHandler. NewErrorHandler writes
// them as
//
//	{"error": {"code": "not_found", "message": "...", "details": {...}}}
//
// using ErrorMapper functions to translate domain errors into HTTP statuses.
// Successful JSON bodies are wrapped as {"data": ...}.
package handler
