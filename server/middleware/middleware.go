package middleware

import (
	"net/http"
)

// Middleware wraps an http.Handler with additional behavior. Every middleware
// in this package uses this signature and is applied at the server level, so
// it covers Gin routes and any handler mounted on the root ServeMux.
type Middleware func(http.Handler) http.Handler

// Chain composes multiple middleware. The first in the list is the outermost
// (runs first on a request, last on a response).
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// isEventStream reports whether the request asks for a Server-Sent Events stream.
func isEventStream(r *http.Request) bool {
	return r.Header.Get("Accept") == "text/event-stream"
}
