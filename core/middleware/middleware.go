// Package middleware provides stock handlers for the router: request ids,
// access logging, metrics, tracing, CORS and rate limiting. Each is a
// router.HandlerFunc meant to be passed to Router.Use.
package middleware

import (
	"context"
	"sync"

	"github.com/searchktools/fast-express/core/router"
)

// StatusClientClosed is recorded for requests whose client went away
// before a response was written.
const StatusClientClosed = 499

type requestIDKey struct{}

// RequestIDFromContext returns the id stored by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// GetRequestID returns the id RequestID assigned to req.
func GetRequestID(req *router.Request) string {
	return RequestIDFromContext(req.Context())
}

// onDone calls fn exactly once with the final status: when the response
// is written, or with StatusClientClosed when the client aborts first.
func onDone(req *router.Request, res *router.Response, fn func(status int)) {
	var once sync.Once
	res.OnFinish(func() {
		once.Do(func() { fn(res.StatusCode()) })
	})
	req.Transport().OnAborted(func() {
		once.Do(func() { fn(StatusClientClosed) })
	})
}

// routeLabel names the matched route for low-cardinality labels.
func routeLabel(req *router.Request) string {
	if route := req.Route(); route != "" {
		return route
	}
	return "unmatched"
}
