package middleware

import (
	"github.com/searchktools/fast-express/core/observability"
	"github.com/searchktools/fast-express/core/router"
)

// Metrics records every request in m, labelled by the matched route
// template rather than the raw path.
func Metrics(m *observability.Metrics) router.HandlerFunc {
	return func(req *router.Request, res *router.Response, next router.NextFunc) {
		done := m.Start()
		onDone(req, res, func(status int) {
			done(req.Method(), routeLabel(req), status)
		})
		next(nil)
	}
}
