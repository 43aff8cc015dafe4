package router

import (
	stdhttp "net/http"

	"github.com/searchktools/fast-express/core/http"
)

// ServeContext dispatches one request by walking the route tables.
func (r *Router) ServeContext(ctx http.Context) {
	req := newRequest(ctx, r)
	r.run(req, newWalk(r, req.method, req.path))
}

// ServeHTTP makes the router a net/http handler. It returns once the
// response is written or the request context ends.
func (r *Router) ServeHTTP(w stdhttp.ResponseWriter, req *stdhttp.Request) {
	ctx := http.NewStdContext(w, req)
	r.ServeContext(ctx)
	ctx.Wait()
}
