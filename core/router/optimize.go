package router

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/searchktools/fast-express/core/http"
	"github.com/searchktools/fast-express/core/router/pattern"
)

// Transport is a server that can route some requests natively.
type Transport interface {
	// Handle registers h for an exact method and path. It reports false
	// when the transport cannot route method natively.
	Handle(method, path string, h http.HandlerFunc) bool
	// Any registers the handler for every request without a native route.
	Any(h http.HandlerFunc)
}

// nativeMethods are the methods an ALL route is promoted under.
var nativeMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}

type routeKey struct {
	method, path string
}

// optimizer tracks the routes a root router registered with its transport.
type optimizer struct {
	transport Transport

	mu     sync.Mutex
	routes map[routeKey]*nativeRoute
}

func (o *optimizer) has(method, path string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if method != MethodAll {
		_, ok := o.routes[routeKey{method, path}]
		return ok
	}
	for _, m := range nativeMethods {
		if _, ok := o.routes[routeKey{m, path}]; !ok {
			return false
		}
	}
	return true
}

func (o *optimizer) register(root *Router, method, path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := routeKey{method, path}
	if _, ok := o.routes[key]; ok {
		return
	}
	nr := &nativeRoute{router: root, method: method, path: path}
	if o.transport.Handle(method, path, nr.serve) {
		o.routes[key] = nr
	}
}

// flatChain is the step list for one literal request, valid while the
// route tree version equals version.
type flatChain struct {
	version uint64
	steps   []step
}

// nativeRoute serves one (method, path) pair without walking route tables.
type nativeRoute struct {
	router *Router
	method string
	path   string
	chain  atomic.Pointer[flatChain]
}

func (n *nativeRoute) steps() []step {
	v := version.Load()
	if c := n.chain.Load(); c != nil && c.version == v {
		return c.steps
	}
	c := &flatChain{version: v, steps: flatten(n.router, n.method, n.path)}
	n.chain.Store(c)
	return c.steps
}

func (n *nativeRoute) serve(ctx http.Context) {
	n.router.run(newRequest(ctx, n.router), &flatSource{steps: n.steps()})
}

// Attach connects a root router to t: every request t cannot route
// natively goes through ServeContext, and literal routes registered now
// or later are handed to t directly.
func (r *Router) Attach(t Transport) {
	if r.Parent() != nil {
		panic("router: only a root router can be attached to a transport")
	}
	r.mu.Lock()
	r.native = &optimizer{transport: t, routes: make(map[routeKey]*nativeRoute)}
	r.mu.Unlock()

	t.Any(r.ServeContext)
	r.promoteAll()
}

func (r *Router) promoteAll() {
	r.promoteEntries(r.snapshot())
}

// promoteEntries offers newly registered entries to the root's transport.
func (r *Router) promoteEntries(group []*entry) {
	for _, e := range group {
		switch {
		case e.target.kind == targetRouter:
			e.target.router.promoteAll()
		case !e.mount:
			if lit, ok := e.matcher.Literal(); ok {
				r.promote(e.method, lit)
			}
		}
	}
}

// promote joins path with every ancestor mount path and registers the
// result on the root. Any non-literal mount path keeps the route generic.
func (r *Router) promote(method, path string) {
	full := path
	cur := r
	for parent := cur.Parent(); parent != nil; parent = cur.Parent() {
		mp, ok := cur.Mountpath().(string)
		if !ok || pattern.NeedsRegexp(mp) {
			return
		}
		full = joinPath(strings.TrimRight(mp, "/"), full)
		cur = parent
	}
	cur.ensureNative(method, full)
}

func (r *Router) ensureNative(method, path string) {
	r.mu.RLock()
	o := r.native
	r.mu.RUnlock()
	if o == nil || r.Disabled(SettingCaseSensitive) {
		return
	}
	if method != MethodAll {
		o.register(r, method, path)
		return
	}
	for _, m := range nativeMethods {
		o.register(r, m, path)
	}
}
