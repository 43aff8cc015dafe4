package core

import (
	"sync"

	"github.com/searchktools/fast-express/core/http"
)

// nativeMethods are the methods the engine routes by exact path.
var nativeMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

type route struct {
	method  string
	path    string
	handler http.HandlerFunc
}

// routeTable maps exact method and path pairs to handlers. Buckets are
// keyed by an FNV-1a hash and verified on lookup.
type routeTable struct {
	mu       sync.RWMutex
	static   map[uint64][]route
	fallback http.HandlerFunc
}

func newRouteTable() *routeTable {
	return &routeTable{static: make(map[uint64][]route, 64)}
}

// add registers h, replacing an existing handler for the same pair.
func (t *routeTable) add(method, path string, h http.HandlerFunc) {
	key := hashRoute(method, path)
	t.mu.Lock()
	defer t.mu.Unlock()
	bucket := t.static[key]
	for i := range bucket {
		if bucket[i].method == method && bucket[i].path == path {
			bucket[i].handler = h
			return
		}
	}
	t.static[key] = append(bucket, route{method: method, path: path, handler: h})
}

func (t *routeTable) setFallback(h http.HandlerFunc) {
	t.mu.Lock()
	t.fallback = h
	t.mu.Unlock()
}

// find returns the exact handler, or the fallback and false.
func (t *routeTable) find(method, path string) (http.HandlerFunc, bool) {
	key := hashRoute(method, path)
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.static[key] {
		if r.method == method && r.path == path {
			return r.handler, true
		}
	}
	return t.fallback, false
}

func (t *routeTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, b := range t.static {
		n += len(b)
	}
	return n
}

// hashRoute computes the FNV-1a hash of method followed by path.
func hashRoute(method, path string) uint64 {
	const prime = 1099511628211
	hash := uint64(14695981039346656037)
	for i := 0; i < len(method); i++ {
		hash ^= uint64(method[i])
		hash *= prime
	}
	for i := 0; i < len(path); i++ {
		hash ^= uint64(path[i])
		hash *= prime
	}
	return hash
}
