// Package core is the native HTTP/1.1 engine: an exact-match route table
// with a catch-all, served either from an epoll/kqueue event loop or
// through net/http.
package core

import (
	"errors"
	"log/slog"
	stdhttp "net/http"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/searchktools/fast-express/core/http"
	"github.com/searchktools/fast-express/core/logger"
	"github.com/searchktools/fast-express/core/pools"
)

// ErrServerClosed is returned by Run after the engine has been closed.
var ErrServerClosed = errors.New("core: server closed")

// HandlerFunc handles one request on the engine.
type HandlerFunc = http.HandlerFunc

// Engine routes requests to handlers registered for an exact method and
// path, and everything else to its catch-all.
type Engine struct {
	routes *routeTable
	log    *slog.Logger

	maxConnections int
	maxRequestSize int
	workers        int
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	bytePool   *pools.BytePool
	connPool   *pools.ObjectPool[*conn]
	workerPool atomic.Pointer[pools.WorkerPool]

	connections atomic.Int64
	requests    atomic.Uint64
	nativeHits  atomic.Uint64
	closed      atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTimeouts sets read, write and idle timeouts. Zero values keep the defaults.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(e *Engine) {
		if read > 0 {
			e.readTimeout = read
		}
		if write > 0 {
			e.writeTimeout = write
		}
		if idle > 0 {
			e.idleTimeout = idle
		}
	}
}

// WithMaxConnections caps concurrently open connections.
func WithMaxConnections(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConnections = n
		}
	}
}

// WithWorkers sets the size of the handler worker pool.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithMaxRequestSize caps the bytes buffered for a single request.
func WithMaxRequestSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRequestSize = n
		}
	}
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		routes:         newRouteTable(),
		log:            logger.Nop(),
		maxConnections: 100000,
		maxRequestSize: 1 << 20,
		workers:        runtime.NumCPU(),
		readTimeout:    10 * time.Second,
		writeTimeout:   10 * time.Second,
		idleTimeout:    5 * time.Second,
		bytePool:       pools.NewBytePool(),
	}
	e.connPool = pools.NewObjectPool(func() *conn { return &conn{fd: -1} })
	for _, opt := range opts {
		opt(e)
	}
	e.routes.setFallback(notFound)
	return e
}

func notFound(ctx http.Context) {
	ctx.String(stdhttp.StatusNotFound, "Not Found")
}

// Handle registers h for an exact method and path. Methods outside
// GET POST PUT DELETE PATCH HEAD OPTIONS are not routed natively and
// Handle reports false for them.
func (e *Engine) Handle(method, path string, h HandlerFunc) bool {
	method = strings.ToUpper(method)
	if !nativeMethods[method] {
		return false
	}
	e.routes.add(method, path, h)
	return true
}

// Any sets the handler for requests without a native route.
func (e *Engine) Any(h HandlerFunc) {
	e.routes.setFallback(h)
}

func (e *Engine) GET(path string, h HandlerFunc) { e.Handle("GET", path, h) }
func (e *Engine) POST(path string, h HandlerFunc) { e.Handle("POST", path, h) }
func (e *Engine) PUT(path string, h HandlerFunc) { e.Handle("PUT", path, h) }
func (e *Engine) DELETE(path string, h HandlerFunc) { e.Handle("DELETE", path, h) }
func (e *Engine) PATCH(path string, h HandlerFunc) { e.Handle("PATCH", path, h) }
func (e *Engine) HEAD(path string, h HandlerFunc) { e.Handle("HEAD", path, h) }
func (e *Engine) OPTIONS(path string, h HandlerFunc) { e.Handle("OPTIONS", path, h) }

// Routes returns the number of native routes.
func (e *Engine) Routes() int { return e.routes.len() }

// serve runs the handler for ctx. Panics that escape the handler end the
// request with a 500.
func (e *Engine) serve(ctx http.Context) {
	e.requests.Add(1)
	h, native := e.routes.find(ctx.Method(), ctx.Path())
	if native {
		e.nativeHits.Add(1)
	}
	defer func() {
		if v := recover(); v != nil {
			e.log.Error("handler panic",
				logger.Method(ctx.Method()),
				logger.Path(ctx.Path()),
				slog.Any("panic", v),
			)
			ctx.String(stdhttp.StatusInternalServerError, stdhttp.StatusText(stdhttp.StatusInternalServerError))
		}
	}()
	h(ctx)
}

// ServeHTTP serves a net/http request through the route table. It returns
// once the response is written or the client goes away.
func (e *Engine) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := http.NewStdContext(w, r)
	e.serve(ctx)
	ctx.Wait()
}

// Close stops the worker pool. A running event loop should be stopped by
// cancelling its context first.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if wp := e.workerPool.Load(); wp != nil {
		wp.Close()
	}
	return nil
}
