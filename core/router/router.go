// Package router implements Express-style routing: ordered middleware and
// route tables, nested routers, param hooks and error handlers, driven by
// a next-continuation protocol. A root router attached to a native
// transport also registers its static routes with the transport directly.
package router

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/searchktools/fast-express/config"
	"github.com/searchktools/fast-express/core/router/pattern"
)

// Setting keys understood by the router.
const (
	SettingCaseSensitive = "case sensitive routing"
	SettingStrict        = "strict routing"
	SettingEnv           = "env"
)

var settingDefaults = map[string]any{
	SettingCaseSensitive: true,
	SettingStrict:        false,
	SettingEnv:           "development",
}

// Router is an ordered table of middleware, routes and sub-routers.
type Router struct {
	mu           sync.RWMutex
	entries      []*entry
	params       map[string][]ParamFunc
	errorHandler ErrorHandlerFunc
	parent       *Router
	mountpath    any
	mergeParams  bool

	settings *config.Settings
	logger   *slog.Logger

	// mounts caches compiled prefix matchers by mount path.
	mounts sync.Map

	// native is set on a root router attached to a transport.
	native *optimizer
}

// Option configures a Router.
type Option func(*Router)

// WithMergeParams exposes the parent's route parameters to this router's handlers.
func WithMergeParams() Option {
	return func(r *Router) { r.mergeParams = true }
}

// WithCaseSensitive sets "case sensitive routing" on the router.
func WithCaseSensitive(on bool) Option {
	return func(r *Router) { r.settings.Set(SettingCaseSensitive, on) }
}

// WithStrict sets "strict routing" on the router.
func WithStrict(on bool) Option {
	return func(r *Router) { r.settings.Set(SettingStrict, on) }
}

// WithEnv sets the "env" setting. "production" hides error details.
func WithEnv(env string) Option {
	return func(r *Router) { r.settings.Set(SettingEnv, env) }
}

// WithLogger sets the logger. Sub-routers without one use their parent's.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a router.
func New(opts ...Option) *Router {
	r := &Router{
		params:   make(map[string][]ParamFunc),
		settings: config.NewSettings(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) log() *slog.Logger {
	for cur := r; cur != nil; cur = cur.Parent() {
		if cur.logger != nil {
			return cur.logger
		}
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
}

// Parent returns the router r is mounted on, or nil.
func (r *Router) Parent() *Router {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parent
}

// Mountpath returns the path r was last mounted at.
func (r *Router) Mountpath() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mountpath
}

// Set stores a setting on this router.
func (r *Router) Set(key string, value any) *Router {
	r.settings.Set(key, value)
	return r
}

// Setting resolves key on this router, then its ancestors, then the defaults.
func (r *Router) Setting(key string) any {
	if v, ok := r.settings.Get(key); ok {
		return v
	}
	return settingDefaults[key]
}

// Enable sets key to true.
func (r *Router) Enable(key string) *Router { return r.Set(key, true) }

// Disable sets key to false.
func (r *Router) Disable(key string) *Router { return r.Set(key, false) }

// Enabled reports whether key resolves to true.
func (r *Router) Enabled(key string) bool {
	v, _ := r.Setting(key).(bool)
	return v
}

// Disabled reports whether key does not resolve to true.
func (r *Router) Disabled(key string) bool { return !r.Enabled(key) }

// Settings exposes the underlying settings chain.
func (r *Router) Settings() *config.Settings { return r.settings }

func (r *Router) production() bool {
	return r.Setting(SettingEnv) == "production"
}

// Get registers handlers for GET requests on path. Each verb method
// accepts a template string, a *regexp.Regexp or a *pattern.Matcher.
func (r *Router) Get(path any, handlers ...any) *Router {
	return r.Method("GET", path, handlers...)
}

func (r *Router) Post(path any, handlers ...any) *Router {
	return r.Method("POST", path, handlers...)
}

func (r *Router) Put(path any, handlers ...any) *Router {
	return r.Method("PUT", path, handlers...)
}

func (r *Router) Delete(path any, handlers ...any) *Router {
	return r.Method("DELETE", path, handlers...)
}

func (r *Router) Patch(path any, handlers ...any) *Router {
	return r.Method("PATCH", path, handlers...)
}

func (r *Router) Head(path any, handlers ...any) *Router {
	return r.Method("HEAD", path, handlers...)
}

func (r *Router) Options(path any, handlers ...any) *Router {
	return r.Method("OPTIONS", path, handlers...)
}

func (r *Router) Connect(path any, handlers ...any) *Router {
	return r.Method("CONNECT", path, handlers...)
}

func (r *Router) Trace(path any, handlers ...any) *Router {
	return r.Method("TRACE", path, handlers...)
}

// All registers handlers for every method.
func (r *Router) All(path any, handlers ...any) *Router {
	return r.Method(MethodAll, path, handlers...)
}

// Method registers handlers for an arbitrary method.
func (r *Router) Method(method string, path any, handlers ...any) *Router {
	r.createRoute(strings.ToUpper(method), path, false, handlers)
	return r
}

// Use mounts middleware or sub-routers. An optional leading path limits
// them to requests under that prefix; it defaults to "/".
func (r *Router) Use(args ...any) *Router {
	var path any = "/"
	if len(args) > 0 {
		switch args[0].(type) {
		case string, *regexp.Regexp, *pattern.Matcher:
			path, args = args[0], args[1:]
		}
	}
	r.createRoute(MethodAll, path, true, args)
	return r
}

// Param registers a hook for the named route parameter.
func (r *Router) Param(name string, fn ParamFunc) *Router {
	r.mu.Lock()
	r.params[name] = append(r.params[name], fn)
	r.mu.Unlock()
	touch()
	return r
}

// OnError sets the router's error handler. Use accepts the same function.
func (r *Router) OnError(fn ErrorHandlerFunc) *Router {
	r.mu.Lock()
	r.errorHandler = fn
	r.mu.Unlock()
	touch()
	return r
}

// createRoute registers one group: every handler passed in a single call
// gets consecutive keys and shares the group's last key as skip target.
func (r *Router) createRoute(method string, path any, mount bool, args []any) {
	targets, errHandlers := collect(args, nil, nil)
	if len(errHandlers) > 0 {
		r.OnError(errHandlers[len(errHandlers)-1])
	}
	if len(targets) == 0 {
		if len(errHandlers) == 0 {
			panic(fmt.Sprintf("router: %s %v requires at least one handler", method, path))
		}
		return
	}

	m := r.compile(path, mount)
	group := make([]*entry, len(targets))
	for i, t := range targets {
		group[i] = &entry{
			method:    method,
			path:      path,
			matcher:   m,
			mount:     mount,
			anyMethod: mount || method == MethodAll,
			target:    t,
			key:       nextKey(),
		}
	}
	last := group[len(group)-1].key
	for _, e := range group {
		e.skipTo = last
		if e.target.kind == targetRouter {
			e.target.router.mountOn(r, path)
		}
	}

	r.mu.Lock()
	r.entries = append(r.entries, group...)
	r.mu.Unlock()
	touch()

	r.promoteEntries(group)
}

func (r *Router) mountOn(parent *Router, path any) {
	for cur := parent; cur != nil; cur = cur.Parent() {
		if cur == r {
			panic("router: cannot mount a router inside itself")
		}
	}
	r.mu.Lock()
	r.parent = parent
	r.mountpath = path
	r.mu.Unlock()
	r.settings.SetParent(parent.settings)
}

func (r *Router) compile(path any, prefix bool) *pattern.Matcher {
	switch p := path.(type) {
	case *pattern.Matcher:
		return p
	case *regexp.Regexp:
		return pattern.FromRegexp(p, prefix)
	case string:
		opts := pattern.Options{
			Prefix:        prefix,
			CaseSensitive: r.Enabled(SettingCaseSensitive),
			Strict:        r.Enabled(SettingStrict),
		}
		if prefix {
			return r.mountMatcher(p, opts)
		}
		m, err := pattern.Compile(p, opts)
		if err != nil {
			panic(fmt.Errorf("router: %w", err))
		}
		return m
	default:
		panic(fmt.Sprintf("router: unsupported path type %T", path))
	}
}

type mountKey struct {
	path string
	opts pattern.Options
}

// mountMatcher returns the cached prefix matcher for path, compiling it on
// first use. Concurrent misses compile the same value and the last store wins.
func (r *Router) mountMatcher(path string, opts pattern.Options) *pattern.Matcher {
	opts.Prefix = true
	key := mountKey{path, opts}
	if m, ok := r.mounts.Load(key); ok {
		return m.(*pattern.Matcher)
	}
	m, err := pattern.Compile(path, opts)
	if err != nil {
		panic(fmt.Errorf("router: %w", err))
	}
	r.mounts.Store(key, m)
	return m
}

func (r *Router) snapshot() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries
}

func (r *Router) hooks(name string) []ParamFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.params[name]
}

func (r *Router) errorHandlerFunc() ErrorHandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errorHandler
}

// Route returns a builder that registers handlers on one path.
func (r *Router) Route(path any) *Route {
	return &Route{router: r, path: path}
}

// Route registers handlers for several methods on one path.
type Route struct {
	router *Router
	path   any
}

func (rt *Route) Get(handlers ...any) *Route { return rt.Method("GET", handlers...) }
func (rt *Route) Post(handlers ...any) *Route { return rt.Method("POST", handlers...) }
func (rt *Route) Put(handlers ...any) *Route { return rt.Method("PUT", handlers...) }
func (rt *Route) Delete(handlers ...any) *Route { return rt.Method("DELETE", handlers...) }
func (rt *Route) Patch(handlers ...any) *Route { return rt.Method("PATCH", handlers...) }
func (rt *Route) Head(handlers ...any) *Route { return rt.Method("HEAD", handlers...) }
func (rt *Route) Options(handlers ...any) *Route { return rt.Method("OPTIONS", handlers...) }
func (rt *Route) All(handlers ...any) *Route { return rt.Method(MethodAll, handlers...) }

// Method registers handlers for method on the route's path.
func (rt *Route) Method(method string, handlers ...any) *Route {
	rt.router.Method(method, rt.path, handlers...)
	return rt
}

// RouteInfo describes one registered route.
type RouteInfo struct {
	Method string
	Path   string
	Mount  bool
	Native bool
}

// Routes lists routes and middleware in dispatch order, with mount paths
// joined into full paths.
func (r *Router) Routes() []RouteInfo {
	root := r
	for p := r.Parent(); p != nil; p = p.Parent() {
		root = p
	}
	var out []RouteInfo
	r.listRoutes("", root.native, &out)
	return out
}

func (r *Router) listRoutes(prefix string, opt *optimizer, out *[]RouteInfo) {
	for _, e := range r.snapshot() {
		full := joinPath(prefix, e.matcher.String())
		if e.target.kind == targetRouter {
			e.target.router.listRoutes(strings.TrimSuffix(full, "/"), opt, out)
			continue
		}
		info := RouteInfo{Method: e.method, Path: full, Mount: e.mount}
		if opt != nil && !e.mount {
			info.Native = opt.has(e.method, full)
		}
		*out = append(*out, info)
	}
}

// joinPath appends a route path to a mount prefix.
func joinPath(prefix, path string) string {
	switch {
	case prefix == "":
		if path == "" {
			return "/"
		}
		return path
	case path == "/" || path == "":
		return prefix
	}
	return prefix + path
}
