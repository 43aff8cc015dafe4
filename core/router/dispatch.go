package router

import (
	"errors"
	"log/slog"
	stdhttp "net/http"
	"strings"
	"sync"

	"github.com/searchktools/fast-express/core/logger"
)

// action is one step of the dispatch state machine. It returns the next
// action, or nil when the request no longer needs the dispatcher.
type action func() action

// dispatch is the state of one request walking the route tree.
type dispatch struct {
	req  *Request
	res  *Response
	src  stepSource
	log  *slog.Logger
	prod bool

	// seen holds parameter names whose hooks already ran.
	seen map[string]struct{}
}

// run dispatches req through src until a handler stops calling next.
func (r *Router) run(req *Request, src stepSource) {
	d := &dispatch{
		req:  req,
		res:  newResponse(req.ctx),
		src:  src,
		log:  r.log(),
		prod: r.production(),
	}
	d.drive(d.advance)
}

// drive runs actions until one returns nil. Synchronous next calls return
// their continuation here instead of recursing.
func (d *dispatch) drive(a action) {
	for a != nil {
		a = a()
	}
}

// stopped reports whether the request no longer accepts handlers.
func (d *dispatch) stopped() bool {
	return d.res.Aborted() || d.res.HeadersSent()
}

func (d *dispatch) advance() action {
	if d.stopped() {
		return nil
	}
	st, ok := d.src.next()
	if !ok {
		return d.notFound
	}
	d.bind(st)
	return d.runHooks(st, d.paramHooks(st))
}

// bind points the request's routing fields at st.
func (d *dispatch) bind(st step) {
	d.req.router = st.scope.router
	d.req.params = mergeParams(st.scope.params, st.params)
	d.req.baseURL = st.scope.baseURL
	d.req.url = st.scope.path
	if !st.entry.mount {
		d.req.route = template(st)
		return
	}
	d.req.baseURL += st.matched
	if rest := st.scope.path[len(st.matched):]; rest == "" {
		d.req.url = "/"
	} else {
		d.req.url = rest
	}
}

// template joins the templates of st's entry and every mount above it.
func template(st step) string {
	t := st.entry.matcher.String()
	for sc := st.scope; sc != nil && sc.via != nil; sc = sc.parent {
		t = joinPath(strings.TrimSuffix(sc.via.matcher.String(), "/"), t)
	}
	return t
}

func (d *dispatch) enter(st step) action {
	if st.entry.target.kind == targetRouter {
		d.src.enter(st)
		return d.advance
	}
	h := st.entry.target.handler
	return d.invoke(
		func(next NextFunc) { h(d.req, d.res, next) },
		func(err error) action { return d.handled(st, err) },
	)
}

// handled applies the signal a handler passed to next.
func (d *dispatch) handled(st step, err error) action {
	switch {
	case err == nil:
	case errors.Is(err, SkipRoute):
		d.src.skipGroup(st)
	case errors.Is(err, SkipRouter):
		d.src.skipScope(st.scope)
	default:
		return d.fail(err, st.scope)
	}
	return d.advance
}

type paramHook struct {
	fn    ParamFunc
	name  string
	value string
}

// paramHooks collects the hooks st triggers and marks their names as seen.
func (d *dispatch) paramHooks(st step) []paramHook {
	var queue []paramHook
	for _, name := range st.entry.matcher.Keys() {
		if _, done := d.seen[name]; done {
			continue
		}
		value, ok := st.params[name]
		if !ok {
			continue
		}
		fns := st.scope.router.hooks(name)
		if len(fns) == 0 {
			continue
		}
		if d.seen == nil {
			d.seen = make(map[string]struct{})
		}
		d.seen[name] = struct{}{}
		for _, fn := range fns {
			queue = append(queue, paramHook{fn: fn, name: name, value: value})
		}
	}
	return queue
}

func (d *dispatch) runHooks(st step, queue []paramHook) action {
	if d.stopped() {
		return nil
	}
	if len(queue) == 0 {
		return d.enter(st)
	}
	h := queue[0]
	return d.invoke(
		func(next NextFunc) { h.fn(d.req, d.res, next, h.value, h.name) },
		func(err error) action {
			if err == nil {
				return d.runHooks(st, queue[1:])
			}
			return d.handled(st, err)
		},
	)
}

// invoke calls a handler with a single-fire next. A next called before the
// handler returns hands its continuation back to the running drive loop;
// a later call resumes dispatch on the caller's goroutine.
func (d *dispatch) invoke(call func(NextFunc), then func(error) action) action {
	return func() action {
		var (
			mu       sync.Mutex
			inCall   = true
			fired    bool
			syncNext bool
			signal   error
		)
		next := func(err error) {
			mu.Lock()
			if fired {
				mu.Unlock()
				return
			}
			fired = true
			if inCall {
				syncNext, signal = true, err
				mu.Unlock()
				return
			}
			mu.Unlock()
			d.drive(then(err))
		}

		perr := safeCall(call, next)

		mu.Lock()
		inCall = false
		if perr != nil && !fired {
			fired, syncNext, signal = true, true, perr
			perr = nil
		}
		resume, err := syncNext, signal
		mu.Unlock()

		if perr != nil {
			d.log.Error("handler panicked after calling next", logger.Error(perr))
		}
		if resume {
			return then(err)
		}
		return nil
	}
}

func safeCall(call func(NextFunc), next NextFunc) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = panicError(v)
		}
	}()
	call(next)
	return nil
}

// fail hands err to the nearest router on the scope chain that has an
// error handler. next from that handler resumes after its router; next
// with an error escalates further out.
func (d *dispatch) fail(err error, from *scope) action {
	if d.res.Aborted() {
		return nil
	}
	if d.res.HeadersSent() {
		d.log.Error("request error after response was sent",
			logger.Method(d.req.method),
			logger.Path(d.req.path),
			logger.Error(err),
		)
		return nil
	}
	for sc := from; sc != nil; sc = sc.parent {
		h := sc.router.errorHandlerFunc()
		if h == nil {
			continue
		}
		owner := sc
		d.req.router = owner.router
		d.req.params = owner.params
		d.req.baseURL = owner.baseURL
		d.req.url = owner.path
		return d.invoke(
			func(next NextFunc) { h(err, d.req, d.res, next) },
			func(herr error) action {
				if herr == nil || errors.Is(herr, SkipRoute) || errors.Is(herr, SkipRouter) {
					d.src.skipScope(owner)
					return d.advance
				}
				return d.fail(herr, owner.parent)
			},
		)
	}
	return d.unhandled(err)
}

// unhandled writes the default error response.
func (d *dispatch) unhandled(err error) action {
	status := statusOf(err)
	d.log.Error("unhandled request error",
		logger.Method(d.req.method),
		logger.Path(d.req.path),
		logger.StatusCode(status),
		logger.Error(err),
	)
	if d.res.HeadersSent() || d.res.Aborted() {
		return nil
	}

	var he *HTTPError
	switch {
	case errors.As(err, &he) && he.Status == status:
		d.res.text(status, he.Message)
	case d.prod:
		d.res.text(status, stdhttp.StatusText(status))
	default:
		d.res.text(status, err.Error())
	}
	return nil
}

func (d *dispatch) notFound() action {
	if d.res.HeadersSent() || d.res.Aborted() {
		return nil
	}
	d.req.route = ""
	d.res.text(stdhttp.StatusNotFound, "Cannot "+d.req.method+" "+d.req.path)
	return nil
}
