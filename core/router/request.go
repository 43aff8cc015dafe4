package router

import (
	"context"
	stdhttp "net/http"
	"strings"
	"sync"

	"github.com/searchktools/fast-express/core/http"
	"google.golang.org/protobuf/proto"
)

// Request is the handler-facing view of one request. Routing fields
// (params, base URL, relative URL) reflect the entry currently running.
type Request struct {
	ctx    http.Context
	method string
	path   string

	params  map[string]string
	baseURL string
	url     string
	route   string
	router  *Router

	goctx  context.Context
	locals map[string]any
}

func newRequest(ctx http.Context, root *Router) *Request {
	path := ctx.Path()
	if path == "" {
		path = "/"
	}
	return &Request{
		ctx:    ctx,
		method: strings.ToUpper(ctx.Method()),
		path:   path,
		url:    path,
		router: root,
	}
}

func (r *Request) Method() string { return r.method }

// Path returns the full request path.
func (r *Request) Path() string { return r.path }

// URL returns the path relative to the router handling the request.
func (r *Request) URL() string { return r.url }

// BaseURL returns the mount path prefix of the router handling the request.
func (r *Request) BaseURL() string { return r.baseURL }

// OriginalURL returns the full path with its query string.
func (r *Request) OriginalURL() string {
	if q := r.ctx.RawQuery(); q != "" {
		return r.path + "?" + q
	}
	return r.path
}

// Param returns a route parameter of the current entry.
func (r *Request) Param(name string) string { return r.params[name] }

// Params returns a copy of the current route parameters.
func (r *Request) Params() map[string]string {
	out := make(map[string]string, len(r.params))
	for k, v := range r.params {
		out[k] = v
	}
	return out
}

func (r *Request) Query(key string) string { return r.ctx.Query(key) }
func (r *Request) Header(key string) string { return r.ctx.Header(key) }
func (r *Request) Body() []byte { return r.ctx.Body() }
func (r *Request) Bind(v any) error { return r.ctx.Bind(v) }

// Context returns the request context. It ends when the client goes away.
func (r *Request) Context() context.Context {
	if r.goctx != nil {
		return r.goctx
	}
	return r.ctx.Context()
}

// WithContext replaces the context seen by later handlers.
func (r *Request) WithContext(ctx context.Context) {
	r.goctx = ctx
}

// Route returns the full template of the last route that matched, or ""
// when only middleware ran.
func (r *Request) Route() string { return r.route }

// Router returns the router that owns the entry currently running.
func (r *Request) Router() *Router { return r.router }

// Transport returns the underlying transport context.
func (r *Request) Transport() http.Context { return r.ctx }

// SetLocal stores a request-scoped value for later handlers.
func (r *Request) SetLocal(key string, value any) {
	if r.locals == nil {
		r.locals = make(map[string]any)
	}
	r.locals[key] = value
}

// Local returns a value stored with SetLocal.
func (r *Request) Local(key string) any { return r.locals[key] }

// Response writes the reply through the transport context. The first
// write sends the response; later writes are ignored.
type Response struct {
	ctx http.Context

	mu          sync.Mutex
	contentType string
	onFinish    []func()
	finished    bool
}

func newResponse(ctx http.Context) *Response {
	return &Response{ctx: ctx}
}

// Status sets the status code used by the next write.
func (r *Response) Status(code int) *Response {
	r.ctx.Status(code)
	return r
}

func (r *Response) StatusCode() int { return r.ctx.StatusCode() }

// Set sets a response header.
func (r *Response) Set(key, value string) *Response {
	if strings.EqualFold(key, "Content-Type") {
		key = "Content-Type"
		r.mu.Lock()
		r.contentType = value
		r.mu.Unlock()
	}
	r.ctx.SetHeader(key, value)
	return r
}

// Type sets the Content-Type header.
func (r *Response) Type(contentType string) *Response {
	return r.Set("Content-Type", contentType)
}

// Send writes body as HTML unless a Content-Type was set.
func (r *Response) Send(body string) {
	r.mu.Lock()
	ct := r.contentType
	r.mu.Unlock()
	if ct == "" {
		ct = http.MIMETextHTML
	}
	r.ctx.Data(0, ct, []byte(body))
	r.finish()
}

// SendStatus writes the status code with its text as body.
func (r *Response) SendStatus(code int) {
	r.ctx.String(code, stdhttp.StatusText(code))
	r.finish()
}

// JSON writes v as JSON.
func (r *Response) JSON(v any) {
	r.ctx.JSON(0, v)
	r.finish()
}

// Bytes writes raw bytes.
func (r *Response) Bytes(data []byte) {
	r.ctx.Bytes(0, data)
	r.finish()
}

// Proto writes a protobuf message.
func (r *Response) Proto(m proto.Message) {
	r.ctx.Proto(0, m)
	r.finish()
}

// Error writes a JSON error body with code.
func (r *Response) Error(code int, message string) {
	r.ctx.Error(code, message)
	r.finish()
}

// End writes the response with an empty body.
func (r *Response) End() {
	r.mu.Lock()
	ct := r.contentType
	r.mu.Unlock()
	r.ctx.Data(0, ct, nil)
	r.finish()
}

func (r *Response) text(code int, body string) {
	r.ctx.String(code, body)
	r.finish()
}

// HeadersSent reports whether the response was written.
func (r *Response) HeadersSent() bool { return r.ctx.HeadersSent() }

// Aborted reports whether the client went away.
func (r *Response) Aborted() bool { return r.ctx.Aborted() }

// OnFinish registers fn to run after the response is written.
func (r *Response) OnFinish(fn func()) {
	r.mu.Lock()
	if !r.finished {
		r.onFinish = append(r.onFinish, fn)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	fn()
}

func (r *Response) finish() {
	if !r.ctx.HeadersSent() {
		return
	}
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	hooks := r.onFinish
	r.onFinish = nil
	r.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}
