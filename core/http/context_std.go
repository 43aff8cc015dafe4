package http

import (
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"sync"

	"google.golang.org/protobuf/proto"
)

// MaxBodySize caps how much of a net/http request body StdContext buffers.
const MaxBodySize = 4 << 20

// StdContext adapts a net/http request/response pair to Context.
type StdContext struct {
	responseState

	w    stdhttp.ResponseWriter
	r    *stdhttp.Request
	done chan struct{}
	stop func() bool

	bodyOnce sync.Once
	body     []byte
	query    url.Values
}

// NewStdContext wraps w and r. The context aborts when r's context ends.
func NewStdContext(w stdhttp.ResponseWriter, r *stdhttp.Request) *StdContext {
	c := &StdContext{w: w, r: r, done: make(chan struct{})}
	c.responseState.reset()
	c.stop = context.AfterFunc(r.Context(), func() { c.abort() })
	return c
}

// Done is closed once the response has been written.
func (c *StdContext) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the response is written or the client goes away.
// After Wait returns no further writes reach the ResponseWriter.
func (c *StdContext) Wait() {
	select {
	case <-c.done:
	case <-c.r.Context().Done():
		c.abort()
	}
	c.stop()
}

func (c *StdContext) Method() string { return c.r.Method }
func (c *StdContext) Path() string { return c.r.URL.Path }
func (c *StdContext) RawQuery() string { return c.r.URL.RawQuery }
func (c *StdContext) Header(key string) string { return c.r.Header.Get(key) }
func (c *StdContext) Context() context.Context { return c.r.Context() }
func (c *StdContext) Request() *stdhttp.Request { return c.r }

func (c *StdContext) Query(key string) string {
	if c.query == nil {
		c.query = c.r.URL.Query()
	}
	return c.query.Get(key)
}

// Body reads and caches the request body.
func (c *StdContext) Body() []byte {
	c.bodyOnce.Do(func() {
		if c.r.Body == nil {
			return
		}
		c.body, _ = io.ReadAll(io.LimitReader(c.r.Body, MaxBodySize))
	})
	return c.body
}

func (c *StdContext) Bind(v any) error { return json.Unmarshal(c.Body(), v) }
func (c *StdContext) String(code int, s string) { c.Data(code, MIMETextPlain, []byte(s)) }
func (c *StdContext) Bytes(code int, data []byte) { c.Data(code, MIMEOctetStream, data) }

// JSON sends a JSON response
func (c *StdContext) JSON(code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.Error(500, "Failed to marshal JSON")
		return
	}
	c.Data(code, MIMEJSON, data)
}

// Proto sends a protobuf-encoded response
func (c *StdContext) Proto(code int, m proto.Message) {
	data, err := proto.Marshal(m)
	if err != nil {
		c.Error(500, "Failed to marshal protobuf")
		return
	}
	c.Data(code, MIMEProtobuf, data)
}

// Error sends an error response
func (c *StdContext) Error(code int, message string) {
	c.JSON(code, errorBody(code, message))
}

// Success sends a success response
func (c *StdContext) Success(data any) {
	c.JSON(200, successBody(data))
}

// Data writes the response. Only the first call has an effect.
func (c *StdContext) Data(code int, contentType string, data []byte) {
	code, ok := c.begin(code)
	if !ok {
		return
	}
	defer close(c.done)
	defer c.mu.Unlock()

	if contentType == "" {
		contentType = contentTypeOf(c.headers, MIMEOctetStream)
	}
	h := c.w.Header()
	for _, kv := range c.headers {
		h.Set(kv.key, kv.value)
	}
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(data)))
	c.w.WriteHeader(code)
	_, _ = c.w.Write(data)
}
