package http

import (
	"context"
	stdhttp "net/http"
	"strconv"
	"sync"

	"google.golang.org/protobuf/proto"
)

// Content types used by the response helpers.
const (
	MIMETextPlain   = "text/plain; charset=utf-8"
	MIMETextHTML    = "text/html; charset=utf-8"
	MIMEJSON        = "application/json"
	MIMEOctetStream = "application/octet-stream"
	MIMEProtobuf    = "application/x-protobuf"
)

// Context is the per-request view a transport hands to handlers: request
// accessors, response primitives and the connection's abort state.
type Context interface {
	// Request information
	Method() string
	Path() string
	RawQuery() string
	Query(key string) string
	Header(key string) string
	Body() []byte
	Bind(v any) error
	Context() context.Context

	// Response methods. A code of 0 uses the status set by Status.
	Status(code int)
	StatusCode() int
	SetHeader(key, value string)
	String(code int, s string)
	JSON(code int, v any)
	Bytes(code int, data []byte)
	Data(code int, contentType string, data []byte)
	Proto(code int, m proto.Message)
	Error(code int, message string)
	Success(data any)

	// HeadersSent reports whether the response has been written.
	HeadersSent() bool
	// Aborted reports whether the peer went away before the response was written.
	Aborted() bool
	// OnAborted registers fn to run once when the connection aborts.
	OnAborted(fn func())
}

// HandlerFunc handles one request on a transport.
type HandlerFunc func(ctx Context)

type header struct {
	key, value string
}

// responseState is the response bookkeeping shared by every Context
// implementation. mu is held for the whole write so that an abort waits
// for an in-flight write and blocks later ones.
type responseState struct {
	mu      sync.Mutex
	status  int
	headers []header
	sent    bool
	aborted bool
	onAbort []func()
}

func (s *responseState) reset() {
	s.status = stdhttp.StatusOK
	s.headers = s.headers[:0]
	s.sent = false
	s.aborted = false
	s.onAbort = nil
}

func (s *responseState) Status(code int) {
	s.mu.Lock()
	s.status = code
	s.mu.Unlock()
}

func (s *responseState) StatusCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *responseState) SetHeader(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.headers {
		if s.headers[i].key == key {
			s.headers[i].value = value
			return
		}
	}
	s.headers = append(s.headers, header{key, value})
}

func (s *responseState) HeadersSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func (s *responseState) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

func (s *responseState) OnAborted(fn func()) {
	s.mu.Lock()
	if !s.aborted {
		s.onAbort = append(s.onAbort, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

// abort marks the response aborted and runs the hooks once. It reports
// whether this call did the transition.
func (s *responseState) abort() bool {
	s.mu.Lock()
	if s.aborted || s.sent {
		s.mu.Unlock()
		return false
	}
	s.aborted = true
	hooks := s.onAbort
	s.onAbort = nil
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return true
}

// begin locks the state for a write. It returns false, with the lock
// released, when the response is already sent or aborted.
func (s *responseState) begin(code int) (int, bool) {
	s.mu.Lock()
	if s.sent || s.aborted {
		s.mu.Unlock()
		return 0, false
	}
	s.sent = true
	if code == 0 {
		code = s.status
	}
	s.status = code
	return code, true
}

// appendResponse serializes an HTTP/1.1 response into b.
func appendResponse(b []byte, code int, contentType string, headers []header, body []byte, omitBody, closeConn bool) []byte {
	b = append(b, "HTTP/1.1 "...)
	b = strconv.AppendInt(b, int64(code), 10)
	b = append(b, ' ')
	b = append(b, statusText(code)...)
	b = append(b, "\r\n"...)

	if contentType != "" {
		b = append(b, "Content-Type: "...)
		b = append(b, contentType...)
		b = append(b, "\r\n"...)
	}
	for _, h := range headers {
		if h.key == "Content-Type" || h.key == "Content-Length" {
			continue
		}
		b = append(b, h.key...)
		b = append(b, ": "...)
		b = append(b, h.value...)
		b = append(b, "\r\n"...)
	}
	b = append(b, "Content-Length: "...)
	b = strconv.AppendInt(b, int64(len(body)), 10)
	b = append(b, "\r\n"...)
	if closeConn {
		b = append(b, "Connection: close\r\n"...)
	}
	b = append(b, "\r\n"...)

	if !omitBody {
		b = append(b, body...)
	}
	return b
}

// contentTypeOf returns the Content-Type header a handler set, if any.
func contentTypeOf(headers []header, fallback string) string {
	for _, h := range headers {
		if h.key == "Content-Type" {
			return h.value
		}
	}
	return fallback
}

// statusText returns the HTTP status text for the given code
func statusText(code int) string {
	if s := stdhttp.StatusText(code); s != "" {
		return s
	}
	return "Unknown"
}

func errorBody(code int, message string) map[string]any {
	return map[string]any{
		"code":    code,
		"message": message,
	}
}

func successBody(data any) map[string]any {
	return map[string]any{
		"code":    0,
		"message": "success",
		"data":    data,
	}
}
