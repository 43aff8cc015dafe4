package http

import (
	"net/textproto"
	"strings"
	"sync"
)

// Request is a parsed HTTP/1.x request
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Proto    string

	// Predefined common header fields
	ContentType   string
	ContentLength string
	UserAgent     string
	Accept        string
	Host          string
	Connection    string

	// Extra headers (allocated only when needed)
	ExtraHeaders map[string]string

	// Query parameters
	Query map[string]string

	// Request body
	Body []byte
}

var requestPool = sync.Pool{
	New: func() any {
		return &Request{
			Body: make([]byte, 0, 1024),
		}
	},
}

func AcquireRequest() *Request {
	return requestPool.Get().(*Request)
}

// Reset resets the request for reuse (memory not freed, just reset)
func (r *Request) Reset() {
	r.Method = ""
	r.Path = ""
	r.RawQuery = ""
	r.Proto = ""
	r.ContentType = ""
	r.ContentLength = ""
	r.UserAgent = ""
	r.Accept = ""
	r.Host = ""
	r.Connection = ""

	clear(r.ExtraHeaders)
	clear(r.Query)

	r.Body = r.Body[:0]
}

func ReleaseRequest(req *Request) {
	req.Reset()
	requestPool.Put(req)
}

// SetHeader sets a header (prioritizes predefined fields)
func (r *Request) SetHeader(key, value string) {
	switch key = textproto.CanonicalMIMEHeaderKey(key); key {
	case "Content-Type":
		r.ContentType = value
	case "Content-Length":
		r.ContentLength = value
	case "User-Agent":
		r.UserAgent = value
	case "Accept":
		r.Accept = value
	case "Host":
		r.Host = value
	case "Connection":
		r.Connection = value
	default:
		if r.ExtraHeaders == nil {
			r.ExtraHeaders = make(map[string]string)
		}
		r.ExtraHeaders[key] = value
	}
}

// Header returns a request header, case-insensitively.
func (r *Request) Header(key string) string {
	switch key = textproto.CanonicalMIMEHeaderKey(key); key {
	case "Content-Type":
		return r.ContentType
	case "Content-Length":
		return r.ContentLength
	case "User-Agent":
		return r.UserAgent
	case "Accept":
		return r.Accept
	case "Host":
		return r.Host
	case "Connection":
		return r.Connection
	}
	return r.ExtraHeaders[key]
}

// KeepAlive reports whether the connection may serve another request.
func (r *Request) KeepAlive() bool {
	conn := strings.ToLower(r.Connection)
	if r.Proto == "HTTP/1.0" {
		return conn == "keep-alive"
	}
	return conn != "close"
}
