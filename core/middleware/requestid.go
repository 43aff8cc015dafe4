package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/searchktools/fast-express/core/router"
)

// HeaderRequestID is the default request id header.
const HeaderRequestID = "X-Request-ID"

// maxClientIDLen bounds ids accepted from clients.
const maxClientIDLen = 128

// RequestIDOption configures RequestID.
type RequestIDOption func(*requestIDConfig)

type requestIDConfig struct {
	header      string
	generator   func() string
	trustClient bool
}

// WithRequestIDHeader changes the header read and written.
func WithRequestIDHeader(name string) RequestIDOption {
	return func(c *requestIDConfig) { c.header = name }
}

// WithRequestIDGenerator replaces the UUIDv4 generator.
func WithRequestIDGenerator(fn func() string) RequestIDOption {
	return func(c *requestIDConfig) { c.generator = fn }
}

// WithClientRequestID controls whether an incoming id is reused.
func WithClientRequestID(trust bool) RequestIDOption {
	return func(c *requestIDConfig) { c.trustClient = trust }
}

// RequestID assigns every request an id, echoes it in the response header
// and stores it in the request context.
func RequestID(opts ...RequestIDOption) router.HandlerFunc {
	cfg := requestIDConfig{
		header:      HeaderRequestID,
		generator:   uuid.NewString,
		trustClient: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(req *router.Request, res *router.Response, next router.NextFunc) {
		var id string
		if cfg.trustClient {
			id = req.Header(cfg.header)
		}
		if id == "" || len(id) > maxClientIDLen {
			id = cfg.generator()
		}
		res.Set(cfg.header, id)
		req.WithContext(context.WithValue(req.Context(), requestIDKey{}, id))
		next(nil)
	}
}
