package middleware

import (
	"slices"
	"strconv"
	"strings"

	"github.com/searchktools/fast-express/core/router"
)

// CORSOption configures CORS.
type CORSOption func(*corsConfig)

type corsConfig struct {
	origins       []string
	methods       []string
	headers       []string
	expose        []string
	credentials   bool
	maxAge        int
	allowAnything bool
}

// WithAllowOrigins lists allowed origins. "*" allows any origin.
func WithAllowOrigins(origins ...string) CORSOption {
	return func(c *corsConfig) { c.origins = origins }
}

// WithAllowMethods lists methods announced in preflight responses.
func WithAllowMethods(methods ...string) CORSOption {
	return func(c *corsConfig) { c.methods = methods }
}

// WithAllowHeaders lists request headers announced in preflight responses.
func WithAllowHeaders(headers ...string) CORSOption {
	return func(c *corsConfig) { c.headers = headers }
}

// WithExposeHeaders lists response headers readable by the browser.
func WithExposeHeaders(headers ...string) CORSOption {
	return func(c *corsConfig) { c.expose = headers }
}

// WithAllowCredentials allows cookies and auth headers. The origin is then
// echoed instead of "*".
func WithAllowCredentials(allow bool) CORSOption {
	return func(c *corsConfig) { c.credentials = allow }
}

// WithMaxAge sets how long, in seconds, preflight results may be cached.
func WithMaxAge(seconds int) CORSOption {
	return func(c *corsConfig) { c.maxAge = seconds }
}

// CORS sets cross-origin headers and answers preflight requests with 204.
// Requests from origins that are not allowed pass through untouched.
func CORS(opts ...CORSOption) router.HandlerFunc {
	cfg := corsConfig{
		origins: []string{"*"},
		methods: []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE"},
		headers: []string{"Content-Type", "Authorization"},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.allowAnything = slices.Contains(cfg.origins, "*")
	methods := strings.Join(cfg.methods, ", ")
	headers := strings.Join(cfg.headers, ", ")
	expose := strings.Join(cfg.expose, ", ")

	return func(req *router.Request, res *router.Response, next router.NextFunc) {
		origin := req.Header("Origin")
		allowed := cfg.allowOrigin(origin)
		if allowed == "" {
			next(nil)
			return
		}

		res.Set("Access-Control-Allow-Origin", allowed)
		if allowed != "*" {
			res.Set("Vary", "Origin")
		}
		if cfg.credentials {
			res.Set("Access-Control-Allow-Credentials", "true")
		}

		if req.Method() != "OPTIONS" || req.Header("Access-Control-Request-Method") == "" {
			if expose != "" {
				res.Set("Access-Control-Expose-Headers", expose)
			}
			next(nil)
			return
		}

		res.Set("Access-Control-Allow-Methods", methods)
		if headers != "" {
			res.Set("Access-Control-Allow-Headers", headers)
		} else if requested := req.Header("Access-Control-Request-Headers"); requested != "" {
			res.Set("Access-Control-Allow-Headers", requested)
		}
		if cfg.maxAge > 0 {
			res.Set("Access-Control-Max-Age", strconv.Itoa(cfg.maxAge))
		}
		res.Status(204).End()
	}
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin,
// or "" when it is not allowed.
func (c *corsConfig) allowOrigin(origin string) string {
	if c.allowAnything {
		if c.credentials && origin != "" {
			return origin
		}
		return "*"
	}
	if origin == "" {
		return ""
	}
	for _, o := range c.origins {
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}
