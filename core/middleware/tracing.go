package middleware

import (
	stdhttp "net/http"

	"github.com/searchktools/fast-express/core/router"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/searchktools/fast-express/core/middleware"

// TracingOption configures Tracing.
type TracingOption func(*tracingConfig)

type tracingConfig struct {
	provider   trace.TracerProvider
	propagator propagation.TextMapPropagator
	skip       map[string]struct{}
}

// WithTracerProvider sets the provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(c *tracingConfig) { c.provider = tp }
}

// WithPropagator sets the propagator used to read incoming trace headers.
// Defaults to the global one.
func WithPropagator(p propagation.TextMapPropagator) TracingOption {
	return func(c *tracingConfig) { c.propagator = p }
}

// WithSkipPaths disables tracing for exact request paths.
func WithSkipPaths(paths ...string) TracingOption {
	return func(c *tracingConfig) {
		for _, p := range paths {
			c.skip[p] = struct{}{}
		}
	}
}

// Tracing starts a server span per request and stores it in the request
// context. The span is renamed after the matched route and ends when the
// response is written or the client aborts.
func Tracing(opts ...TracingOption) router.HandlerFunc {
	cfg := tracingConfig{skip: make(map[string]struct{})}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.provider == nil {
		cfg.provider = otel.GetTracerProvider()
	}
	if cfg.propagator == nil {
		cfg.propagator = otel.GetTextMapPropagator()
	}
	tracer := cfg.provider.Tracer(tracerName)

	return func(req *router.Request, res *router.Response, next router.NextFunc) {
		if _, ok := cfg.skip[req.Path()]; ok {
			next(nil)
			return
		}

		ctx := cfg.propagator.Extract(req.Context(), headerCarrier{req})
		ctx, span := tracer.Start(ctx, req.Method(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", req.Method()),
				attribute.String("url.path", req.Path()),
			),
		)
		req.WithContext(ctx)

		onDone(req, res, func(status int) {
			if route := req.Route(); route != "" {
				span.SetName(req.Method() + " " + route)
				span.SetAttributes(attribute.String("http.route", route))
			}
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			switch {
			case status == StatusClientClosed:
				span.SetStatus(codes.Error, "client closed request")
			case status >= 500:
				span.SetStatus(codes.Error, stdhttp.StatusText(status))
			}
			span.End()
		})
		next(nil)
	}
}

// headerCarrier reads propagation headers from a request.
type headerCarrier struct {
	req *router.Request
}

func (c headerCarrier) Get(key string) string { return c.req.Header(key) }
func (c headerCarrier) Set(string, string)    {}
func (c headerCarrier) Keys() []string        { return nil }
