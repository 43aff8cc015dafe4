package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/searchktools/fast-express/core/logger"
	"github.com/searchktools/fast-express/core/observability"
	"github.com/searchktools/fast-express/core/router"
)

func do(h stdhttp.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func userRouter() *router.Router {
	users := router.New()
	users.Get("/:id", func(req *router.Request, res *router.Response, next router.NextFunc) {
		res.Send("user " + req.Param("id"))
	})
	users.Get("/:id/fail", func(req *router.Request, res *router.Response, next router.NextFunc) {
		next(router.NewHTTPError(503, "down"))
	})
	return users
}

func TestRequestID(t *testing.T) {
	var seen string
	r := router.New()
	r.Use(RequestID())
	r.Get("/", func(req *router.Request, res *router.Response, next router.NextFunc) {
		seen = GetRequestID(req)
		res.Send("ok")
	})

	rec := do(r, "GET", "/", nil)
	id := rec.Header().Get(HeaderRequestID)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, seen)

	rec = do(r, "GET", "/", map[string]string{HeaderRequestID: "abc"})
	assert.Equal(t, "abc", rec.Header().Get(HeaderRequestID))
	assert.Equal(t, "abc", seen)

	rec = do(r, "GET", "/", map[string]string{HeaderRequestID: strings.Repeat("x", 200)})
	assert.NotEqual(t, strings.Repeat("x", 200), rec.Header().Get(HeaderRequestID))
}

func TestRequestIDOptions(t *testing.T) {
	r := router.New()
	r.Use(RequestID(
		WithRequestIDHeader("X-Correlation-ID"),
		WithRequestIDGenerator(func() string { return "fixed" }),
		WithClientRequestID(false),
	))
	r.Get("/", func(req *router.Request, res *router.Response, next router.NextFunc) { res.Send("ok") })

	rec := do(r, "GET", "/", map[string]string{"X-Correlation-ID": "client"})
	assert.Equal(t, "fixed", rec.Header().Get("X-Correlation-ID"))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithFormat("json"), logger.WithLevel(slog.LevelDebug))

	r := router.New()
	r.Use(RequestID(WithRequestIDGenerator(func() string { return "rid" })))
	r.Use(Logger(log))
	r.Use("/users", userRouter())

	do(r, "GET", "/users/7?x=1", nil)
	do(r, "GET", "/nope", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "access", first["component"])
	assert.Equal(t, "/users/7?x=1", first["path"])
	assert.Equal(t, "/users/:id", first["route"])
	assert.Equal(t, float64(200), first["status_code"])
	assert.Equal(t, "rid", first["request_id"])

	assert.Equal(t, "WARN", second["level"])
	assert.Equal(t, float64(404), second["status_code"])
}

func TestMetrics(t *testing.T) {
	m := observability.New(observability.Config{Namespace: "test"})
	r := router.New()
	r.Use(Metrics(m))
	r.Use("/users", userRouter())

	do(r, "GET", "/users/1", nil)
	do(r, "GET", "/users/2", nil)
	do(r, "GET", "/users/2/fail", nil)
	do(r, "GET", "/other", nil)

	expected := `
# HELP test_http_requests_total HTTP requests by method, route and status.
# TYPE test_http_requests_total counter
test_http_requests_total{method="GET",route="/users/:id",status="200"} 2
test_http_requests_total{method="GET",route="/users/:id/fail",status="503"} 1
test_http_requests_total{method="GET",route="unmatched",status="404"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "test_http_requests_total"))

	inFlight := `
# HELP test_http_requests_in_flight Requests dispatched but not yet answered.
# TYPE test_http_requests_in_flight gauge
test_http_requests_in_flight 0
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(inFlight), "test_http_requests_in_flight"))
}

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	r := router.New()
	r.Use(Tracing(
		WithTracerProvider(tp),
		WithPropagator(propagation.TraceContext{}),
		WithSkipPaths("/healthz"),
	))
	r.Get("/healthz", func(req *router.Request, res *router.Response, next router.NextFunc) { res.Send("ok") })
	r.Use("/users", userRouter())

	const parent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	do(r, "GET", "/users/9", map[string]string{"traceparent": parent})
	do(r, "GET", "/users/9/fail", nil)
	do(r, "GET", "/healthz", nil)

	spans := sr.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Equal(t, "GET /users/:id", ok.Name())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", ok.SpanContext().TraceID().String())
	assert.True(t, ok.Parent().IsRemote())
	assert.Contains(t, ok.Attributes(), attribute.String("http.route", "/users/:id"))
	assert.Contains(t, ok.Attributes(), attribute.Int("http.response.status_code", 200))
	assert.Equal(t, codes.Unset, ok.Status().Code)

	failed := spans[1]
	assert.Equal(t, "GET /users/:id/fail", failed.Name())
	assert.Equal(t, codes.Error, failed.Status().Code)
}

func TestCORSPreflight(t *testing.T) {
	var reached bool
	r := router.New()
	r.Use(CORS(WithAllowOrigins("https://a.example"), WithMaxAge(600), WithAllowCredentials(true)))
	r.All("/api", func(req *router.Request, res *router.Response, next router.NextFunc) {
		reached = true
		res.Send("api")
	})

	rec := do(r, "OPTIONS", "/api", map[string]string{
		"Origin":                        "https://a.example",
		"Access-Control-Request-Method": "PUT",
	})
	assert.Equal(t, 204, rec.Code)
	assert.False(t, reached)
	assert.Equal(t, "https://a.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PUT")

	rec = do(r, "GET", "/api", map[string]string{"Origin": "https://a.example"})
	assert.Equal(t, "api", rec.Body.String())
	assert.Equal(t, "https://a.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(r, "GET", "/api", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, "api", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcard(t *testing.T) {
	r := router.New()
	r.Use(CORS(WithExposeHeaders("X-Request-ID")))
	r.Get("/", func(req *router.Request, res *router.Response, next router.NextFunc) { res.Send("ok") })

	rec := do(r, "GET", "/", map[string]string{"Origin": "https://b.example"})
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Request-ID", rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Empty(t, rec.Header().Get("Vary"))
}

func TestRateLimit(t *testing.T) {
	r := router.New()
	r.Use(RateLimit(1, WithBurst(2), WithKeyFunc(func(req *router.Request) string {
		return req.Header("X-Client")
	})))
	r.Get("/", func(req *router.Request, res *router.Response, next router.NextFunc) { res.Send("ok") })

	client := map[string]string{"X-Client": "a"}
	assert.Equal(t, 200, do(r, "GET", "/", client).Code)
	assert.Equal(t, 200, do(r, "GET", "/", client).Code)

	rec := do(r, "GET", "/", client)
	assert.Equal(t, 429, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "Too Many Requests", rec.Body.String())

	assert.Equal(t, 200, do(r, "GET", "/", map[string]string{"X-Client": "b"}).Code)
}

func TestRateLimitErrorHandler(t *testing.T) {
	r := router.New()
	r.Use(RateLimit(0.5, WithBurst(1)))
	r.Get("/", func(req *router.Request, res *router.Response, next router.NextFunc) { res.Send("ok") })
	r.OnError(func(err error, req *router.Request, res *router.Response, next router.NextFunc) {
		assert.ErrorIs(t, err, ErrTooManyRequests)
		res.Status(429).JSON(map[string]string{"error": "slow down"})
	})

	assert.Equal(t, 200, do(r, "GET", "/", nil).Code)
	rec := do(r, "GET", "/", nil)
	assert.Equal(t, 429, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"slow down"}`, rec.Body.String())
}
