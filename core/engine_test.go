package core

import (
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchktools/fast-express/core/http"
)

func TestRouteTableExactMatch(t *testing.T) {
	table := newRouteTable()
	var hit string
	table.add("GET", "/a", func(ctx http.Context) { hit = "a" })
	table.add("GET", "/a", func(ctx http.Context) { hit = "a2" })
	table.add("POST", "/a", func(ctx http.Context) { hit = "post" })
	table.setFallback(func(ctx http.Context) { hit = "fallback" })

	h, ok := table.find("GET", "/a")
	require.True(t, ok)
	h(nil)
	assert.Equal(t, "a2", hit)

	h, ok = table.find("GET", "/b")
	assert.False(t, ok)
	h(nil)
	assert.Equal(t, "fallback", hit)

	assert.Equal(t, 2, table.len())
}

func TestRouteTableVerifiesCollisions(t *testing.T) {
	table := newRouteTable()
	key := hashRoute("GET", "/x")
	table.static[key] = []route{{method: "GET", path: "/other", handler: func(http.Context) {}}}

	_, ok := table.find("GET", "/x")
	assert.False(t, ok)

	table.add("GET", "/x", func(http.Context) {})
	_, ok = table.find("GET", "/x")
	assert.True(t, ok)
	assert.Len(t, table.static[key], 2)
}

func TestHashRouteSeparatesMethods(t *testing.T) {
	assert.Equal(t, hashRoute("GET", "/a"), hashRoute("GET", "/a"))
	assert.NotEqual(t, hashRoute("GET", "/a"), hashRoute("PUT", "/a"))
}

func TestEngineServeHTTP(t *testing.T) {
	e := New()
	assert.True(t, e.Handle("get", "/hello", func(ctx http.Context) {
		ctx.String(200, "hello "+ctx.Query("name"))
	}))
	assert.False(t, e.Handle("CONNECT", "/hello", func(ctx http.Context) {}))
	e.POST("/echo", func(ctx http.Context) {
		ctx.Bytes(201, ctx.Body())
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest("GET", "/hello?name=go", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "hello go", rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest("POST", "/echo", strings.NewReader("body")))
	assert.Equal(t, 201, rec.Code)
	assert.Equal(t, "body", rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest("GET", "/missing", nil))
	assert.Equal(t, 404, rec.Code)

	e.Any(func(ctx http.Context) { ctx.String(200, "catch-all "+ctx.Path()) })
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest("GET", "/missing", nil))
	assert.Equal(t, "catch-all /missing", rec.Body.String())

	s := e.Stats()
	assert.Equal(t, uint64(4), s.Requests)
	assert.Equal(t, uint64(2), s.NativeHits)
	assert.Equal(t, 2, e.Routes())
}

func TestEngineRecoversPanics(t *testing.T) {
	e := New()
	e.GET("/panic", func(ctx http.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest("GET", "/panic", nil))
	assert.Equal(t, 500, rec.Code)
}

func TestCollector(t *testing.T) {
	e := New()
	e.GET("/", func(ctx http.Context) { ctx.String(200, "ok") })
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	c := NewCollector(e, "fastexpress")
	assert.Equal(t, 11, testutil.CollectAndCount(c))
	assert.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(`
# HELP fastexpress_engine_requests_total Requests served by the engine.
# TYPE fastexpress_engine_requests_total counter
fastexpress_engine_requests_total 1
`), "fastexpress_engine_requests_total"))
}

func TestStatsIncludeGC(t *testing.T) {
	runtime.GC()
	s := New().Stats()
	assert.NotZero(t, s.GC.NumGC)
	assert.Positive(t, s.GC.NumGoroutine)
	assert.Equal(t, 1, testutil.CollectAndCount(NewCollector(New(), "fastexpress"), "fastexpress_engine_gc_pause_seconds_total"))
}
