package app

import (
	"context"
	"io"
	"net"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchktools/fast-express/config"
	"github.com/searchktools/fast-express/core/logger"
	"github.com/searchktools/fast-express/core/middleware"
	"github.com/searchktools/fast-express/core/router"
)

func testConfig(transport string) *config.Config {
	return &config.Config{
		Env:                  "test",
		Transport:            transport,
		ReadTimeout:          time.Second,
		WriteTimeout:         time.Second,
		IdleTimeout:          time.Second,
		MaxConnections:       64,
		Workers:              2,
		CaseSensitiveRouting: true,
	}
}

func hello(req *router.Request, res *router.Response, next router.NextFunc) {
	res.Send("hello " + req.Param("name"))
}

func TestNewWiresRouterAndMiddleware(t *testing.T) {
	a := New(testConfig(config.TransportStd), WithLogger(logger.Nop()))
	a.Router().Get("/ping", func(req *router.Request, res *router.Response, next router.NextFunc) {
		res.Send("pong")
	})
	a.Router().Get("/hello/:name", hello)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/ping", nil))
	assert.Equal(t, "pong", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/hello/ann", nil))
	assert.Equal(t, "hello ann", rec.Body.String())

	var native []string
	for _, info := range a.Router().Routes() {
		if info.Native {
			native = append(native, info.Method+" "+info.Path)
		}
	}
	assert.Equal(t, []string{"GET /ping"}, native)
	assert.Equal(t, uint64(1), a.Engine().Stats().NativeHits)

	count, err := testutil.GatherAndCount(a.Metrics().Registry(),
		"fastexpress_http_requests_total", "fastexpress_engine_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestWithoutMiddleware(t *testing.T) {
	a := New(testConfig(config.TransportStd), WithLogger(logger.Nop()), WithoutMiddleware())
	a.Router().Get("/ping", func(req *router.Request, res *router.Response, next router.NextFunc) {
		res.Send("pong")
	})

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/ping", nil))
	assert.Equal(t, "pong", rec.Body.String())
	assert.Empty(t, rec.Header().Get(middleware.HeaderRequestID))
}

func TestServeTransports(t *testing.T) {
	for _, transport := range []string{config.TransportNative, config.TransportStd, config.TransportH2C} {
		transport := transport
		t.Run(transport, func(t *testing.T) {
			a := New(testConfig(transport), WithLogger(logger.Nop()))
			a.Router().Get("/hello/:name", hello)

			ln, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- a.Serve(ctx, ln) }()

			url := "http://" + ln.Addr().String() + "/hello/bob"
			var body string
			require.Eventually(t, func() bool {
				resp, err := stdhttp.Get(url)
				if err != nil {
					return false
				}
				defer resp.Body.Close()
				b, _ := io.ReadAll(resp.Body)
				body = string(b)
				return resp.StatusCode == 200
			}, 2*time.Second, 20*time.Millisecond)
			assert.Equal(t, "hello bob", body)

			cancel()
			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("server did not stop")
			}
		})
	}
}
