package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New(Config{SlowThreshold: 100 * time.Millisecond})

	m.Observe("GET", "/users", 200, 10*time.Millisecond)
	m.Observe("GET", "/users", 500, 200*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/users", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/users", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("GET", "/users")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.slowTotal.WithLabelValues("GET", "/users")))
}

func TestStartTracksInFlight(t *testing.T) {
	m := New(Config{Namespace: "test"})

	done := m.Start()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight))
	done("POST", "/login", 201)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))

	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP test_http_requests_total HTTP requests by method, route and status.
# TYPE test_http_requests_total counter
test_http_requests_total{method="POST",route="/login",status="201"} 1
`), "test_http_requests_total"))
}
