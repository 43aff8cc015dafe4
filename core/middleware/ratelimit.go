package middleware

import (
	"math"
	stdhttp "net/http"
	"strconv"
	"sync"

	"github.com/searchktools/fast-express/core/router"
	"golang.org/x/time/rate"
)

// maxLimiterKeys bounds the per-key limiter table. When it fills up the
// table starts over.
const maxLimiterKeys = 10000

// ErrTooManyRequests is passed to next when a request is rate limited.
var ErrTooManyRequests = router.NewHTTPError(stdhttp.StatusTooManyRequests, "")

// RateLimitOption configures RateLimit.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	burst int
	key   func(*router.Request) string
}

// WithBurst sets the bucket size. Defaults to the per-second rate.
func WithBurst(n int) RateLimitOption {
	return func(c *rateLimitConfig) { c.burst = n }
}

// WithKeyFunc limits each key separately, e.g. per client header.
func WithKeyFunc(fn func(*router.Request) string) RateLimitOption {
	return func(c *rateLimitConfig) { c.key = fn }
}

// RateLimit allows perSecond requests per key with a token bucket.
// Limited requests fail with ErrTooManyRequests so error handlers see them.
func RateLimit(perSecond float64, opts ...RateLimitOption) router.HandlerFunc {
	cfg := rateLimitConfig{
		burst: max(1, int(perSecond)),
		key:   func(*router.Request) string { return "" },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	limiter := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[key]
		if !ok {
			if len(limiters) >= maxLimiterKeys {
				clear(limiters)
			}
			l = rate.NewLimiter(rate.Limit(perSecond), cfg.burst)
			limiters[key] = l
		}
		return l
	}
	wait := 1
	if perSecond > 0 && perSecond < 1 {
		wait = int(math.Ceil(1 / perSecond))
	}
	retryAfter := strconv.Itoa(wait)

	return func(req *router.Request, res *router.Response, next router.NextFunc) {
		if limiter(cfg.key(req)).Allow() {
			next(nil)
			return
		}
		res.Set("Retry-After", retryAfter)
		next(ErrTooManyRequests)
	}
}
