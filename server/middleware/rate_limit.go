package middleware

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	ierrors "github.com/hrygo/strawbean/internal/errors"
)

// Default limits applied per key.
const (
	DefaultRatePerSecond = 10
	DefaultBurst         = 20
)

// DefaultIdleTTL is how long an unused bucket is kept. A bucket idle that long
// has refilled, so dropping it does not change any decision.
const DefaultIdleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key. Buckets idle for longer than
// the TTL are swept, so the map tracks recently active keys only.
type RateLimiter struct {
	mu        sync.Mutex
	limits    map[string]*bucket
	every     time.Duration
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a rate limiter allowing perSecond requests per key
// with the given burst. Non-positive values take the defaults.
func NewRateLimiter(perSecond, burst int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = DefaultRatePerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	every := time.Second / time.Duration(perSecond)
	return &RateLimiter{
		limits:  make(map[string]*bucket),
		every:   every,
		burst:   burst,
		idleTTL: max(DefaultIdleTTL, every*time.Duration(burst)),
		now:     time.Now,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.idleTTL {
		rl.sweep(now)
	}
	if b, ok := rl.limits[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	b := &bucket{limiter: rate.NewLimiter(rate.Every(rl.every), rl.burst), lastSeen: now}
	rl.limits[key] = b
	return b.limiter
}

// sweep drops buckets idle for at least the TTL. Callers hold rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for key, b := range rl.limits {
		if now.Sub(b.lastSeen) >= rl.idleTTL {
			delete(rl.limits, key)
		}
	}
	rl.lastSweep = now
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()
	return rl.getLimiter(key, now).AllowN(now, 1)
}

// Middleware rejects requests over the limit with RATE_LIMIT_EXCEEDED. key
// picks the bucket for a request, typically the authenticated owner; an empty
// key falls back to the client IP.
func (rl *RateLimiter) Middleware(key func(c echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			k := ""
			if key != nil {
				k = key(c)
			}
			if k == "" {
				k = "ip:" + c.RealIP()
			}
			if !rl.Allow(k) {
				return ierrors.RateLimitExceeded("too many requests, slow down")
			}
			return next(c)
		}
	}
}
