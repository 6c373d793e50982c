package middleware

import (
	"net/http"
	"sync"
	"time"

	"licensegate/logger"
	"licensegate/models"

	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per client address.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	rps      rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
	proxies  *TrustedProxies
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst for each client.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      10 * time.Minute,
		now:      time.Now,
	}
}

// TrustProxies makes the limiter key on the forwarded client address for
// requests arriving through one of the given proxies.
func (rl *RateLimiter) TrustProxies(proxies *TrustedProxies) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.proxies = proxies
}

func (rl *RateLimiter) clientKey(r *http.Request) string {
	rl.mu.Lock()
	proxies := rl.proxies
	rl.mu.Unlock()
	return proxies.ClientIP(r)
}

// Allow reports whether the client may proceed now.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.limiters[client]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[client] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Cleanup drops buckets idle for longer than the ttl.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.ttl)
	removed := 0
	for client, v := range rl.limiters {
		if v.lastSeen.Before(cutoff) {
			delete(rl.limiters, client)
			removed++
		}
	}
	return removed
}

// Middleware answers 429 with reason rate_limited once a client's bucket is empty.
func (rl *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := rl.clientKey(r)
		if !rl.Allow(client) {
			logger.WithFields(map[string]interface{}{
				"request_id": RequestIDFromContext(r.Context()),
				"ip":         client,
				"path":       r.URL.Path,
			}).Warn("Rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			writeResult(w, http.StatusTooManyRequests, models.Failure(models.ReasonRateLimited, nil))
			return
		}
		next.ServeHTTP(w, r)
	}
}
