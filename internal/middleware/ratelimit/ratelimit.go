// Package ratelimit caps mutating API requests per client and minute.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"webbudget/internal/cache"
	"webbudget/internal/middleware/trace"
)

// idleTTL is how long an unused client bucket is kept.
const idleTTL = 5 * time.Minute

// Limiter keeps one token bucket per client, refilled at RequestsPerMinute
// with a burst of the same size. Buckets live in an LRU, so idle clients
// fall out without a dedicated goroutine.
type Limiter struct {
	mu                sync.Mutex
	requestsPerMinute int
	buckets           *cache.LRU[*rate.Limiter]
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	// MaxClients bounds the number of tracked clients.
	MaxClients int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		MaxClients:        10000,
	}
}

// NewLimiter creates a new rate limiter
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.MaxClients <= 0 {
		config.MaxClients = def.MaxClients
	}
	return &Limiter{
		requestsPerMinute: config.RequestsPerMinute,
		buckets:           cache.NewLRU[*rate.Limiter](config.MaxClients, idleTTL),
	}
}

// Allow checks if a request from the given client should be allowed
func (rl *Limiter) Allow(client string) bool {
	rl.mu.Lock()
	b, ok := rl.buckets.Get(client)
	if !ok {
		every := time.Minute / time.Duration(rl.requestsPerMinute)
		b = rate.NewLimiter(rate.Every(every), rl.requestsPerMinute)
	}
	// re-set to extend the idle expiry
	rl.buckets.Set(client, b)
	rl.mu.Unlock()

	return b.Allow()
}

// CleanExpired drops idle client buckets.
func (rl *Limiter) CleanExpired() int {
	return rl.buckets.CleanExpired()
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	return rl.buckets.Len()
}

// Middleware rejects mutating requests over the limit with 429. Reads are
// never limited.
func (rl *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if !rl.Allow(trace.ClientIP(r)) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":"rate_limited","message":"too many requests"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
