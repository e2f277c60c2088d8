package handlers

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// Per-client token bucket in front of the attendance write endpoints.
// A kiosk retrying a scan a few times is fine; a loop hammering it is not.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate per client.
	RequestsPerMinute int

	// BurstSize is the bucket capacity.
	BurstSize int

	// IdleTTL drops buckets not touched for this long.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         10,
		IdleTTL:           10 * time.Minute,
	}
}

// RateLimiter implements per-client rate limiting.
type RateLimiter struct {
	config RateLimitConfig
	now    func() time.Time

	mu          sync.Mutex
	buckets     map[string]*tokenBucket
	lastCleanup time.Time
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if config.BurstSize <= 0 {
		config.BurstSize = defaults.BurstSize
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaults.IdleTTL
	}
	return &RateLimiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*tokenBucket),
	}
}

// Allow consumes a token for key. When none is left it reports how long
// until the next one.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.cleanupLocked(now)

	refillRate := float64(rl.config.RequestsPerMinute) / 60.0 // tokens per second
	maxTokens := float64(rl.config.BurstSize)

	b, ok := rl.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: maxTokens, lastRefill: now}
		rl.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(maxTokens, b.tokens+elapsed*refillRate)
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	wait := time.Duration((1 - b.tokens) / refillRate * float64(time.Second))
	return false, wait
}

// cleanupLocked drops idle buckets at most once per IdleTTL.
func (rl *RateLimiter) cleanupLocked(now time.Time) {
	if now.Sub(rl.lastCleanup) < rl.config.IdleTTL {
		return
	}
	rl.lastCleanup = now
	for key, b := range rl.buckets {
		if now.Sub(b.lastRefill) > rl.config.IdleTTL {
			delete(rl.buckets, key)
		}
	}
}

// Size returns the number of tracked clients.
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Middleware limits requests by the key returned from keyFn.
func (rl *RateLimiter) Middleware(keyFn func(*http.Request) string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := rl.Allow(keyFn(r))
			if !allowed {
				seconds := int(math.Ceil(retryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				writePlainError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
