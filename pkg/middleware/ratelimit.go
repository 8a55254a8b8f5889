package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// RateLimitConfig describes one rate limit tier.
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window.
	RequestsPerWindow int
	// WindowDuration is the length of the window.
	WindowDuration time.Duration
	// BurstSize is extra headroom above the steady rate, honored by the
	// in-memory limiter only.
	BurstSize int
}

// DefaultRateLimitConfig is the anonymous per-IP tier.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// PerUserRateLimitConfig is the tier for authenticated requests.
func PerUserRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 1000,
		WindowDuration:    time.Minute,
		BurstSize:         50,
	}
}

// GatewayRateLimitConfig limits gateway handshakes, which are cheap to
// retry and easy to hammer on reconnect storms.
func GatewayRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 30,
		WindowDuration:    time.Minute,
		BurstSize:         5,
	}
}

// RateLimiter is a local token-bucket limiter. The distributed
// middleware uses it as a per-instance backstop while Redis is down;
// the limit is then enforced per process rather than fleet-wide.
type RateLimiter struct {
	config *RateLimitConfig

	mu      sync.RWMutex
	buckets map[string]*bucket
}

type bucket struct {
	mu       sync.Mutex
	tokens   int
	refilled time.Time
}

// NewRateLimiter creates a local limiter. A nil config gets the
// anonymous tier defaults.
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
	}
}

func (rl *RateLimiter) capacity() int {
	return rl.config.RequestsPerWindow + rl.config.BurstSize
}

func (rl *RateLimiter) bucketFor(key string) *bucket {
	rl.mu.RLock()
	b := rl.buckets[key]
	rl.mu.RUnlock()
	if b != nil {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b = rl.buckets[key]; b == nil {
		b = &bucket{tokens: rl.capacity(), refilled: time.Now()}
		rl.buckets[key] = b
	}
	return b
}

// refill adds tokens earned since the last refill. Caller holds b.mu.
func (rl *RateLimiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.refilled)
	earned := int(elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds())
	if earned <= 0 {
		return
	}
	b.tokens += earned
	if limit := rl.capacity(); b.tokens > limit {
		b.tokens = limit
	}
	b.refilled = now
}

// Allow takes one token from the key's bucket, reporting whether one
// was available.
func (rl *RateLimiter) Allow(key string) bool {
	b := rl.bucketFor(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	rl.refill(b, time.Now())
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Remaining reports the tokens left for a key.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.RLock()
	b := rl.buckets[key]
	rl.mu.RUnlock()
	if b == nil {
		return rl.capacity()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Cleanup drops buckets idle for more than two windows.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-2 * rl.config.WindowDuration)
	for key, b := range rl.buckets {
		b.mu.Lock()
		if b.refilled.Before(cutoff) {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// StartCleanup runs Cleanup once per window until ctx is cancelled.
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(rl.config.WindowDuration)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// getClientIP resolves the client address, trusting proxy headers when
// present.
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
