package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter counts requests in Redis so the limit holds
// across every API instance behind the balancer.
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a Redis-backed fixed-window limiter
// under the given key prefix.
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

func (rl *DistributedRateLimiter) key(key string) string {
	return rl.prefix + ":" + key
}

// Allow counts the request against its window. INCR and EXPIRE run in
// one pipeline so a fresh key always gets its TTL.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, rl.key(key))
	pipe.Expire(ctx, rl.key(key), rl.config.WindowDuration)

	if _, err := pipe.Exec(ctx); err != nil {
		// The caller decides whether to fail open or closed.
		return true, fmt.Errorf("rate limit check: %w", err)
	}
	return incr.Val() <= int64(rl.config.RequestsPerWindow), nil
}

// Remaining reports how many requests are left in the current window.
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	count, err := rl.redis.Get(ctx, rl.key(key)).Int()
	if err == redis.Nil {
		return rl.config.RequestsPerWindow, nil
	}
	if err != nil {
		return 0, err
	}
	if remaining := rl.config.RequestsPerWindow - count; remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}

// TTL reports how long until the window resets.
func (rl *DistributedRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, rl.key(key)).Result()
}

// Reset clears a key's window.
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.key(key)).Err()
}

// DistributedRateLimitMiddleware applies per-identity and per-IP limits
// backed by Redis. Identified requests get the roomier user bucket;
// anonymous ones are keyed by client address. When Redis is unreachable
// requests fall back to a local per-instance token bucket, so a cache
// outage loosens the limit instead of dropping traffic.
type DistributedRateLimitMiddleware struct {
	redis            *redis.Client
	userLimiter      *DistributedRateLimiter
	gatewayLimiter   *DistributedRateLimiter
	anonymousLimiter *DistributedRateLimiter
	localFallback    *RateLimiter
	fallbackEnabled  bool
}

// NewDistributedRateLimitMiddleware creates the middleware with the
// standard bucket tiers. Falls back to local limiting on Redis errors
// by default.
func NewDistributedRateLimitMiddleware(redisClient *redis.Client) *DistributedRateLimitMiddleware {
	return &DistributedRateLimitMiddleware{
		redis:            redisClient,
		userLimiter:      NewDistributedRateLimiter(redisClient, PerUserRateLimitConfig(), "ratelimit:user"),
		gatewayLimiter:   NewDistributedRateLimiter(redisClient, GatewayRateLimitConfig(), "ratelimit:gateway"),
		anonymousLimiter: NewDistributedRateLimiter(redisClient, DefaultRateLimitConfig(), "ratelimit:anon"),
		localFallback:    NewRateLimiter(PerUserRateLimitConfig()),
		fallbackEnabled:  true,
	}
}

// SetFallbackEnabled switches between local fallback limiting (true)
// and answering 503 (false) when Redis is unreachable.
func (m *DistributedRateLimitMiddleware) SetFallbackEnabled(enabled bool) {
	m.fallbackEnabled = enabled
}

// HealthCheck verifies the limiter's Redis connection.
func (m *DistributedRateLimitMiddleware) HealthCheck(ctx context.Context) error {
	return m.redis.Ping(ctx).Err()
}

// Handler enforces the user or anonymous bucket on REST requests and
// attaches the X-RateLimit response headers.
func (m *DistributedRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key string
		var limiter *DistributedRateLimiter
		if identity := GetIdentity(r); identity != nil {
			key = "user:" + identity.UserID
			limiter = m.userLimiter
		} else {
			key = "ip:" + getClientIP(r)
			limiter = m.anonymousLimiter
		}

		if !m.checkAndRespond(w, r, limiter, key) {
			return
		}

		m.setQuotaHeaders(r.Context(), w, limiter, key)
		next.ServeHTTP(w, r)
	})
}

// GatewayHandler wraps the websocket upgrade endpoint with a stricter
// per-IP limit. Handshakes are keyed by client address so reconnect
// storms from one host cannot starve the shared user buckets.
func (m *DistributedRateLimitMiddleware) GatewayHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.checkAndRespond(w, r, m.gatewayLimiter, "ip:"+getClientIP(r)) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkAndRespond runs the limiter and writes the refusal when the
// request cannot proceed. Returns true when the request may continue.
func (m *DistributedRateLimitMiddleware) checkAndRespond(w http.ResponseWriter, r *http.Request, limiter *DistributedRateLimiter, key string) bool {
	allowed, err := limiter.Allow(r.Context(), key)
	if err != nil {
		if !m.fallbackEnabled {
			http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
			return false
		}
		if !m.localFallback.Allow(key) {
			m.writeLimitExceeded(r.Context(), w, limiter, key)
			return false
		}
		return true
	}
	if !allowed {
		m.writeLimitExceeded(r.Context(), w, limiter, key)
		return false
	}
	return true
}

func (m *DistributedRateLimitMiddleware) setQuotaHeaders(ctx context.Context, w http.ResponseWriter, limiter *DistributedRateLimiter, key string) {
	remaining, err := limiter.Remaining(ctx, key)
	if err != nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if ttl, err := limiter.TTL(ctx, key); err == nil && ttl > 0 {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
	}
}

func (m *DistributedRateLimitMiddleware) writeLimitExceeded(ctx context.Context, w http.ResponseWriter, limiter *DistributedRateLimiter, key string) {
	retryAfter := int64(limiter.config.WindowDuration.Seconds())
	if ttl, err := limiter.TTL(ctx, key); err == nil && ttl > 0 {
		retryAfter = int64(ttl.Seconds())
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, `{"error":"rate limit exceeded","retry_after":%d}`, retryAfter)
}
