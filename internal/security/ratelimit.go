// Package security implements the request security chain: API key
// authentication with roles and tiers, per-key token bucket rate limiting,
// the admin gate, CORS, and defensive response headers.
package security

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/llmsim/llmsim/internal/apierr"
	"github.com/llmsim/llmsim/internal/config"
)

// TokenBucket is an atomic token bucket. Tokens stay within [0, capacity];
// refill is lazy and never overshoots capacity.
type TokenBucket struct {
	capacity   int64
	tokens     atomic.Int64
	refillRate float64 // tokens per second
	lastRefill atomic.Int64 // nanoseconds since start
	start      time.Time
}

// NewTokenBucket creates a full bucket with refill derived from RPM.
func NewTokenBucket(capacity, requestsPerMinute int) *TokenBucket {
	b := &TokenBucket{
		capacity:   int64(capacity),
		refillRate: float64(requestsPerMinute) / 60.0,
		start:      time.Now(),
	}
	b.tokens.Store(int64(capacity))
	return b
}

// TryConsume refills lazily, then atomically takes n tokens. It fails
// without side effects when fewer than n tokens remain.
func (b *TokenBucket) TryConsume(n int64) bool {
	b.refill()
	for {
		current := b.tokens.Load()
		if current < n {
			return false
		}
		if b.tokens.CompareAndSwap(current, current-n) {
			return true
		}
	}
}

// refill adds floor(elapsed * rate) tokens under a CAS on the refill clock.
// Refills less than one millisecond apart are skipped.
func (b *TokenBucket) refill() {
	nowNanos := time.Since(b.start).Nanoseconds()
	last := b.lastRefill.Load()

	elapsedSecs := float64(nowNanos-last) / float64(time.Second)
	if elapsedSecs < 0.001 {
		return
	}

	added := int64(elapsedSecs * b.refillRate)
	if added == 0 {
		return
	}

	if b.lastRefill.CompareAndSwap(last, nowNanos) {
		for {
			current := b.tokens.Load()
			next := current + added
			if next > b.capacity {
				next = b.capacity
			}
			if b.tokens.CompareAndSwap(current, next) {
				return
			}
		}
	}
}

// Tokens returns the current token count after a lazy refill.
func (b *TokenBucket) Tokens() int64 {
	b.refill()
	return b.tokens.Load()
}

// Capacity returns the bucket capacity.
func (b *TokenBucket) Capacity() int64 {
	return b.capacity
}

// TimeUntilToken returns how long until one token is available.
func (b *TokenBucket) TimeUntilToken() time.Duration {
	if b.Tokens() > 0 {
		return 0
	}
	if b.refillRate <= 0 {
		return time.Minute
	}
	return time.Duration(float64(time.Second) / b.refillRate)
}

// RateLimiter manages per-key buckets, lazily created with the tier's
// parameters. The lookup-or-create path is guarded so two callers cannot
// create two buckets for one key.
type RateLimiter struct {
	cfg config.RateLimitConfig

	mu      sync.RWMutex
	buckets map[string]*TokenBucket
}

// NewRateLimiter creates a limiter from its configuration.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		buckets: make(map[string]*TokenBucket),
	}
}

// Enabled reports whether limiting is active.
func (l *RateLimiter) Enabled() bool {
	return l.cfg.Enabled
}

// BucketCount returns the number of live buckets.
func (l *RateLimiter) BucketCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

func (l *RateLimiter) bucket(key string, tier config.Tier) *TokenBucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[key]; ok {
		return b
	}
	limits := l.cfg.TierConfig(tier)
	b = NewTokenBucket(limits.BurstSize, limits.RequestsPerMinute)
	l.buckets[key] = b
	return b
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int64
	Limit      int
	Reset      time.Duration
	RetryAfter time.Duration
}

// TryAcquire consumes one token for the key. Unlimited tiers always allow
// and short-circuit the bucket entirely.
func (l *RateLimiter) TryAcquire(key string, tier config.Tier) Decision {
	if tier == config.TierUnlimited {
		return Decision{Allowed: true, Remaining: math.MaxInt64, Limit: math.MaxInt32}
	}

	b := l.bucket(key, tier)
	limits := l.cfg.TierConfig(tier)

	if b.TryConsume(1) {
		return Decision{
			Allowed:   true,
			Remaining: b.Tokens(),
			Limit:     limits.RequestsPerMinute,
			Reset:     b.TimeUntilToken(),
		}
	}
	return Decision{
		Allowed:    false,
		Limit:      limits.RequestsPerMinute,
		RetryAfter: b.TimeUntilToken(),
	}
}

// RateLimitMiddleware enforces the per-key token buckets. It must run after
// the auth middleware so the identity is available; successful responses get
// the X-RateLimit-* headers, denials get 429 with Retry-After.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Enabled() {
			c.Next()
			return
		}

		identity := IdentityFrom(c)
		tier := identity.Tier
		if identity.Anonymous && limiter.cfg.DefaultTier != "" {
			tier = limiter.cfg.DefaultTier
		}
		decision := limiter.TryAcquire(identity.ID, tier)

		if !decision.Allowed {
			log.WithFields(log.Fields{
				"key_id": identity.ID,
				"tier":   tier,
				"path":   c.Request.URL.Path,
			}).Warn("rate limit exceeded")

			retryAfter := int64(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.Header("X-RateLimit-Remaining", "0")
			err := apierr.RateLimited(decision.RetryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, err.ToResponse())
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(decision.Reset.Seconds()), 10))
		c.Next()
	}
}
