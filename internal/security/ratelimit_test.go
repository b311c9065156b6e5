package security

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmsim/llmsim/internal/config"
)

func TestTokenBucketCreation(t *testing.T) {
	b := NewTokenBucket(10, 60)
	assert.EqualValues(t, 10, b.Capacity())
	assert.EqualValues(t, 10, b.Tokens())
}

func TestTokenBucketConsume(t *testing.T) {
	b := NewTokenBucket(5, 60)

	for i := 0; i < 5; i++ {
		assert.True(t, b.TryConsume(1), "consume %d should succeed", i)
	}
	assert.False(t, b.TryConsume(1))
	assert.GreaterOrEqual(t, b.Tokens(), int64(0))
}

func TestTokenBucketConservationUnderContention(t *testing.T) {
	const capacity = 100
	b := NewTokenBucket(capacity, 1) // negligible refill during the test

	var wg sync.WaitGroup
	counts := make([]int, 20)
	for w := 0; w < 20; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if b.TryConsume(1) {
					counts[w]++
				}
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for _, c := range counts {
		total += c
	}
	// Never grant more than capacity, never drop below zero.
	assert.LessOrEqual(t, total, capacity)
	assert.GreaterOrEqual(t, b.Tokens(), int64(0))
	assert.LessOrEqual(t, b.Tokens(), int64(capacity))
}

func TestTokenBucketRefillNeverOvershoots(t *testing.T) {
	b := NewTokenBucket(5, 6000) // 100 tokens/sec
	require.True(t, b.TryConsume(5))

	time.Sleep(120 * time.Millisecond)
	tokens := b.Tokens()
	assert.Greater(t, tokens, int64(0))
	assert.LessOrEqual(t, tokens, int64(5))

	// Long idle still caps at capacity.
	time.Sleep(120 * time.Millisecond)
	assert.LessOrEqual(t, b.Tokens(), int64(5))
}

func TestTimeUntilToken(t *testing.T) {
	b := NewTokenBucket(1, 60) // 1 token/sec
	assert.Zero(t, b.TimeUntilToken())

	require.True(t, b.TryConsume(1))
	wait := b.TimeUntilToken()
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, time.Second)
}

func TestRateLimiterUnlimitedTier(t *testing.T) {
	l := NewRateLimiter(config.DefaultRateLimitConfig())

	for i := 0; i < 1000; i++ {
		d := l.TryAcquire("admin-key", config.TierUnlimited)
		require.True(t, d.Allowed)
		assert.Zero(t, d.Reset)
	}
	// Unlimited short-circuits bucket creation.
	assert.Zero(t, l.BucketCount())
}

func TestRateLimiterExhaustion(t *testing.T) {
	cfg := config.DefaultRateLimitConfig()
	cfg.Tiers.Standard = config.TierLimits{RequestsPerMinute: 60, BurstSize: 3}
	l := NewRateLimiter(cfg)

	for i := 0; i < 3; i++ {
		d := l.TryAcquire("key-1", config.TierStandard)
		require.True(t, d.Allowed, "request %d should pass", i)
		assert.Equal(t, 60, d.Limit)
	}

	d := l.TryAcquire("key-1", config.TierStandard)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))

	// A different key has its own bucket.
	assert.True(t, l.TryAcquire("key-2", config.TierStandard).Allowed)
	assert.Equal(t, 2, l.BucketCount())
}

func TestRateLimiterSingleBucketPerKey(t *testing.T) {
	l := NewRateLimiter(config.DefaultRateLimitConfig())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.TryAcquire("same-key", config.TierStandard)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, l.BucketCount())
}
