package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/pixbot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPurchaseLimiterDisabled(t *testing.T) {
	limiter, err := NewPurchaseLimiter(Params{Cfg: config.Config{}})
	require.NoError(t, err)
	assert.Nil(t, limiter)

	ctx := context.Background()
	res, err := limiter.Allow(ctx, 42)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	token, ok, err := limiter.TryLock(ctx, 42, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, limiter.Release(ctx, 42, 7, token))
}

func TestNewPurchaseLimiterConfigErrors(t *testing.T) {
	base := config.RateLimitConfig{
		Enabled:         true,
		RedisAddr:       "localhost:6379",
		PurchaseRate:    1,
		PurchaseBurst:   2,
		PurchaseLockTTL: time.Second,
	}

	cases := []struct {
		name   string
		mutate func(*config.RateLimitConfig)
		want   error
	}{
		{"missing addr", func(c *config.RateLimitConfig) { c.RedisAddr = " " }, ErrRedisAddrRequired},
		{"zero rate", func(c *config.RateLimitConfig) { c.PurchaseRate = 0 }, ErrInvalidRate},
		{"zero burst", func(c *config.RateLimitConfig) { c.PurchaseBurst = 0 }, ErrInvalidRate},
		{"zero lock ttl", func(c *config.RateLimitConfig) { c.PurchaseLockTTL = 0 }, ErrInvalidLockTTL},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rl := base
			tc.mutate(&rl)
			_, err := NewPurchaseLimiter(Params{Cfg: config.Config{RateLimit: rl}})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewPurchaseLimiterEnabled(t *testing.T) {
	limiter, err := NewPurchaseLimiter(Params{Cfg: config.Config{RateLimit: config.RateLimitConfig{
		Enabled:         true,
		RedisAddr:       "localhost:6379",
		PurchaseRate:    0.5,
		PurchaseBurst:   3,
		PurchaseLockTTL: 10 * time.Second,
	}}})
	require.NoError(t, err)
	require.NotNil(t, limiter)
	assert.Equal(t, "purchase:lock:9:12", lockKey(9, 12))
}

func TestTokenBucketValidation(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)
	assert.Equal(t, time.Second, defaultBucketTTL(0, 1))
	assert.Equal(t, 6*time.Second, defaultBucketTTL(1, 3))
}
