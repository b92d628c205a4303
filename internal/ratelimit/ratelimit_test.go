package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/shopdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilLimiterAllows(t *testing.T) {
	limiter := NewCalculateLimiter(Params{Config: config.Config{RateLimit: config.RateLimitConfig{CalculateRate: 5, CalculateBurst: 10}}})
	require.Nil(t, limiter, "no redis client means no limiter")

	res, err := limiter.Allow(context.Background(), "100")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.False(t, limiter.Enabled())
}

func TestNilTokenBucketRejects(t *testing.T) {
	var bucket *TokenBucket
	res, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, res.Allowed)
	assert.Equal(t, 1, res.Limit)
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, time.Second, defaultBucketTTL(0, 10))
	assert.Equal(t, 4*time.Second, defaultBucketTTL(5, 10))
	assert.Equal(t, time.Second, defaultBucketTTL(1000, 1))
}

func TestBuildResult(t *testing.T) {
	denied := buildResult(false, 0.5, 1_000, 2, 10)
	assert.False(t, denied.Allowed)
	assert.Equal(t, 250*time.Millisecond, denied.RetryAfter)
	assert.Equal(t, 10, denied.Limit)
	assert.Equal(t, time.UnixMilli(1_000).Add(250*time.Millisecond), denied.ResetTime)

	allowed := buildResult(true, 7.9, 1_000, 2, 10)
	assert.True(t, allowed.Allowed)
	assert.Equal(t, 7, allowed.Remaining)
	assert.Zero(t, allowed.RetryAfter)
}

func TestCasts(t *testing.T) {
	assert.Equal(t, int64(1), castToInt(int64(1)))
	assert.Equal(t, int64(3), castToInt("3"))
	assert.Equal(t, int64(0), castToInt(nil))
	assert.InDelta(t, 2.5, castToFloat("2.5"), 1e-9)
	assert.InDelta(t, 4.0, castToFloat(int64(4)), 1e-9)
	assert.Zero(t, castToFloat("nan-ish"))
}
