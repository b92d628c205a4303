package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/shopdesk/internal/config"
	"go.uber.org/fx"
)

const keyTaxCalculateShop = "tax:calculate:shop:%s"

// CalculateLimiter throttles ad-hoc tax quotes per shop.
// A nil limiter allows everything.
type CalculateLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

type Params struct {
	fx.In

	Config config.Config
	Redis  *redis.Client `optional:"true"`
}

// NewCalculateLimiter returns nil when redis is off or the limit is disabled.
func NewCalculateLimiter(p Params) *CalculateLimiter {
	cfg := p.Config.RateLimit
	if p.Redis == nil || cfg.CalculateRate <= 0 || cfg.CalculateBurst <= 0 {
		return nil
	}
	return &CalculateLimiter{
		bucket: NewTokenBucket(p.Redis),
		rate:   cfg.CalculateRate,
		burst:  cfg.CalculateBurst,
	}
}

func (l *CalculateLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *CalculateLimiter) Allow(ctx context.Context, shopID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyTaxCalculateShop, strings.TrimSpace(shopID)), l.rate, l.burst)
}
