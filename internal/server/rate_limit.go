package server

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/shopdesk/internal/observability/logger"
	"github.com/smallbiznis/shopdesk/internal/ratelimit"
	"github.com/smallbiznis/shopdesk/internal/shopcontext"
	"go.uber.org/zap"
)

type calculateLimiter interface {
	Allow(ctx context.Context, shopID string) (*ratelimit.RateLimitResult, error)
}

// rateLimitCalculate fails open when the limiter backend errors.
func (s *Server) rateLimitCalculate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		shopID, ok := shopcontext.ShopIDFromContext(ctx)
		if !ok {
			c.Next()
			return
		}

		res, err := s.limiter.Allow(ctx, shopID.String())
		if err != nil {
			logger.WithContext(ctx, s.log).Warn("tax calculate rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			seconds := int(res.RetryAfter.Seconds())
			if res.RetryAfter > 0 && seconds == 0 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
