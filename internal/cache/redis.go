package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/shopdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type RedisParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

// NewRedisClient returns nil when REDIS_ENABLED is off; callers fall back to memory only.
func NewRedisClient(p RedisParams) *redis.Client {
	cfg := p.Config.Redis
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	log := p.Log.Named("cache.redis")
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				// Redis is an accelerator only; keep serving from memory and the database.
				log.Warn("redis unreachable at startup", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}
