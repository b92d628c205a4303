package events

import (
	"context"

	"github.com/smallbiznis/shopdesk/internal/config"
	obsmetrics "github.com/smallbiznis/shopdesk/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(providePublisher),
	fx.Provide(provideConsumer),
)

func providePublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, metrics *obsmetrics.Metrics) Publisher {
	if !cfg.Kafka.Enabled() {
		log.Info("kafka brokers not configured, events disabled")
		return NewNoopPublisher()
	}
	publisher := NewKafkaPublisher(cfg.Kafka, log, metrics)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return publisher.Close() },
	})
	return publisher
}

// provideConsumer returns nil without brokers; Subscribe is nil-safe.
func provideConsumer(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *KafkaConsumer {
	if !cfg.Kafka.Enabled() {
		return nil
	}
	groupID := cfg.Kafka.InstanceGroup(cfg.SnowflakeNode)
	log.Info("kafka consumer group", zap.String("group_id", groupID))
	consumer := NewKafkaConsumer(cfg.Kafka, groupID, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				_ = consumer.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return consumer.Close()
		},
	})
	return consumer
}
