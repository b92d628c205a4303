package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/smallbiznis/shopdesk/internal/config"
	"github.com/smallbiznis/shopdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/shopdesk/internal/observability/metrics"
	"go.uber.org/zap"
)

// KafkaPublisher writes events keyed by shop so a shop's events stay ordered.
type KafkaPublisher struct {
	writer  *kafka.Writer
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

func NewKafkaPublisher(cfg config.KafkaConfig, log *zap.Logger, metrics *obsmetrics.Metrics) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.TaxSettingsTopic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
		},
		log:     log.Named("events.publisher"),
		metrics: metrics,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.ShopID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	log := logger.WithContext(ctx, p.log)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.RecordEventPublished(ctx, event.Type, "error")
		log.Error("publish event failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		return err
	}

	p.metrics.RecordEventPublished(ctx, event.Type, "ok")
	log.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
