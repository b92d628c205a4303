package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/smallbiznis/shopdesk/internal/config"
	"go.uber.org/zap"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConsumer dispatches broker events to handlers registered per type.
type KafkaConsumer struct {
	reader messageReader
	log    *zap.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewKafkaConsumer(cfg config.KafkaConfig, groupID string, log *zap.Logger) *KafkaConsumer {
	return newConsumer(kafka.NewReader(readerConfig(cfg, groupID)), log)
}

// readerConfig starts a new group at the log end: older events describe
// changes that a freshly started replica already loads from storage.
func readerConfig(cfg config.KafkaConfig, groupID string) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.TaxSettingsTopic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
	}
}

func newConsumer(reader messageReader, log *zap.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader:   reader,
		log:      log.Named("events.consumer"),
		handlers: make(map[string][]Handler),
	}
}

func (c *KafkaConsumer) Subscribe(eventType string, handler Handler) {
	if c == nil || handler == nil {
		return
	}
	c.mu.Lock()
	c.handlers[eventType] = append(c.handlers[eventType], handler)
	c.mu.Unlock()
}

// Run reads until ctx is cancelled or the reader is closed (io.EOF).
func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			c.log.Error("read message failed", zap.Error(err))
			continue
		}
		c.dispatch(ctx, msg)
	}
}

func (c *KafkaConsumer) dispatch(ctx context.Context, msg kafka.Message) {
	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.log.Warn("discarding undecodable event",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}

	c.mu.RLock()
	handlers := c.handlers[event.Type]
	c.mu.RUnlock()

	if len(handlers) == 0 {
		c.log.Debug("no handler for event", zap.String("event_type", event.Type))
		return
	}
	for _, handle := range handlers {
		if err := handle(ctx, event); err != nil {
			c.log.Error("event handler failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", event.Type),
				zap.Error(err),
			)
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
