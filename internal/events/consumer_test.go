package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/smallbiznis/shopdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubReader struct {
	messages []kafka.Message
	closed   bool
}

func (r *stubReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *stubReader) Close() error {
	r.closed = true
	return nil
}

func encode(t *testing.T, event Event) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func TestConsumerDispatchesByType(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updated, err := New(ctx, TypeTaxSettingsUpdated, "42", map[string]string{"tax_label": "Sales Tax"})
	require.NoError(t, err)

	reader := &stubReader{messages: []kafka.Message{
		{Value: []byte("not json")},
		encode(t, Event{ID: "x", Type: "unknown"}),
		encode(t, updated),
	}}
	consumer := newConsumer(reader, zap.NewNop())

	var got []Event
	consumer.Subscribe(TypeTaxSettingsUpdated, func(_ context.Context, event Event) error {
		got = append(got, event)
		cancel()
		return errors.New("handler errors are logged only")
	})

	err = consumer.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, got, 1)
	assert.Equal(t, "42", got[0].ShopID)
	assert.Equal(t, updated.ID, got[0].ID)

	require.NoError(t, consumer.Close())
	assert.True(t, reader.closed)
}

func TestNewEventEnvelope(t *testing.T) {
	event, err := New(context.Background(), TypeTaxSettingsUpdated, "7", map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Len(t, event.ID, 26)
	assert.JSONEq(t, `{"n":1}`, string(event.Data))
	assert.False(t, event.OccurredAt.IsZero())

	assert.NoError(t, NewNoopPublisher().Publish(context.Background(), event))
}

func TestReaderConfigJoinsInstanceGroupAtLogEnd(t *testing.T) {
	cfg := config.KafkaConfig{
		Brokers:          []string{"kafka:9092"},
		TaxSettingsTopic: "shopdesk.tax_settings",
		ConsumerGroup:    "shopdesk",
	}

	a := readerConfig(cfg, cfg.InstanceGroup(1))
	b := readerConfig(cfg, cfg.InstanceGroup(2))

	assert.Equal(t, "shopdesk-1", a.GroupID)
	assert.NotEqual(t, a.GroupID, b.GroupID, "each replica must receive every settings event")
	assert.Equal(t, kafka.LastOffset, a.StartOffset)
	assert.Equal(t, "shopdesk.tax_settings", a.Topic)
}
