package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	obscontext "github.com/smallbiznis/shopdesk/internal/observability/context"
)

const TypeTaxSettingsUpdated = "tax_settings.updated"

// Event is the envelope written to the broker.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	ShopID        string          `json:"shop_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

func New(ctx context.Context, eventType, shopID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            ulid.Make().String(),
		Type:          eventType,
		ShopID:        shopID,
		OccurredAt:    time.Now().UTC(),
		CorrelationID: obscontext.RequestIDFromContext(ctx),
		Data:          data,
	}, nil
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Handler processes one decoded event. Returned errors are logged, not retried.
type Handler func(ctx context.Context, event Event) error

type noopPublisher struct{}

// NewNoopPublisher is used when no brokers are configured.
func NewNoopPublisher() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, Event) error { return nil }
