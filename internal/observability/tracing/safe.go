package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// Attribute keys that may carry customer data never reach the exporter.
var blockedAttributeKeys = map[attribute.Key]struct{}{
	"customer.name":  {},
	"customer.email": {},
	"customer.phone": {},
	"http.url":       {},
	"http.target":    {},
}

func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces an error to its first line so SQL and payload fragments stay out of spans.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(err.Error())
	if idx := strings.IndexAny(msg, "\n:"); idx > 0 {
		msg = strings.TrimSpace(msg[:idx])
	}
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}
