package context

import (
	"context"
	"strings"

	"github.com/smallbiznis/shopdesk/internal/shopcontext"
)

type requestIDKey struct{}

// WithRequestID stores the correlation id for the current request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// ShopIDFromContext returns the shop id as a log-friendly string.
func ShopIDFromContext(ctx context.Context) string {
	shopID, ok := shopcontext.ShopIDFromContext(ctx)
	if !ok {
		return ""
	}
	return shopID.String()
}

// ActorFromContext returns the actor role and user id, empty when unauthenticated.
func ActorFromContext(ctx context.Context) (string, string) {
	actor, ok := shopcontext.ActorFromContext(ctx)
	if !ok {
		return "", ""
	}
	return actor.Role, actor.UserID
}
