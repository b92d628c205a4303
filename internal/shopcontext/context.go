package shopcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ShopContextKey is the request context key for the active shop ID.
type ShopContextKey struct{}

type actorContextKey struct{}

// Actor is the user acting on behalf of the shop, as forwarded by the gateway.
type Actor struct {
	UserID string
	Role   string
}

// WithShopID stores the shop ID in the context.
func WithShopID(ctx context.Context, shopID int64) context.Context {
	return context.WithValue(ctx, ShopContextKey{}, shopID)
}

// ShopIDFromContext returns the shop ID from context, if set.
func ShopIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	switch typed := ctx.Value(ShopContextKey{}).(type) {
	case int64:
		return snowflake.ID(typed), typed != 0
	case snowflake.ID:
		return typed, typed != 0
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil && parsed != 0 {
			return parsed, true
		}
	}
	return 0, false
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
