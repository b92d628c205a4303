package shopcontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestShopIDFromContext(t *testing.T) {
	id, ok := ShopIDFromContext(WithShopID(context.Background(), 42))
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(42), id)

	_, ok = ShopIDFromContext(WithShopID(context.Background(), 0))
	assert.False(t, ok)

	_, ok = ShopIDFromContext(context.Background())
	assert.False(t, ok)

	ctx := context.WithValue(context.Background(), ShopContextKey{}, " 99 ")
	id, ok = ShopIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(99), id)
}

func TestActorFromContext(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{UserID: "u_1", Role: "owner"})
	actor, ok := ActorFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "owner", actor.Role)

	_, ok = ActorFromContext(context.Background())
	assert.False(t, ok)
}
