package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/shopdesk/internal/shopcontext"
)

const (
	HeaderShop = "X-Shop-ID"
	HeaderUser = "X-User-ID"
	HeaderRole = "X-Shop-Role"
)

// ShopContext resolves the shop and acting user forwarded by the gateway.
func ShopContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderShop))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		shopID, err := snowflake.ParseString(raw)
		if err != nil || shopID <= 0 {
			AbortWithError(c, newValidationError("shop_id", "invalid_shop", "invalid shop id"))
			return
		}

		ctx := shopcontext.WithShopID(c.Request.Context(), shopID.Int64())
		if userID := strings.TrimSpace(c.GetHeader(HeaderUser)); userID != "" {
			ctx = shopcontext.WithActor(ctx, shopcontext.Actor{
				UserID: userID,
				Role:   strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderRole))),
			})
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
