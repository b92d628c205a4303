package server

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/shopdesk/internal/shopcontext"
)

func (s *Server) authorizeShopAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeShopActionWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeShopActionWithContext(c *gin.Context, object string, action string) error {
	ctx := c.Request.Context()

	shopID, ok := shopcontext.ShopIDFromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}
	actor, ok := shopcontext.ActorFromContext(ctx)
	if !ok || strings.TrimSpace(actor.UserID) == "" {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}

	return s.authzSvc.Authorize(ctx, fmt.Sprintf("user:%s", actor.UserID), shopID.String(), strings.TrimSpace(object), strings.TrimSpace(action))
}
