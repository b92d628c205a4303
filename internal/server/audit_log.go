package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/shopdesk/internal/audit/domain"
	"github.com/smallbiznis/shopdesk/pkg/db/pagination"
)

func (s *Server) ListAuditLogs(c *gin.Context) {
	if s.auditSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	var query struct {
		pagination.Pagination
		Action     string `form:"action"`
		TargetType string `form:"target_type"`
		TargetID   string `form:"target_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		PageToken:  query.PageToken,
		PageSize:   int32(query.PageSize),
		Action:     strings.TrimSpace(query.Action),
		TargetType: strings.TrimSpace(query.TargetType),
		TargetID:   strings.TrimSpace(query.TargetID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// recordAudit is best effort; a failed write never fails the request.
func (s *Server) recordAudit(c *gin.Context, action string, targetType string, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	var target *string
	if targetID != "" {
		target = &targetID
	}
	_ = s.auditSvc.Record(c.Request.Context(), action, targetType, target, metadata)
}
