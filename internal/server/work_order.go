package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/shopdesk/internal/audit/domain"
	workorderdomain "github.com/smallbiznis/shopdesk/internal/workorder/domain"
	"github.com/smallbiznis/shopdesk/pkg/db/pagination"
)

func (s *Server) CreateWorkOrder(c *gin.Context) {
	var req workorderdomain.CreateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.workOrderSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListWorkOrders(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status     string `form:"status"`
		CustomerID string `form:"customer_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.workOrderSvc.List(c.Request.Context(), workorderdomain.ListWorkOrderRequest{
		PageToken:  query.PageToken,
		PageSize:   int32(query.PageSize),
		Status:     strings.TrimSpace(query.Status),
		CustomerID: strings.TrimSpace(query.CustomerID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetWorkOrder(c *gin.Context) {
	resp, err := s.workOrderSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateWorkOrderStatus(c *gin.Context) {
	var req workorderdomain.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.workOrderSvc.UpdateStatus(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionWorkOrderStatusUpdate, "work_order", resp.ID.String(), map[string]any{
		"number": resp.Number,
		"status": string(resp.Status),
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetWorkOrderTotals(c *gin.Context) {
	resp, err := s.workOrderSvc.Totals(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddJobLine(c *gin.Context) {
	var req workorderdomain.JobLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.WorkOrderID = strings.TrimSpace(c.Param("id"))

	resp, err := s.workOrderSvc.AddJobLine(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateJobLine(c *gin.Context) {
	var req workorderdomain.JobLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.WorkOrderID = strings.TrimSpace(c.Param("id"))
	req.JobLineID = strings.TrimSpace(c.Param("lineId"))

	resp, err := s.workOrderSvc.UpdateJobLine(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RemoveJobLine(c *gin.Context) {
	err := s.workOrderSvc.RemoveJobLine(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(c.Param("lineId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) AddPart(c *gin.Context) {
	var req workorderdomain.PartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.WorkOrderID = strings.TrimSpace(c.Param("id"))

	resp, err := s.workOrderSvc.AddPart(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePart(c *gin.Context) {
	var req workorderdomain.PartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.WorkOrderID = strings.TrimSpace(c.Param("id"))
	req.PartID = strings.TrimSpace(c.Param("partId"))

	resp, err := s.workOrderSvc.UpdatePart(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RemovePart(c *gin.Context) {
	err := s.workOrderSvc.RemovePart(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(c.Param("partId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
