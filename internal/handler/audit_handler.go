package handler

import (
	"net/http"

	"proforma/internal/middleware"
	"proforma/internal/service"
	"proforma/pkg/pagination"
	"proforma/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Authenticator) {
	group := router.Group("/api/audit-logs")
	group.Use(auth.RequireRole(middleware.WriteRoles...)) // viewers do not see the trail
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs pages the audit trail newest first
// @Summary      Get audit logs
// @Description  Every invoice and payment mutation, optionally for one entity
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        entity_id  query     string  false  "Invoice or payment ID"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=pagination.Page[service.AuditLogResponse]}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	page := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), c.Query("entity_id"), page)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(logs, total, page)))
}
