package handler

import (
	"net/http"

	"proforma/internal/middleware"
	"proforma/internal/service"
	"proforma/pkg/response"

	"github.com/gin-gonic/gin"
)

type CustomerHandler struct {
	customerService service.CustomerService
}

func NewCustomerHandler(customerService service.CustomerService) *CustomerHandler {
	return &CustomerHandler{customerService: customerService}
}

func (h *CustomerHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Authenticator) {
	customers := router.Group("/api/customers")
	customers.Use(auth.RequireRole(middleware.ReadRoles...))
	{
		customers.GET("/:id/summary", h.GetSummary)
	}
}

// GetSummary returns the customer aggregate
// @Summary      Customer summary
// @Description  Invoice counts and per-currency balance folded over the customer's invoices
// @Tags         customers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Customer ID"
// @Success      200  {object}  response.Response{data=service.CustomerSummaryResponse}
// @Router       /api/customers/{id}/summary [get]
func (h *CustomerHandler) GetSummary(c *gin.Context) {
	summary, err := h.customerService.GetSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}
