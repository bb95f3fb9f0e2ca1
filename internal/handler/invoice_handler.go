package handler

import (
	"net/http"

	"proforma/internal/middleware"
	"proforma/internal/service"
	"proforma/pkg/pagination"
	"proforma/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
}

func NewInvoiceHandler(invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Authenticator) {
	write := auth.RequireRole(middleware.WriteRoles...)
	read := auth.RequireRole(middleware.ReadRoles...)

	invoices := router.Group("/api/invoices")
	{
		invoices.POST("", write, h.CreateInvoice)
		invoices.GET("", read, h.ListInvoices)
		invoices.GET("/outstanding", read, h.ListOutstanding)
		invoices.GET("/:id", read, h.GetInvoice)
		invoices.PUT("/:id/items", write, h.UpdateLineItems)
		invoices.PUT("/:id/notes", write, h.UpdateNotes)
		invoices.POST("/:id/issue", write, h.IssueInvoice)
		invoices.POST("/:id/cancel", write, h.CancelInvoice)
	}
}

// CreateInvoice creates a draft proforma invoice
// @Summary      Create proforma invoice
// @Description  Creates a draft invoice; totals are computed from the line items
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateInvoiceRequest  true  "Create Invoice Payload"
// @Success      201      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), middleware.Actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// ListInvoices returns a paginated list of invoices
// @Summary      List proforma invoices
// @Description  Filters by customer, status (including the derived "overdue") and PI number
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        customer_id  query     string  false  "Customer ID"
// @Param        status       query     string  false  "draft, sent, partial, paid, overdue, cancelled"
// @Param        pi_number    query     string  false  "Partial PI number"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20)"
// @Success      200          {object}  response.Response{data=pagination.Page[service.InvoiceResponse]}
// @Failure      400          {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	page := pagination.Parse(c)
	filter := service.InvoiceFilter{
		CustomerID: c.Query("customer_id"),
		Status:     c.Query("status"),
		PINumber:   c.Query("pi_number"),
		Page:       page,
	}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(invoices, total, page)))
}

// ListOutstanding returns open invoices with money owed, oldest due first
// @Summary      Outstanding invoices
// @Description  Aging view with days overdue and aging bucket per invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        customer_id  query     string  false  "Customer ID"
// @Success      200          {object}  response.Response{data=[]service.OutstandingInvoiceResponse}
// @Router       /api/invoices/outstanding [get]
func (h *InvoiceHandler) ListOutstanding(c *gin.Context) {
	rows, err := h.invoiceService.ListOutstanding(c.Request.Context(), c.Query("customer_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}

// GetInvoice returns the invoice read model with its payment history
// @Summary      Get proforma invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// UpdateLineItems replaces the line items of an invoice without payments
// @Summary      Replace line items
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "Invoice ID"
// @Param        payload  body      service.UpdateLineItemsRequest  true  "Line items and expected version"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/invoices/{id}/items [put]
func (h *InvoiceHandler) UpdateLineItems(c *gin.Context) {
	var req service.UpdateLineItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	invoice, err := h.invoiceService.UpdateLineItems(c.Request.Context(), middleware.Actor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// UpdateNotes edits the free-text notes
// @Summary      Update notes
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Invoice ID"
// @Param        payload  body      service.UpdateNotesRequest  true  "Notes and expected version"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/notes [put]
func (h *InvoiceHandler) UpdateNotes(c *gin.Context) {
	var req service.UpdateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	invoice, err := h.invoiceService.UpdateNotes(c.Request.Context(), middleware.Actor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// IssueInvoice moves a draft invoice to sent
// @Summary      Issue invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Invoice ID"
// @Param        payload  body      service.VersionRequest  true  "Expected version"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/invoices/{id}/issue [post]
func (h *InvoiceHandler) IssueInvoice(c *gin.Context) {
	var req service.VersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	invoice, err := h.invoiceService.IssueInvoice(c.Request.Context(), middleware.Actor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// CancelInvoice cancels an unpaid invoice and reverses its payments
// @Summary      Cancel invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Invoice ID"
// @Param        payload  body      service.CancelInvoiceRequest  true  "Expected version and reason"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/invoices/{id}/cancel [post]
func (h *InvoiceHandler) CancelInvoice(c *gin.Context) {
	var req service.CancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	invoice, err := h.invoiceService.CancelInvoice(c.Request.Context(), middleware.Actor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}
