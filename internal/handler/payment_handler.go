package handler

import (
	"net/http"
	"strconv"

	"proforma/internal/middleware"
	"proforma/internal/service"
	"proforma/pkg/pagination"
	"proforma/pkg/response"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Authenticator) {
	write := auth.RequireRole(middleware.WriteRoles...)
	read := auth.RequireRole(middleware.ReadRoles...)

	payments := router.Group("/api/payments")
	{
		payments.POST("", write, h.RecordPayment)
		payments.GET("", read, h.ListPayments)
		payments.GET("/targets/:kind/:key/summary", read, h.TargetSummary)
		payments.GET("/:id", read, h.GetPayment)
		payments.POST("/:id/reverse", write, h.ReversePayment)
	}
}

// RecordPayment applies a payment to its target
// @Summary      Record payment
// @Description  Idempotent on (reference_number, target): a resend returns the original payment with duplicate=true and status 200
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RecordPaymentRequest  true  "Payment"
// @Success      201      {object}  response.Response{data=service.RecordPaymentResult}
// @Success      200      {object}  response.Response{data=service.RecordPaymentResult}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/payments [post]
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.paymentService.RecordPayment(c.Request.Context(), middleware.Actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, response.Success(status, result))
}

// ListPayments returns a paginated list of payments
// @Summary      List payments
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        invoice_id        query     string  false  "Invoice ID"
// @Param        target_kind       query     string  false  "invoice, free_zone, vessel, port, product"
// @Param        target_key        query     string  false  "Target key (comma separated free-zone ids)"
// @Param        include_reversed  query     bool    false  "Include reversed payments"
// @Param        page              query     int     false  "Page number (default 1)"
// @Param        limit             query     int     false  "Number of items per page (default 20)"
// @Success      200               {object}  response.Response{data=pagination.Page[service.PaymentResponse]}
// @Router       /api/payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	page := pagination.Parse(c)
	includeReversed, _ := strconv.ParseBool(c.DefaultQuery("include_reversed", "false"))

	payments, total, err := h.paymentService.ListPayments(c.Request.Context(), service.PaymentFilter{
		InvoiceID:       c.Query("invoice_id"),
		TargetKind:      c.Query("target_kind"),
		TargetKey:       c.Query("target_key"),
		IncludeReversed: includeReversed,
		Page:            page,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(payments, total, page)))
}

// GetPayment returns one payment record
// @Summary      Get payment
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Payment ID"
// @Success      200  {object}  response.Response{data=service.PaymentResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, payment))
}

// ReversePayment reverses a payment and recomputes its target
// @Summary      Reverse payment
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true   "Payment ID"
// @Param        payload  body      service.ReversePaymentRequest  false  "Reason"
// @Success      200      {object}  response.Response{data=service.PaymentResponse}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/payments/{id}/reverse [post]
func (h *PaymentHandler) ReversePayment(c *gin.Context) {
	var req service.ReversePaymentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	payment, err := h.paymentService.ReversePayment(c.Request.Context(), middleware.Actor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, payment))
}

// TargetSummary folds the payments of one target
// @Summary      Target payment summary
// @Description  Paid, held and released totals per currency for any target kind
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        kind  path      string  true  "invoice, free_zone, vessel, port, product"
// @Param        key   path      string  true  "Target key"
// @Success      200   {object}  response.Response{data=service.TargetSummaryResponse}
// @Failure      400   {object}  response.Response
// @Router       /api/payments/targets/{kind}/{key}/summary [get]
func (h *PaymentHandler) TargetSummary(c *gin.Context) {
	summary, err := h.paymentService.TargetSummary(c.Request.Context(), c.Param("kind"), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}
