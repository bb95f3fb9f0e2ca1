package handler

import (
	"net/http"
	"testing"

	"proforma/internal/ledger"
	"proforma/internal/middleware"
	"proforma/internal/service"
	"proforma/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentBody(invoiceID, amount, reference string) service.RecordPaymentRequest {
	return service.RecordPaymentRequest{
		TargetKind:      "invoice",
		TargetRefs:      []string{invoiceID},
		Amount:          amount,
		Method:          "bank_transfer",
		ReferenceNumber: reference,
	}
}

func TestRecordPaymentHandlerIdempotent(t *testing.T) {
	s := newTestServer(t)
	inv := s.issuedInvoice(t, "125000")

	status, env := s.do(t, middleware.RoleAccountant, http.MethodPost, "/api/payments", paymentBody(inv.ID, "50000", "TXN-1"))
	require.Equal(t, http.StatusCreated, status, env.Error)
	first := decode[service.RecordPaymentResult](t, env)
	assert.False(t, first.Duplicate)

	status, env = s.do(t, middleware.RoleAccountant, http.MethodPost, "/api/payments", paymentBody(inv.ID, "50000", "TXN-1"))
	require.Equal(t, http.StatusOK, status, env.Error)
	again := decode[service.RecordPaymentResult](t, env)
	assert.True(t, again.Duplicate)
	assert.Equal(t, first.Payment.ID, again.Payment.ID)

	status, env = s.do(t, middleware.RoleAccountant, http.MethodPost, "/api/payments", paymentBody(inv.ID, "40000", "TXN-1"))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, ledger.CodeConflict, env.Code)

	status, env = s.do(t, middleware.RoleViewer, http.MethodGet, "/api/invoices/"+inv.ID, nil)
	require.Equal(t, http.StatusOK, status)
	got := decode[service.InvoiceResponse](t, env)
	assert.Equal(t, "partial", got.Status)
	assert.Equal(t, "75000.00", got.OutstandingAmount.String())
	assert.Len(t, got.PaymentHistory, 1)
}

func TestRecordPaymentHandlerValidation(t *testing.T) {
	s := newTestServer(t)
	inv := s.issuedInvoice(t, "100")

	tests := []struct {
		name string
		body service.RecordPaymentRequest
	}{
		{"unknown target kind", service.RecordPaymentRequest{TargetKind: "truck", TargetRefs: []string{"x"}, Amount: "1", Method: "cash"}},
		{"no refs", service.RecordPaymentRequest{TargetKind: "vessel", Amount: "1", Method: "cash"}},
		{"bad amount", paymentBody(inv.ID, "1,000", "")},
		{"bad method", service.RecordPaymentRequest{TargetKind: "vessel", TargetRefs: []string{"MV-1"}, Amount: "1", Method: "barter"}},
		{"negative amount", paymentBody(inv.ID, "-5", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(t, middleware.RoleAccountant, http.MethodPost, "/api/payments", tt.body)
			assert.Equal(t, http.StatusBadRequest, status, env.Error)
			assert.Equal(t, ledger.CodeValidation, env.Code)
		})
	}
}

func TestReversePaymentHandler(t *testing.T) {
	s := newTestServer(t)
	inv := s.issuedInvoice(t, "1000")

	status, env := s.do(t, middleware.RoleAccountant, http.MethodPost, "/api/payments", paymentBody(inv.ID, "1000", "TXN-9"))
	require.Equal(t, http.StatusCreated, status, env.Error)
	payment := decode[service.RecordPaymentResult](t, env).Payment

	status, env = s.do(t, middleware.RoleViewer, http.MethodPost, "/api/payments/"+payment.ID+"/reverse", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(t, middleware.RoleAdmin, http.MethodPost, "/api/payments/"+payment.ID+"/reverse",
		service.ReversePaymentRequest{Reason: "bounced"})
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.True(t, decode[service.PaymentResponse](t, env).Reversed)

	status, env = s.do(t, middleware.RoleAdmin, http.MethodPost, "/api/payments/"+payment.ID+"/reverse", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, ledger.CodeAlreadyReversed, env.Code)

	status, env = s.do(t, middleware.RoleViewer, http.MethodGet, "/api/payments?invoice_id="+inv.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(0), decode[pagination.Page[service.PaymentResponse]](t, env).Total)

	status, env = s.do(t, middleware.RoleViewer, http.MethodGet, "/api/payments?include_reversed=true&invoice_id="+inv.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), decode[pagination.Page[service.PaymentResponse]](t, env).Total)

	status, env = s.do(t, middleware.RoleViewer, http.MethodGet, "/api/invoices/"+inv.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "sent", decode[service.InvoiceResponse](t, env).Status)
}

func TestTargetSummaryHandler(t *testing.T) {
	s := newTestServer(t)

	body := service.RecordPaymentRequest{
		TargetKind:   "vessel",
		TargetRefs:   []string{"MV-ALBA"},
		Amount:       "300",
		HoldedAmount: "100",
		Method:       "cash",
	}
	status, env := s.do(t, middleware.RoleAccountant, http.MethodPost, "/api/payments", body)
	require.Equal(t, http.StatusCreated, status, env.Error)

	status, env = s.do(t, middleware.RoleViewer, http.MethodGet, "/api/payments/targets/vessel/MV-ALBA/summary", nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	summary := decode[service.TargetSummaryResponse](t, env)
	require.Len(t, summary.Totals, 1)
	assert.Equal(t, "300.00", summary.Totals[0].Paid.String())
	assert.Equal(t, "100.00", summary.Totals[0].Holded.String())
	assert.Equal(t, "200.00", summary.Totals[0].Released.String())

	status, env = s.do(t, middleware.RoleViewer, http.MethodGet, "/api/payments/targets/truck/T-1/summary", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ledger.CodeValidation, env.Code)
}
