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

func TestCreateInvoiceHandler(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		role       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name: "created",
			role: middleware.RoleAccountant,
			body: service.CreateInvoiceRequest{
				CustomerID: "cust-1",
				DueDate:    "2099-12-31",
				Items:      []service.LineItemRequest{{ProductRef: "SKU-1", Quantity: 2, UnitPrice: "150.25"}},
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "bad unit price",
			role: middleware.RoleAccountant,
			body: service.CreateInvoiceRequest{
				CustomerID: "cust-1",
				DueDate:    "2099-12-31",
				Items:      []service.LineItemRequest{{ProductRef: "SKU-1", Quantity: 1, UnitPrice: "ten"}},
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   ledger.CodeValidation,
		},
		{
			name: "unknown currency",
			role: middleware.RoleAccountant,
			body: service.CreateInvoiceRequest{
				CustomerID: "cust-1",
				Currency:   "DIRHAM",
				DueDate:    "2099-12-31",
				Items:      []service.LineItemRequest{{ProductRef: "SKU-1", Quantity: 1, UnitPrice: "1"}},
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   ledger.CodeValidation,
		},
		{
			name:       "no items",
			role:       middleware.RoleAccountant,
			body:       service.CreateInvoiceRequest{CustomerID: "cust-1", DueDate: "2099-12-31"},
			wantStatus: http.StatusBadRequest,
			wantCode:   ledger.CodeValidation,
		},
		{
			name: "viewer cannot write",
			role: middleware.RoleViewer,
			body: service.CreateInvoiceRequest{
				CustomerID: "cust-1",
				DueDate:    "2099-12-31",
				Items:      []service.LineItemRequest{{ProductRef: "SKU-1", Quantity: 1, UnitPrice: "1"}},
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "anonymous",
			body:       service.CreateInvoiceRequest{},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(t, tt.role, http.MethodPost, "/api/invoices", tt.body)
			assert.Equal(t, tt.wantStatus, status, env.Error)
			assert.Equal(t, tt.wantCode, env.Code)

			if tt.wantStatus == http.StatusCreated {
				inv := decode[service.InvoiceResponse](t, env)
				assert.Equal(t, "300.50", inv.TotalAmount.String())
				assert.Equal(t, "draft", inv.Status)
				assert.Equal(t, "accountant-user", inv.CreatedBy)
			}
		})
	}
}

func TestInvoiceLifecycleHandlers(t *testing.T) {
	s := newTestServer(t)
	inv := s.issuedInvoice(t, "1000")
	assert.Equal(t, "sent", inv.Status)

	status, env := s.do(t, middleware.RoleViewer, http.MethodGet, "/api/invoices/"+inv.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, inv.PINumber, decode[service.InvoiceResponse](t, env).PINumber)

	// stale version
	status, env = s.do(t, middleware.RoleAdmin, http.MethodPut, "/api/invoices/"+inv.ID+"/notes",
		service.UpdateNotesRequest{Notes: "late", ExpectedVersion: inv.Version - 1})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, ledger.CodeConflict, env.Code)

	status, env = s.do(t, middleware.RoleAdmin, http.MethodPut, "/api/invoices/"+inv.ID+"/notes",
		service.UpdateNotesRequest{Notes: "ship by sea", ExpectedVersion: inv.Version})
	require.Equal(t, http.StatusOK, status, env.Error)
	inv = decode[service.InvoiceResponse](t, env)
	assert.Equal(t, "ship by sea", inv.Notes)

	// already issued
	status, env = s.do(t, middleware.RoleAdmin, http.MethodPost, "/api/invoices/"+inv.ID+"/issue",
		service.VersionRequest{ExpectedVersion: inv.Version})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, ledger.CodeInvalidState, env.Code)

	status, env = s.do(t, middleware.RoleAdmin, http.MethodPost, "/api/invoices/"+inv.ID+"/cancel",
		service.CancelInvoiceRequest{ExpectedVersion: inv.Version, Reason: "order withdrawn"})
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, "cancelled", decode[service.InvoiceResponse](t, env).Status)

	status, env = s.do(t, middleware.RoleViewer, http.MethodGet, "/api/invoices?status=cancelled&customer_id=cust-1", nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[pagination.Page[service.InvoiceResponse]](t, env)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, inv.ID, page.Items[0].ID)
}

func TestGetInvoiceHandlerErrors(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, middleware.RoleViewer, http.MethodGet, "/api/invoices/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ledger.CodeValidation, env.Code)

	status, env = s.do(t, middleware.RoleViewer, http.MethodGet, "/api/invoices/7b0e3f52-5c3e-4c57-9d1e-8f39c1f0a111", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, ledger.CodeNotFound, env.Code)
}

func TestListOutstandingHandler(t *testing.T) {
	s := newTestServer(t)
	inv := s.issuedInvoice(t, "500")

	status, env := s.do(t, middleware.RoleViewer, http.MethodGet, "/api/invoices/outstanding?customer_id=cust-1", nil)
	require.Equal(t, http.StatusOK, status)
	rows := decode[[]service.OutstandingInvoiceResponse](t, env)
	require.Len(t, rows, 1)
	assert.Equal(t, inv.ID, rows[0].ID)
	assert.Equal(t, "500.00", rows[0].OutstandingAmount.String())
	assert.Equal(t, 0, rows[0].DaysOverdue)
}
